package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelInfo})

	log.Info("catalog loaded", "charts", 42)

	out := buf.String()
	assert.Contains(t, out, `"msg":"catalog loaded"`)
	assert.Contains(t, out, `"charts":42`)
}

func TestNew_FormatFollowsEnvironment(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Writer: &buf, Environment: tt.environment})
			log.Info("probe")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"probe"`)
			} else {
				assert.Contains(t, buf.String(), ansiBold+"probe")
			}
		})
	}
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Environment: "development"})
	log.Info("probe")

	assert.Contains(t, buf.String(), `"msg":"probe"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Info("import finished", "airport", "ZBAA", "charts", 17)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "import finished")
	assert.Contains(t, out, "airport=ZBAA")
	assert.Contains(t, out, "charts=17")
}

func TestPrettyHandler_LevelLabels(t *testing.T) {
	tests := []struct {
		level slog.Level
		label string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			log.Log(context.Background(), tt.level, "probe")
			assert.Contains(t, buf.String(), tt.label)
		})
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := newPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newPrettyHandler(&buf, nil)

	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("job", "job-1")}).WithGroup("import"))
	log.Info("extracting", "file", "ZBAA/ADC/chart.pdf")

	out := buf.String()
	assert.Contains(t, out, "job=job-1")
	assert.Contains(t, out, "import.file=ZBAA/ADC/chart.pdf")
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true}))

	log.Info("probe")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON})

	log.WithError(errors.New("archive unreadable")).Warn("import aborted")

	out := buf.String()
	assert.Contains(t, out, "archive unreadable")
	assert.Contains(t, out, "import aborted")
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON})

	log.WithComponent("render").Info("cache hit")

	assert.Contains(t, buf.String(), `"component":"render"`)
}

func TestDiscard(t *testing.T) {
	log := Discard()
	require.NotNil(t, log)
	log.Info("nobody hears this")
	log.Error("not even this")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelWarn})

	log.Debug("quiet")
	log.Info("quiet too")
	log.Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}
