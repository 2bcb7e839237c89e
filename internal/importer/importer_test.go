package importer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
)

type recordedJobs struct {
	mu   sync.Mutex
	jobs []domain.ImportJob
}

func (r *recordedJobs) RecordJob(ctx context.Context, job *domain.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, *job)
	return nil
}

func newTestImporter(t *testing.T, jobs JobRecorder) (*Importer, *catalog.Catalog, *catalog.IndexStore, string) {
	t.Helper()
	dataPath := t.TempDir()
	chartsRoot := filepath.Join(dataPath, "charts")

	cat := catalog.New()
	index := catalog.NewIndexStore(dataPath, nil)
	imp := New(chartsRoot, cat, index, catalog.NewCataloger(nil), jobs, nil)
	return imp, cat, index, chartsRoot
}

func TestRunImportsPackage(t *testing.T) {
	imp, cat, index, chartsRoot := newTestImporter(t, nil)

	archive := makeZip(t, t.TempDir(), map[string]string{
		"ZBAA/ADC/ZBAA-1A Aerodrome Chart.pdf": "pdf-a",
		"ZBAA/SID/ZBAA-7A Departure.pdf":       "pdf-b",
		"ZSPD/IAC/ZSPD-5C Approach.pdf":        "pdf-c",
	})

	sink := &statusSink{}
	job, err := imp.Run(context.Background(), archive, Options{
		MaxWorkers:       "2",
		AutoWorkersRatio: 0.5,
		OnProgress:       sink.onStatus,
		OnComplete:       sink.onDone,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if job.State != domain.JobCompleted {
		t.Errorf("job state = %s, want %s", job.State, domain.JobCompleted)
	}
	if job.ChartCount != 3 || job.AirportCount != 2 {
		t.Errorf("counts = %d charts / %d airports", job.ChartCount, job.AirportCount)
	}
	if len(job.Errors) != 0 {
		t.Errorf("unexpected recoverable errors: %v", job.Errors)
	}
	if job.Checksum == "" {
		t.Error("job has no package checksum")
	}
	if job.Workers < 1 || job.Workers > 2 {
		t.Errorf("workers = %d, want 1 or 2 after clamping", job.Workers)
	}

	if cat.Len() != 3 {
		t.Errorf("live catalog has %d charts, want 3", cat.Len())
	}
	if got := index.Load(); len(got.Charts) != 3 {
		t.Errorf("persisted index has %d charts, want 3", len(got.Charts))
	}

	extracted := filepath.Join(chartsRoot, "ZBAA", "ADC", "ZBAA-1A Aerodrome Chart.pdf")
	if _, err := os.Stat(extracted); err != nil {
		t.Errorf("extracted chart missing: %v", err)
	}

	if sink.summary == nil {
		t.Fatal("no terminal summary")
	}
	if !sink.summary.Success {
		t.Error("summary not successful")
	}
	hundreds := 0
	for _, st := range sink.statuses {
		if st.Percent == 100 {
			hundreds++
		}
	}
	if hundreds != 1 {
		t.Errorf("expected exactly one 100%% update, got %d", hundreds)
	}
}

func TestRunRecordsRecoverableErrors(t *testing.T) {
	imp, cat, _, chartsRoot := newTestImporter(t, nil)

	archive := makeZip(t, t.TempDir(), map[string]string{
		"ZBAA/ADC/a.pdf": "pdf-a",
		"ZBAA/SID/b.pdf": "pdf-b",
		"ZGGG/GMC/c.pdf": "pdf-c",
		"README.pdf":     "misplaced",
		"../escape.pdf":  "evil",
	})

	job, err := imp.Run(context.Background(), archive, Options{MaxWorkers: "1"})
	if err != nil {
		t.Fatalf("per-file failures must not abort the job: %v", err)
	}

	if job.State != domain.JobCompleted {
		t.Errorf("job state = %s", job.State)
	}
	if job.ChartCount != 3 {
		t.Errorf("chart count = %d, want 3", job.ChartCount)
	}
	if len(job.Errors) != 2 {
		t.Fatalf("expected 2 recoverable errors, got %d: %v", len(job.Errors), job.Errors)
	}

	phases := map[string]int{}
	for _, e := range job.Errors {
		phases[e.Phase]++
	}
	if phases["extract"] != 1 || phases["catalog"] != 1 {
		t.Errorf("error phases = %v", phases)
	}

	if cat.Len() != 3 {
		t.Errorf("catalog has %d charts, want 3", cat.Len())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(chartsRoot), "escape.pdf")); err == nil {
		t.Error("traversal entry escaped the charts root")
	}
}

func TestRunFailsOnUnopenableArchive(t *testing.T) {
	imp, _, _, _ := newTestImporter(t, nil)

	sink := &statusSink{}
	job, err := imp.Run(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), Options{
		OnComplete: sink.onDone,
	})
	if err == nil {
		t.Fatal("expected failure for missing archive")
	}
	if !errors.Is(err, errors.ErrArchiveCorrupt) {
		t.Errorf("expected ARCHIVE_CORRUPT, got %v", err)
	}
	if job.State != domain.JobFailed {
		t.Errorf("job state = %s, want %s", job.State, domain.JobFailed)
	}
	if sink.summary == nil {
		t.Fatal("failure did not emit a terminal summary")
	}
	if sink.summary.Success {
		t.Error("failure summary marked successful")
	}
}

func TestRunFailsWhenNothingExtracts(t *testing.T) {
	imp, _, _, _ := newTestImporter(t, nil)

	archive := makeZip(t, t.TempDir(), map[string]string{
		"../a.pdf":    "evil",
		"../../b.pdf": "evil",
	})

	job, err := imp.Run(context.Background(), archive, Options{MaxWorkers: "1"})
	if err == nil {
		t.Fatal("expected failure when nothing extracts")
	}
	if !errors.Is(err, errors.ErrArchiveCorrupt) {
		t.Errorf("expected ARCHIVE_CORRUPT, got %v", err)
	}
	if job.State != domain.JobFailed {
		t.Errorf("job state = %s", job.State)
	}
	if len(job.Errors) != 2 {
		t.Errorf("expected 2 per-entry errors, got %d", len(job.Errors))
	}
}

func TestRunCleanRootReplacesPreviousCycle(t *testing.T) {
	imp, cat, _, chartsRoot := newTestImporter(t, nil)

	stale := filepath.Join(chartsRoot, "ZBAA", "ADC", "old-cycle.pdf")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sidecar := filepath.Join(chartsRoot, catalog.NamesFile)
	if err := os.WriteFile(sidecar, []byte(`{"ZSPD":{"name_local":"上海/浦东"}}`), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	archive := makeZip(t, t.TempDir(), map[string]string{
		"ZSPD/IAC/new-cycle.pdf": "new",
	})

	job, err := imp.Run(context.Background(), archive, Options{MaxWorkers: "1", CleanRoot: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.ChartCount != 1 {
		t.Errorf("chart count = %d, want 1", job.ChartCount)
	}

	if _, err := os.Stat(stale); err == nil {
		t.Error("previous cycle file survived CleanRoot")
	}
	if _, err := os.Stat(sidecar); err != nil {
		t.Error("airports.json sidecar should survive CleanRoot")
	}
	charts := cat.ChartsForAirport("ZSPD")
	if len(charts) != 1 {
		t.Fatalf("expected 1 ZSPD chart, got %d", len(charts))
	}
	if charts[0].AirportCode != "ZSPD" {
		t.Errorf("airport = %s", charts[0].AirportCode)
	}
}

func TestRunCancelledContext(t *testing.T) {
	imp, cat, _, _ := newTestImporter(t, nil)

	files := make(map[string]string, 64)
	for i := range 64 {
		files[filepath.Join("ZBAA", "ADC", nameForIndex(i))] = "pdf"
	}
	archive := makeZip(t, t.TempDir(), files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := imp.Run(ctx, archive, Options{MaxWorkers: "2"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if job.State != domain.JobFailed {
		t.Errorf("job state = %s", job.State)
	}
	if cat.Len() != 0 {
		t.Errorf("cancelled import swapped the catalog (%d charts)", cat.Len())
	}
}

func nameForIndex(i int) string {
	return string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".pdf"
}

func TestRunRecordsJobHistory(t *testing.T) {
	rec := &recordedJobs{}
	imp, _, _, _ := newTestImporter(t, rec)

	archive := makeZip(t, t.TempDir(), map[string]string{
		"ZBAA/ADC/a.pdf": "pdf-a",
	})

	if _, err := imp.Run(context.Background(), archive, Options{MaxWorkers: "1"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.jobs) < 2 {
		t.Fatalf("expected at least start and finish records, got %d", len(rec.jobs))
	}
	first, last := rec.jobs[0], rec.jobs[len(rec.jobs)-1]
	if first.State != domain.JobPending {
		t.Errorf("first record state = %s, want %s", first.State, domain.JobPending)
	}
	if last.State != domain.JobCompleted {
		t.Errorf("last record state = %s, want %s", last.State, domain.JobCompleted)
	}
	if last.FinishedAt.IsZero() {
		t.Error("finished record has no timestamp")
	}
}
