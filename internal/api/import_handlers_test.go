package api

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"encoding/json/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeZip(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "package.zip")
	require.NoError(t, os.WriteFile(path, zipBytes(t, files), 0o644))
	return path
}

func startImport(t *testing.T, ts *testServer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/imports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func waitForJobState(t *testing.T, ts *testServer, jobID, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports/"+jobID, http.NoBody))
		if w.Code != http.StatusOK {
			return false
		}
		var env testEnvelope[ImportJobResponse]
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			return false
		}
		return env.Data.State == want
	}, 10*time.Second, 20*time.Millisecond)
}

func TestStartImportRunsToCompletion(t *testing.T) {
	ts := setupTestServer(t)

	archive := makeZip(t, t.TempDir(), map[string]string{
		"ZBAA/ADC/ZBAA-1A Aerodrome Chart.pdf": "pdf-a",
		"ZBAA/IAC/ZBAA-7A ILS RWY 18.pdf":      "pdf-b",
		"EDDF/ADC/EDDF-1A Aerodrome Chart.pdf": "pdf-c",
	})

	w := startImport(t, ts, `{"path":`+quoted(archive)+`,"clean_root":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	env := decodeEnvelope[ImportJobResponse](t, w.Body.Bytes())
	require.NotEmpty(t, env.Data.ID)
	assert.Equal(t, string(domain.JobPending), env.Data.State)
	assert.Equal(t, archive, env.Data.ArchivePath)
	jobID := env.Data.ID

	waitForJobState(t, ts, jobID, string(domain.JobCompleted))

	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports/"+jobID, http.NoBody))
	env = decodeEnvelope[ImportJobResponse](t, w.Body.Bytes())
	assert.Equal(t, 3, env.Data.ChartCount)
	assert.Equal(t, 2, env.Data.AirportCount)
	assert.NotEmpty(t, env.Data.Checksum)
	assert.Positive(t, env.Data.Workers)
	assert.Empty(t, env.Data.Errors)
	require.NotNil(t, env.Data.FinishedAt)
	assert.False(t, env.Data.FinishedAt.IsZero())

	// The catalog was swapped: clean_root replaced the seeded airports.
	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/airports", http.NoBody))
	airports := decodeEnvelope[AirportListResponse](t, w.Body.Bytes())
	require.Equal(t, 2, airports.Data.Total)
	assert.Equal(t, "EDDF", airports.Data.Airports[0].Code)
	assert.Equal(t, "ZBAA", airports.Data.Airports[1].Code)

	// And the job landed in the history.
	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports", http.NoBody))
	list := decodeEnvelope[ImportListResponse](t, w.Body.Bytes())
	require.NotEmpty(t, list.Data.Jobs)
	assert.Equal(t, jobID, list.Data.Jobs[0].ID)
	assert.Equal(t, string(domain.JobCompleted), list.Data.Jobs[0].State)
}

func TestStartImportMissingPath(t *testing.T) {
	ts := setupTestServer(t)

	w := startImport(t, ts, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	env := decodeCodedEnvelope(t, w.Body.Bytes())
	assert.Equal(t, string(apperrors.CodeValidation), env.Code)
}

func TestStartImportPackageNotFound(t *testing.T) {
	ts := setupTestServer(t)

	w := startImport(t, ts, `{"path":"/nonexistent/cycle.zip"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeCodedEnvelope(t, w.Body.Bytes())
	assert.Equal(t, string(apperrors.CodeValidation), env.Code)
	assert.Contains(t, env.Message, "not found")
}

func TestStartImportRejectsNonZip(t *testing.T) {
	ts := setupTestServer(t)

	path := filepath.Join(t.TempDir(), "cycle.tar")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	w := startImport(t, ts, `{"path":`+quoted(path)+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeCodedEnvelope(t, w.Body.Bytes())
	assert.Equal(t, string(apperrors.CodeValidation), env.Code)
	assert.Contains(t, env.Message, ".zip")
}

func TestGetImportUnknownJob(t *testing.T) {
	ts := setupTestServer(t)

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports/job-missing", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)

	env := decodeCodedEnvelope(t, w.Body.Bytes())
	assert.Equal(t, string(apperrors.CodeNotFound), env.Code)
}

func TestUploadPackageThenImport(t *testing.T) {
	ts := setupTestServer(t)

	content := zipBytes(t, map[string]string{
		"ZGGG/ADC/ZGGG-1A Aerodrome Chart.pdf": "pdf-g",
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("package", "cycle-2509.zip")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	env := decodeEnvelope[UploadResponse](t, w.Body.Bytes())
	assert.True(t, strings.HasPrefix(env.Data.Path, ts.cfg.UploadsDir()))
	assert.Equal(t, int64(len(content)), env.Data.SizeBytes)

	stored, err := os.ReadFile(env.Data.Path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	// The returned path feeds straight into startImport.
	w = startImport(t, ts, `{"path":`+quoted(env.Data.Path)+`,"clean_root":true}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	jobEnv := decodeEnvelope[ImportJobResponse](t, w.Body.Bytes())
	waitForJobState(t, ts, jobEnv.Data.ID, string(domain.JobCompleted))
}

func TestUploadPackageRejectsNonZip(t *testing.T) {
	ts := setupTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("package", "charts.rar")
	require.NoError(t, err)
	_, err = fw.Write([]byte("rar!"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope[any](t, w.Body.Bytes())
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, ".zip")
}

func TestUploadPackageNoFile(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/upload", strings.NewReader("plain body"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope[any](t, w.Body.Bytes())
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "No file uploaded")
}

func TestListImportsHistory(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	older := &domain.ImportJob{
		ID:          "job-older",
		ArchivePath: "/imports/eaip-2507.zip",
		State:       domain.JobCompleted,
		StartedAt:   base,
		FinishedAt:  base.Add(time.Minute),
	}
	newer := &domain.ImportJob{
		ID:          "job-newer",
		ArchivePath: "/imports/eaip-2508.zip",
		State:       domain.JobFailed,
		Error:       "archive corrupt",
		StartedAt:   base.Add(30 * time.Minute),
		FinishedAt:  base.Add(31 * time.Minute),
	}
	require.NoError(t, ts.jobs.RecordJob(ctx, older))
	require.NoError(t, ts.jobs.RecordJob(ctx, newer))

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope[ImportListResponse](t, w.Body.Bytes())
	require.Equal(t, 2, env.Data.Total)
	assert.Equal(t, "job-newer", env.Data.Jobs[0].ID)
	assert.Equal(t, "archive corrupt", env.Data.Jobs[0].Error)
	assert.Equal(t, "job-older", env.Data.Jobs[1].ID)

	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports?limit=1", http.NoBody))
	env = decodeEnvelope[ImportListResponse](t, w.Body.Bytes())
	require.Equal(t, 1, env.Data.Total)
	assert.Equal(t, "job-newer", env.Data.Jobs[0].ID)

	w = httptest.NewRecorder()
	ts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/imports?limit=0", http.NoBody))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// quoted JSON-quotes a path for inline request bodies.
func quoted(path string) string {
	b, _ := json.Marshal(path)
	return string(b)
}
