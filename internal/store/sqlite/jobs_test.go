package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"), nil)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func jobFixture(id string, started time.Time) *domain.ImportJob {
	return &domain.ImportJob{
		ID:          id,
		ArchivePath: "/imports/eaip-2505.zip",
		Checksum:    "abcd1234",
		State:       domain.JobPending,
		Workers:     4,
		StartedAt:   started,
	}
}

func TestRecordAndGetJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := jobFixture("job-1", time.Now().UTC())
	job.Progress = domain.ImportStatus{Step: 10, TotalSteps: 50, Percent: 20, StepName: "extracting"}
	job.Errors = []domain.ImportError{
		{Path: "README.pdf", Phase: "catalog", Message: "not a chart path", Time: time.Now().UTC()},
	}
	require.NoError(t, s.RecordJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.ArchivePath, got.ArchivePath)
	assert.Equal(t, domain.JobPending, got.State)
	assert.Equal(t, 20, got.Progress.Percent)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "README.pdf", got.Errors[0].Path)
	assert.True(t, got.FinishedAt.IsZero())
}

func TestGetJobNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetJob(context.Background(), "job-missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRecordJobConvergesOnFinalState(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := jobFixture("job-1", time.Now().UTC())
	require.NoError(t, s.RecordJob(ctx, job))

	job.State = domain.JobExtracting
	require.NoError(t, s.RecordJob(ctx, job))

	job.State = domain.JobCompleted
	job.ChartCount = 812
	job.AirportCount = 39
	job.FinishedAt = time.Now().UTC()
	require.NoError(t, s.RecordJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.State)
	assert.Equal(t, 812, got.ChartCount)
	assert.Equal(t, 39, got.AirportCount)
	assert.False(t, got.FinishedAt.IsZero())

	jobs, err := s.ListJobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "re-recording must not duplicate rows")
}

func TestListJobsMostRecentFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 5 {
		job := jobFixture(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.RecordJob(ctx, job))
	}

	jobs, err := s.ListJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-4", jobs[0].ID)
	assert.Equal(t, "job-3", jobs[1].ID)
	assert.Equal(t, "job-2", jobs[2].ID)
}

func TestLatestJob(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Now().UTC()
	require.NoError(t, s.RecordJob(ctx, jobFixture("job-old", base.Add(-time.Minute))))
	require.NoError(t, s.RecordJob(ctx, jobFixture("job-new", base)))

	latest, err = s.LatestJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "job-new", latest.ID)
}

func TestPruneJobs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 10 {
		require.NoError(t, s.RecordJob(ctx, jobFixture(fmt.Sprintf("job-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	removed, err := s.PruneJobs(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, removed)

	jobs, err := s.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	assert.Equal(t, "job-9", jobs[0].ID)
	assert.Equal(t, "job-6", jobs[3].ID)
}
