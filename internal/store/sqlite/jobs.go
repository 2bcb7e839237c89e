package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"encoding/json/v2"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
)

// jobColumns is the ordered list of columns selected in job queries.
// Must match the scan order in scanJob.
const jobColumns = `id, archive_path, checksum, state, workers,
	chart_count, airport_count, error, progress, errors,
	started_at, finished_at`

// scanJob scans a sql.Row (or sql.Rows via its Scan method) into a
// domain.ImportJob.
func scanJob(scanner interface{ Scan(dest ...any) error }) (*domain.ImportJob, error) {
	var (
		j          domain.ImportJob
		progress   string
		jobErrors  string
		startedAt  string
		finishedAt sql.NullString
	)

	err := scanner.Scan(
		&j.ID,
		&j.ArchivePath,
		&j.Checksum,
		&j.State,
		&j.Workers,
		&j.ChartCount,
		&j.AirportCount,
		&j.Error,
		&progress,
		&jobErrors,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(progress), &j.Progress); err != nil {
		return nil, fmt.Errorf("decode job progress: %w", err)
	}
	if err := json.Unmarshal([]byte(jobErrors), &j.Errors); err != nil {
		return nil, fmt.Errorf("decode job errors: %w", err)
	}

	j.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	j.FinishedAt, err = timeFromNull(finishedAt)
	if err != nil {
		return nil, err
	}

	return &j, nil
}

// RecordJob inserts or updates a job record. The importer calls this on
// every state transition, so the row converges on the final state.
func (s *Store) RecordJob(ctx context.Context, job *domain.ImportJob) error {
	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("encode job progress: %w", err)
	}
	jobErrors, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("encode job errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (
			id, archive_path, checksum, state, workers,
			chart_count, airport_count, error, progress, errors,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			checksum = excluded.checksum,
			state = excluded.state,
			workers = excluded.workers,
			chart_count = excluded.chart_count,
			airport_count = excluded.airport_count,
			error = excluded.error,
			progress = excluded.progress,
			errors = excluded.errors,
			finished_at = excluded.finished_at`,
		job.ID,
		job.ArchivePath,
		job.Checksum,
		string(job.State),
		job.Workers,
		job.ChartCount,
		job.AirportCount,
		job.Error,
		string(progress),
		string(jobErrors),
		formatTime(job.StartedAt),
		nullIfZeroTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves one job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("job %s", id)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns up to limit jobs, most recent first. limit <= 0 means
// no limit.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*domain.ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LatestJob returns the most recently started job, or nil when the
// history is empty.
func (s *Store) LatestJob(ctx context.Context) (*domain.ImportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs ORDER BY started_at DESC LIMIT 1`)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest job: %w", err)
	}
	return job, nil
}

// PruneJobs keeps the most recent keep records and deletes the rest,
// returning how many were removed.
func (s *Store) PruneJobs(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM import_jobs WHERE id NOT IN (
			SELECT id FROM import_jobs ORDER BY started_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("job history pruned", "removed", n, "kept", keep)
	}
	return int(n), nil
}
