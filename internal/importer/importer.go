package importer

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// JobRecorder persists import job records. Saves are best-effort; a
// failed save never fails the import itself.
type JobRecorder interface {
	RecordJob(ctx context.Context, job *domain.ImportJob) error
}

// Options configures a single import run.
type Options struct {
	// MaxWorkers is "auto" or a positive integer string.
	MaxWorkers       string
	AutoWorkersRatio float64

	// JobID overrides the generated job ID so callers can hand the ID
	// out before the run finishes. Empty means generate one.
	JobID string

	// CleanRoot removes the previous cycle's charts before extracting.
	CleanRoot bool

	OnProgress ProgressFunc
	OnComplete CompletionFunc
}

// Importer runs chart package imports end to end.
type Importer struct {
	chartsRoot string
	catalog    *catalog.Catalog
	index      *catalog.IndexStore
	cataloger  *catalog.Cataloger
	jobs       JobRecorder
	log        *logger.Logger
}

// New creates an Importer extracting into chartsRoot. jobs may be nil.
func New(chartsRoot string, cat *catalog.Catalog, index *catalog.IndexStore, cataloger *catalog.Cataloger, jobs JobRecorder, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Discard()
	}
	return &Importer{
		chartsRoot: chartsRoot,
		catalog:    cat,
		index:      index,
		cataloger:  cataloger,
		jobs:       jobs,
		log:        log,
	}
}

// Run imports one chart package: extract with a worker pool, catalog,
// persist the index, then swap the live catalog. Per-file failures are
// recorded on the job and do not abort the run; the job fails only when
// the container cannot be opened, nothing at all extracts, or the index
// cannot be written. Cancellation stops the run but leaves already
// extracted files on disk.
func (imp *Importer) Run(ctx context.Context, archivePath string, opts Options) (*domain.ImportJob, error) {
	start := time.Now().UTC()
	jobID := opts.JobID
	if jobID == "" {
		jobID = id.MustGenerate("job")
	}
	job := &domain.ImportJob{
		ID:          jobID,
		ArchivePath: archivePath,
		State:       domain.JobPending,
		StartedAt:   start,
	}

	tracker := NewTracker(1, opts.OnProgress, opts.OnComplete)
	fail := func(err error) (*domain.ImportJob, error) {
		tracker.Fail(err.Error(), len(job.Errors))
		job.State = domain.JobFailed
		job.Error = err.Error()
		job.Progress = tracker.Status()
		job.FinishedAt = time.Now().UTC()
		imp.record(ctx, job)
		return job, err
	}

	if sum, err := Checksum(archivePath); err == nil {
		job.Checksum = sum
	} else {
		imp.log.Warn("package checksum failed", "path", archivePath, "error", err)
	}
	imp.record(ctx, job)

	imp.log.Info("import started", "job", job.ID, "archive", archivePath)

	arc, err := OpenArchive(archivePath)
	if err != nil {
		return fail(err)
	}
	defer arc.Close()
	entries := arc.Entries()

	if err := imp.prepareRoot(opts.CleanRoot); err != nil {
		return fail(errors.Wrap(err, errors.CodeInternal, "prepare charts root"))
	}

	if free, ferr := FreeSpace(imp.chartsRoot); ferr == nil && free > 0 {
		if need := 2 * arc.UncompressedSize(); free < need {
			return fail(errors.ArchiveTooLarge(need, free))
		}
	}

	workers := PoolSize(opts.MaxWorkers, opts.AutoWorkersRatio)
	job.Workers = workers
	tracker.SetTotal(len(entries) + 2)

	job.State = domain.JobExtracting
	tracker.SetStage("extracting")
	imp.record(ctx, job)

	extracted, extractErrs, err := imp.extractAll(ctx, entries, workers, tracker)
	job.Errors = append(job.Errors, extractErrs...)
	if err != nil {
		return fail(err)
	}
	if len(extracted) == 0 {
		return fail(errors.ArchiveCorruptf("no files extracted from %s", filepath.Base(archivePath)))
	}

	job.State = domain.JobCataloging
	tracker.SetStage("cataloging")
	imp.record(ctx, job)

	snap, catErrs := imp.cataloger.Build(imp.chartsRoot, extracted)
	job.Errors = append(job.Errors, catErrs...)
	tracker.Advance(fmt.Sprintf("%d charts cataloged", len(snap.Charts)))

	job.State = domain.JobPersisting
	tracker.SetStage("persisting")
	if err := imp.index.Save(snap); err != nil {
		return fail(err)
	}
	imp.catalog.Swap(snap)

	job.State = domain.JobCompleted
	job.ChartCount = len(snap.Charts)
	job.AirportCount = len(snap.Airports)
	job.FinishedAt = time.Now().UTC()

	tracker.Complete(domain.ImportSummary{
		Message:      fmt.Sprintf("imported %d charts for %d airports", len(snap.Charts), len(snap.Airports)),
		ChartCount:   len(snap.Charts),
		AirportCount: len(snap.Airports),
		ErrorCount:   len(job.Errors),
	})
	job.Progress = tracker.Status()
	imp.record(ctx, job)

	imp.log.Info("import completed",
		"job", job.ID,
		"charts", len(snap.Charts),
		"airports", len(snap.Airports),
		"errors", len(job.Errors),
		"workers", workers,
		"duration", time.Since(start))
	return job, nil
}

// extractAll fans entries out to the worker pool. Per-entry failures are
// returned as recoverable errors; only cancellation aborts the pool.
func (imp *Importer) extractAll(ctx context.Context, entries []*zip.File, workers int, tracker *Tracker) ([]string, []domain.ImportError, error) {
	type result struct {
		rel  string
		name string
		err  error
	}

	jobs := make(chan *zip.File, len(entries))
	results := make(chan result, len(entries))

	for range workers {
		go func() {
			for f := range jobs {
				select {
				case <-ctx.Done():
					results <- result{name: f.Name, err: ctx.Err()}
					return
				default:
				}

				rel, err := extractEntry(f, imp.chartsRoot)
				results <- result{rel: rel, name: f.Name, err: err}
			}
		}()
	}

	for _, f := range entries {
		select {
		case jobs <- f:
		case <-ctx.Done():
			close(jobs)
			return nil, nil, ctx.Err()
		}
	}
	close(jobs)

	var (
		extracted []string
		errs      []domain.ImportError
	)
	for range len(entries) {
		select {
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, context.Canceled) || errors.Is(r.err, context.DeadlineExceeded) {
					return extracted, errs, r.err
				}
				imp.log.Warn("entry not extracted", "entry", r.name, "error", r.err)
				errs = append(errs, domain.ImportError{
					Path:    r.name,
					Phase:   "extract",
					Message: r.err.Error(),
					Time:    time.Now().UTC(),
				})
				tracker.Advance(r.name)
				continue
			}
			extracted = append(extracted, r.rel)
			tracker.Advance(r.rel)
		case <-ctx.Done():
			return extracted, errs, ctx.Err()
		}
	}
	return extracted, errs, nil
}

// prepareRoot ensures the charts root exists and, when requested, clears
// the previous cycle. A hand-placed airports.json sidecar survives.
func (imp *Importer) prepareRoot(clean bool) error {
	if err := os.MkdirAll(imp.chartsRoot, 0o755); err != nil {
		return err
	}
	if !clean {
		return nil
	}

	dirEntries, err := os.ReadDir(imp.chartsRoot)
	if err != nil {
		return err
	}
	for _, e := range dirEntries {
		if e.Name() == catalog.NamesFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(imp.chartsRoot, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) record(ctx context.Context, job *domain.ImportJob) {
	if imp.jobs == nil {
		return
	}
	if err := imp.jobs.RecordJob(context.WithoutCancel(ctx), job); err != nil {
		imp.log.Warn("job record not saved", "job", job.ID, "error", err)
	}
}
