// Package service coordinates operations that span multiple components.
package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/importer"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/search"
	"github.com/chartbagapp/chartbag-server/internal/sse"
	"github.com/chartbagapp/chartbag-server/internal/store/sqlite"
)

// Announcer refreshes LAN discovery metadata after a catalog change.
type Announcer interface {
	Announce(airac string)
}

// ImportService runs chart package imports in the background and fans the
// results out to the catalog consumers: the search index, SSE clients,
// and LAN discovery. One import runs at a time.
type ImportService struct {
	importer  *importer.Importer
	catalog   *catalog.Catalog
	search    *search.Index
	jobs      *sqlite.Store
	sse       *sse.Manager
	announcer Announcer
	defaults  config.ImportConfig
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	active *domain.ImportJob
}

// ImportOptions carries per-run settings from the API. Zero values fall
// back to the configured defaults.
type ImportOptions struct {
	CleanRoot  bool
	MaxWorkers string
}

// NewImportService creates the import coordinator. jobs, searchIndex, and
// announcer may be nil; the corresponding fan-out steps are skipped.
func NewImportService(imp *importer.Importer, cat *catalog.Catalog, searchIndex *search.Index, jobs *sqlite.Store, sseManager *sse.Manager, announcer Announcer, defaults config.ImportConfig, log *logger.Logger) *ImportService {
	if log == nil {
		log = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ImportService{
		importer:  imp,
		catalog:   cat,
		search:    searchIndex,
		jobs:      jobs,
		sse:       sseManager,
		announcer: announcer,
		defaults:  defaults,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start validates the package path and launches the import in the
// background, returning the pending job immediately. Progress flows
// through the SSE manager and the job endpoints. A second Start while a
// job is running is rejected with a conflict.
func (s *ImportService) Start(_ context.Context, archivePath string, opts ImportOptions) (*domain.ImportJob, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, errors.Validationf("package not found: %s", archivePath)
	}
	if info.IsDir() || !strings.EqualFold(filepath.Ext(archivePath), ".zip") {
		return nil, errors.Validationf("package must be a .zip file: %s", archivePath)
	}

	s.mu.Lock()
	if s.active != nil && !s.active.State.Terminal() {
		running := s.active.ID
		s.mu.Unlock()
		return nil, errors.Conflictf("import %s is already running", running)
	}
	pending := &domain.ImportJob{
		ID:          id.MustGenerate("job"),
		ArchivePath: archivePath,
		State:       domain.JobPending,
		StartedAt:   time.Now().UTC(),
	}
	s.active = pending
	s.mu.Unlock()

	if s.sse != nil {
		s.sse.SetImporting(true)
		s.sse.Emit(sse.NewImportStartedEvent(pending))
	}

	go s.run(pending.ID, archivePath, opts)

	return copyJob(pending), nil
}

// run executes one import on the service's own context so the job
// survives the HTTP request that started it.
func (s *ImportService) run(jobID, archivePath string, opts ImportOptions) {
	defer func() {
		if s.sse != nil {
			s.sse.SetImporting(false)
		}
	}()

	var prevChecksum string
	if s.jobs != nil {
		if last, err := s.jobs.LatestJob(s.ctx); err == nil && last != nil {
			prevChecksum = last.Checksum
		}
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers == "" {
		maxWorkers = s.defaults.MaxWorkers
	}
	ratio := s.defaults.AutoWorkersRatio

	job, err := s.importer.Run(s.ctx, archivePath, importer.Options{
		JobID:            jobID,
		MaxWorkers:       maxWorkers,
		AutoWorkersRatio: ratio,
		CleanRoot:        opts.CleanRoot,
		OnProgress: func(status domain.ImportStatus) {
			s.mu.Lock()
			if s.active != nil && s.active.ID == jobID {
				s.active.Progress = status
				if state := stageState(status.StepName); state != "" {
					s.active.State = state
				}
			}
			s.mu.Unlock()
			if s.sse != nil {
				s.sse.Emit(sse.NewImportProgressEvent(jobID, status))
			}
		},
		OnComplete: func(summary domain.ImportSummary) {
			if s.sse == nil {
				return
			}
			if summary.Success {
				s.sse.Emit(sse.NewImportCompletedEvent(jobID, summary))
			} else {
				s.sse.Emit(sse.NewImportFailedEvent(jobID, summary.Message))
			}
		},
	})

	s.mu.Lock()
	s.active = job
	s.mu.Unlock()

	if err != nil {
		s.log.Error("import failed", "job", jobID, "archive", archivePath, "error", err)
		return
	}

	if prevChecksum != "" && job.Checksum == prevChecksum {
		s.log.Warn("package checksum matches the previous import",
			"job", jobID,
			"archive", archivePath,
			"checksum", job.Checksum)
	}

	s.refreshConsumers()
}

// refreshConsumers pushes the freshly swapped catalog generation into the
// search index, SSE clients, and the LAN advertisement.
func (s *ImportService) refreshConsumers() {
	snap := s.catalog.Snapshot()

	if s.search != nil {
		docs := make([]*search.Document, 0, len(snap.Charts)+len(snap.Airports))
		byCode := make(map[string]domain.Airport, len(snap.Airports))
		for _, a := range snap.Airports {
			byCode[a.Code] = a
			docs = append(docs, search.AirportDocument(a))
		}
		for _, c := range snap.Charts {
			docs = append(docs, search.ChartDocument(c, byCode[c.AirportCode]))
		}
		if err := s.search.ReplaceAll(docs); err != nil {
			s.log.Error("search index rebuild failed", "error", err)
		} else {
			s.log.Info("search index rebuilt", "documents", len(docs))
		}
	}

	if s.sse != nil {
		s.sse.Emit(sse.NewCatalogReplacedEvent(snap.AIRAC, len(snap.Airports), len(snap.Charts), snap.GeneratedAt))
	}

	if s.announcer != nil {
		s.announcer.Announce(snap.AIRAC)
	}
}

// Job returns the job by ID, preferring the live in-flight copy over the
// persisted record.
func (s *ImportService) Job(ctx context.Context, jobID string) (*domain.ImportJob, error) {
	s.mu.RLock()
	if s.active != nil && s.active.ID == jobID {
		job := copyJob(s.active)
		s.mu.RUnlock()
		return job, nil
	}
	s.mu.RUnlock()

	if s.jobs == nil {
		return nil, errors.NotFoundf("job %s", jobID)
	}
	return s.jobs.GetJob(ctx, jobID)
}

// History lists recent jobs, newest first. limit <= 0 means no limit.
func (s *ImportService) History(ctx context.Context, limit int) ([]*domain.ImportJob, error) {
	if s.jobs == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.active == nil {
			return nil, nil
		}
		return []*domain.ImportJob{copyJob(s.active)}, nil
	}
	return s.jobs.ListJobs(ctx, limit)
}

// Active returns the in-flight job, or nil when none is running.
func (s *ImportService) Active() *domain.ImportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil || s.active.State.Terminal() {
		return nil
	}
	return copyJob(s.active)
}

// Shutdown cancels the running import, if any.
func (s *ImportService) Shutdown() error {
	s.cancel()
	return nil
}

// stageState maps tracker stage names onto job states. Unknown stages,
// including the terminal ones, leave the state to the import run itself.
func stageState(stage string) domain.JobState {
	switch stage {
	case "extracting":
		return domain.JobExtracting
	case "cataloging":
		return domain.JobCataloging
	case "persisting":
		return domain.JobPersisting
	}
	return ""
}

// copyJob clones a job so callers never share the mutable live record.
func copyJob(job *domain.ImportJob) *domain.ImportJob {
	out := *job
	if len(job.Errors) > 0 {
		out.Errors = make([]domain.ImportError, len(job.Errors))
		copy(out.Errors, job.Errors)
	}
	return &out
}
