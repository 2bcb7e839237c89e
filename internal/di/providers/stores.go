package providers

import (
	"context"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/sse"
	"github.com/chartbagapp/chartbag-server/internal/store"
	"github.com/chartbagapp/chartbag-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// MetaStoreHandle wraps the metadata store with shutdown capability.
type MetaStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *MetaStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideMetaStore provides the Badger store backing render bookkeeping,
// blurhashes, and the instance identity.
func ProvideMetaStore(i do.Injector) (*MetaStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Storage.DataPath, "meta")
	db, err := store.New(dbPath, log)
	if err != nil {
		return nil, err
	}

	log.Info("Metadata store initialized", "path", dbPath)

	return &MetaStoreHandle{Store: db}, nil
}

// JobStoreHandle wraps the import job history store with shutdown capability.
type JobStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *JobStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideJobStore provides the SQLite store for import job history.
func ProvideJobStore(i do.Injector) (*JobStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Storage.DataPath, "jobs.db")
	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		return nil, err
	}

	log.Info("Job history store initialized", "path", dbPath)

	return &JobStoreHandle{Store: db}, nil
}
