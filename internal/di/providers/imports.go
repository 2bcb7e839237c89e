package providers

import (
	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/importer"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/service"
)

// ProvideImporter provides the chart package importer.
func ProvideImporter(i do.Injector) (*importer.Importer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	indexStore := do.MustInvoke[*catalog.IndexStore](i)
	jobHandle := do.MustInvoke[*JobStoreHandle](i)

	return importer.New(cfg.ChartsDir(), cat, indexStore, catalog.NewCataloger(log), jobHandle.Store, log), nil
}

// mdnsAnnouncer adapts the mDNS handle to the service.Announcer interface.
type mdnsAnnouncer struct {
	mdns *MDNSServiceHandle
	log  *logger.Logger
}

// Announce implements service.Announcer. The advertisement is restarted so
// clients browsing the network see the new AIRAC in the TXT records.
func (a *mdnsAnnouncer) Announce(airac string) {
	if a.mdns.Service == nil || !a.mdns.started {
		return
	}
	if err := a.mdns.Start(a.mdns.instance, a.mdns.port, airac); err != nil {
		a.log.Warn("Failed to refresh mDNS after import", "error", err)
	}
}

// ImportServiceHandle wraps the import service with shutdown capability.
type ImportServiceHandle struct {
	*service.ImportService
}

// Shutdown implements do.Shutdownable.
func (h *ImportServiceHandle) Shutdown() error {
	return h.ImportService.Shutdown()
}

// ProvideImportService provides the background import coordinator.
func ProvideImportService(i do.Injector) (*ImportServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	imp := do.MustInvoke[*importer.Importer](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	jobHandle := do.MustInvoke[*JobStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	mdnsHandle := do.MustInvoke[*MDNSServiceHandle](i)

	announcer := &mdnsAnnouncer{mdns: mdnsHandle, log: log}
	svc := service.NewImportService(imp, cat, searchHandle.Index, jobHandle.Store, sseHandle.Manager, announcer, cfg.Import, log)

	return &ImportServiceHandle{ImportService: svc}, nil
}
