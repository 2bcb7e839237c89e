// Package di provides dependency injection configuration for the ChartBag server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/di/providers"
	"github.com/chartbagapp/chartbag-server/internal/importer"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Stores
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideMetaStore)
	do.Provide(injector, providers.ProvideJobStore)

	// Catalog layer
	do.Provide(injector, providers.ProvideIndexStore)
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvidePinCache)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Rendering layer
	do.Provide(injector, providers.ProvideRenderBackend)
	do.Provide(injector, providers.ProvideRenderCache)
	do.Provide(injector, providers.ProvideThumbnailer)

	// Import pipeline
	do.Provide(injector, providers.ProvideImporter)
	do.Provide(injector, providers.ProvideImportService)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideMDNSService)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.MetaStoreHandle](injector)
	_ = do.MustInvoke[*providers.JobStoreHandle](injector)

	// Catalog layer
	_ = do.MustInvoke[*catalog.IndexStore](injector)
	_ = do.MustInvoke[*catalog.Catalog](injector)
	_ = do.MustInvoke[*pins.Cache](injector)

	// Search layer
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Rendering layer
	_ = do.MustInvoke[*render.PDFToPPM](injector)
	_ = do.MustInvoke[*render.Cache](injector)
	_ = do.MustInvoke[*render.Thumbnailer](injector)

	// Import pipeline
	_ = do.MustInvoke[*providers.MDNSServiceHandle](injector)
	_ = do.MustInvoke[*importer.Importer](injector)
	_ = do.MustInvoke[*providers.ImportServiceHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Refill the search index after a mapping upgrade or index loss
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
