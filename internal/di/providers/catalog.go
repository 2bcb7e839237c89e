package providers

import (
	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/pins"
)

// ProvideIndexStore provides the on-disk catalog snapshot store.
func ProvideIndexStore(i do.Injector) (*catalog.IndexStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return catalog.NewIndexStore(cfg.Storage.DataPath, log), nil
}

// ProvideCatalog provides the in-memory catalog, primed from the last
// persisted snapshot so charts are served without waiting for an import.
func ProvideCatalog(i do.Injector) (*catalog.Catalog, error) {
	log := do.MustInvoke[*logger.Logger](i)
	indexStore := do.MustInvoke[*catalog.IndexStore](i)

	cat := catalog.New()

	snap := indexStore.Load()
	cat.Swap(snap)

	if len(snap.Charts) > 0 {
		log.Info("Catalog loaded from disk",
			"airac", snap.AIRAC,
			"airports", len(snap.Airports),
			"charts", len(snap.Charts),
		)
	} else {
		log.Info("Catalog is empty, waiting for first import")
	}

	return cat, nil
}

// ProvidePinCache provides the pinned-chart cache, primed from disk.
func ProvidePinCache(i do.Injector) (*pins.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache := pins.NewCache(cfg.Storage.DataPath, cfg.Pins.Max, log)
	cache.Load()

	return cache, nil
}
