package providers

import (
	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/render"
)

// ProvideRenderBackend provides the pdftoppm rasterizer. A missing binary
// fails startup; rendering and thumbnails cannot work without it.
func ProvideRenderBackend(i do.Injector) (*render.PDFToPPM, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return render.NewPDFToPPM(cfg.Render.PDFToPPMPath, log)
}

// ProvideRenderCache provides the content-addressed render cache.
func ProvideRenderCache(i do.Injector) (*render.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	backend := do.MustInvoke[*render.PDFToPPM](i)
	metaHandle := do.MustInvoke[*MetaStoreHandle](i)

	cache, err := render.NewCache(cfg.Storage.CachePath, backend, metaHandle.Store, log)
	if err != nil {
		return nil, err
	}

	log.Info("Render cache initialized", "path", cfg.Storage.CachePath)

	return cache, nil
}

// ProvideThumbnailer provides the thumbnail generator.
func ProvideThumbnailer(i do.Injector) (*render.Thumbnailer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	backend := do.MustInvoke[*render.PDFToPPM](i)
	metaHandle := do.MustInvoke[*MetaStoreHandle](i)

	return render.NewThumbnailer(cfg.Storage.CachePath, backend, metaHandle.Store, log)
}
