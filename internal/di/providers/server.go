package providers

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/api"
	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/mdns"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
	"github.com/chartbagapp/chartbag-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	importsHandle := do.MustInvoke[*ImportServiceHandle](i)
	pinCache := do.MustInvoke[*pins.Cache](i)
	renderCache := do.MustInvoke[*render.Cache](i)
	thumbs := do.MustInvoke[*render.Thumbnailer](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	metaHandle := do.MustInvoke[*MetaStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	sseHandler := sse.NewHandler(sseHandle.Manager, log)

	apiServer := api.NewServer(cfg, cat, importsHandle.ImportService, pinCache, renderCache, thumbs, searchHandle.Index, metaHandle.Store, sseHandle.Manager, sseHandler, log)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, api: apiServer}, nil
}

// MDNSServiceHandle wraps mdns.Service with Shutdownable.
type MDNSServiceHandle struct {
	*mdns.Service
	instance *domain.Instance
	port     int
	started  bool
}

// Shutdown implements do.Shutdownable.
func (h *MDNSServiceHandle) Shutdown() error {
	if h.started && h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideMDNSService provides the mDNS advertisement service.
func ProvideMDNSService(i do.Injector) (*MDNSServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	metaHandle := do.MustInvoke[*MetaStoreHandle](i)

	// Always initialize the instance identity regardless of mDNS config.
	instance, err := metaHandle.InitializeInstance(cfg.Server.Name, api.APIVersion)
	if err != nil {
		return nil, err
	}

	log.Info("Server instance ready",
		"instance_id", instance.ID,
		"name", instance.Name,
		"version", instance.Version,
	)

	// Parse port
	port := 8181
	if _, err := fmt.Sscanf(cfg.Server.Port, "%d", &port); err != nil {
		log.Warn("Failed to parse server port for mDNS, using default", "port", cfg.Server.Port)
	}

	if !cfg.Server.AdvertiseMDNS {
		log.Info("mDNS advertisement disabled by configuration")
		return &MDNSServiceHandle{Service: nil, instance: instance, port: port, started: false}, nil
	}

	svc := mdns.NewService(log)

	if err := svc.Start(instance, port, cat.Snapshot().AIRAC); err != nil {
		// Non-fatal: the server works without mDNS (e.g. Docker, no multicast).
		log.Warn("mDNS advertisement unavailable", "error", err)
		return &MDNSServiceHandle{Service: svc, instance: instance, port: port, started: false}, nil
	}

	return &MDNSServiceHandle{Service: svc, instance: instance, port: port, started: true}, nil
}
