// Package main provides the entry point for the ChartBag server application.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/di"
	"github.com/chartbagapp/chartbag-server/internal/di/providers"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Shutdown all services in reverse order
	// The DI container handles shutdown order automatically
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// Manually shutdown remaining services that need explicit cleanup
	// (services that implement do.Shutdownable are handled automatically)

	// Stores and the search index need explicit shutdown since they use wrapper types
	if metaHandle, err := do.Invoke[*providers.MetaStoreHandle](injector); err == nil {
		log.Info("Closing metadata store...")
		if err := metaHandle.Shutdown(); err != nil {
			log.Error("Failed to close metadata store", "error", err)
		} else {
			log.Info("Metadata store closed successfully")
		}
	}

	if jobHandle, err := do.Invoke[*providers.JobStoreHandle](injector); err == nil {
		log.Info("Closing job history store...")
		if err := jobHandle.Shutdown(); err != nil {
			log.Error("Failed to close job history store", "error", err)
		} else {
			log.Info("Job history store closed successfully")
		}
	}

	if searchHandle, err := do.Invoke[*providers.SearchIndexHandle](injector); err == nil {
		log.Info("Closing search index...")
		if err := searchHandle.Shutdown(); err != nil {
			log.Error("Failed to close search index", "error", err)
		} else {
			log.Info("Search index closed successfully")
		}
	}

	log.Info("Clear skies and tailwinds...")
}
