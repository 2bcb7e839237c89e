// Package main provides a tool to run one chart package import without the
// server. Useful for provisioning a data directory or debugging a package
// that fails to import.
//
// Usage:
//
//	DATA_PATH=~/chartbag/data go run ./cmd/importcli package.zip
//	go run ./cmd/importcli -clean -workers 2 package.zip
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/importer"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

var (
	clean   = flag.Bool("clean", false, "Remove the previous cycle's charts before extracting")
	workers = flag.String("workers", config.WorkersAuto, `Extraction workers ("auto" or a positive integer)`)
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: importcli [-clean] [-workers N] <package.zip>")
		os.Exit(1)
	}
	archivePath := flag.Arg(0)

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "./data"
	}

	log := logger.New(logger.Config{Level: logger.ParseLevel("warn")})

	cat := catalog.New()
	indexStore := catalog.NewIndexStore(dataPath, log)
	cat.Swap(indexStore.Load())

	imp := importer.New(filepath.Join(dataPath, "charts"), cat, indexStore, catalog.NewCataloger(log), nil, log)

	job, err := imp.Run(context.Background(), archivePath, importer.Options{
		MaxWorkers: *workers,
		CleanRoot:  *clean,
		OnProgress: func(status domain.ImportStatus) {
			fmt.Printf("[%s] %d%% - %s\n", status.StepName, status.Percent, status.Detail)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Import Complete ===\n")
	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("State: %s\n", job.State)
	fmt.Printf("Duration: %s\n", job.FinishedAt.Sub(job.StartedAt))
	fmt.Printf("Airports: %d\n", job.AirportCount)
	fmt.Printf("Charts: %d\n", job.ChartCount)
	fmt.Printf("Checksum: %s\n", job.Checksum)
	for _, e := range job.Errors {
		fmt.Printf("skipped: %s (%s)\n", e.Path, e.Message)
	}

	if job.State != domain.JobCompleted {
		os.Exit(1)
	}
}
