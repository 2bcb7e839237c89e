package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: catalog-test <charts-root>")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: logger.ParseLevel("info")})

	c := catalog.NewCataloger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	snap, errs, err := c.BuildFromRoot(ctx, os.Args[1])
	if err != nil {
		log.Error("catalog build failed", "error", err)
		os.Exit(1)
	}

	for _, e := range errs {
		fmt.Printf("skipped: %s (%s)\n", e.Path, e.Message)
	}

	for i := range snap.Airports {
		a := &snap.Airports[i]
		fmt.Printf("%s: %d charts in %v\n", a.Label(), a.ChartCount, a.Categories)
	}

	fmt.Printf("\n=== Catalog Complete ===\n")
	fmt.Printf("Duration: %s\n", time.Since(start))
	fmt.Printf("AIRAC: %s\n", snap.AIRAC)
	fmt.Printf("Airports: %d\n", len(snap.Airports))
	fmt.Printf("Charts: %d\n", len(snap.Charts))
	fmt.Printf("Skipped: %d\n", len(errs))
}
