package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"encoding/json/v2"

	"github.com/dgraph-io/badger/v4"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

func main() {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "./data"
	}
	dbPath := filepath.Join(dataPath, "meta")

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Metadata Store Inspection ===")
	fmt.Println()

	// Instance identity
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("instance:config"))
		if err == badger.ErrKeyNotFound {
			fmt.Println("Instance: not initialized")
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var instance domain.Instance
			if err := json.Unmarshal(val, &instance); err != nil {
				return err
			}
			fmt.Printf("Instance: %s\n", instance.Name)
			fmt.Printf("  ID: %s\n", instance.ID)
			fmt.Printf("  Version: %s\n", instance.Version)
			fmt.Printf("  Created: %s\n", instance.CreatedAt)
			return nil
		})
	})
	if err != nil {
		log.Printf("Error reading instance: %v", err)
	}
	fmt.Println()

	// Walk render entries and tally
	entryCount := 0
	staleCount := 0
	missingBitmaps := 0
	var bitmapBytes int64
	bySource := make(map[string]int)

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("render:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("render:")); it.ValidForPrefix([]byte("render:")); it.Next() {
			item := it.Item()

			err := item.Value(func(val []byte) error {
				var entry domain.RenderEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}

				entryCount++
				bySource[entry.SourcePath]++

				src, err := os.Stat(entry.SourcePath)
				if err != nil || !entry.ValidFor(src.ModTime().UnixNano(), src.Size()) {
					staleCount++
					if staleCount <= 3 {
						fmt.Printf("Stale entry: %s\n", entry.Key)
						fmt.Printf("  Source: %s\n", entry.SourcePath)
						fmt.Printf("  Params: %d dpi, page %d\n", entry.Params.DPI, entry.Params.Page)
						fmt.Printf("  Rendered: %s\n", entry.RenderedAt)
						fmt.Println()
					}
				}

				if bmp, err := os.Stat(entry.BitmapPath); err == nil {
					bitmapBytes += bmp.Size()
				} else {
					missingBitmaps++
				}

				return nil
			})
			if err != nil {
				log.Printf("Error reading entry %s: %v", string(item.Key()), err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Render entries: %d\n", entryCount)
	fmt.Printf("Distinct source charts: %d\n", len(bySource))
	fmt.Printf("Stale entries: %d\n", staleCount)
	fmt.Printf("Entries missing their bitmap: %d\n", missingBitmaps)
	fmt.Printf("Bitmap bytes on disk: %.1f MiB\n", float64(bitmapBytes)/(1024*1024))
	if entryCount > 0 {
		fmt.Printf("Average renders per chart: %.1f\n", float64(entryCount)/float64(len(bySource)))
	}
}
