package store

import (
	"context"
	"fmt"
	"iter"

	"encoding/json/v2"

	"github.com/dgraph-io/badger/v4"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// renderPrefix namespaces render cache entries.
const renderPrefix = "render:"

func renderKey(key string) []byte {
	return []byte(renderPrefix + key)
}

// GetRenderEntry looks up a cached render by its cache key.
func (s *Store) GetRenderEntry(key string) (*domain.RenderEntry, error) {
	var entry domain.RenderEntry
	err := s.get(renderKey(key), &entry)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get render entry %s: %w", key, err)
	}
	return &entry, nil
}

// PutRenderEntry records a completed render.
func (s *Store) PutRenderEntry(entry *domain.RenderEntry) error {
	if err := s.set(renderKey(entry.Key), entry); err != nil {
		return fmt.Errorf("put render entry %s: %w", entry.Key, err)
	}
	return nil
}

// DeleteRenderEntry removes one cache record. Deleting a missing key is
// not an error.
func (s *Store) DeleteRenderEntry(key string) error {
	if err := s.delete(renderKey(key)); err != nil {
		return fmt.Errorf("delete render entry %s: %w", key, err)
	}
	return nil
}

// RenderEntries streams all cache records.
func (s *Store) RenderEntries(ctx context.Context) iter.Seq2[*domain.RenderEntry, error] {
	return func(yield func(*domain.RenderEntry, error) bool) {
		s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(renderPrefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(renderPrefix)); it.ValidForPrefix([]byte(renderPrefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				var entry domain.RenderEntry
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entry)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entry, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// DeleteRenderEntriesBySource drops every cache record for one source
// document. Used when a chart file changes or disappears.
func (s *Store) DeleteRenderEntriesBySource(ctx context.Context, sourcePath string) (int, error) {
	var keys []string
	for entry, err := range s.RenderEntries(ctx) {
		if err != nil {
			return 0, err
		}
		if entry.SourcePath == sourcePath {
			keys = append(keys, entry.Key)
		}
	}

	for _, k := range keys {
		if err := s.DeleteRenderEntry(k); err != nil {
			return 0, err
		}
	}

	if len(keys) > 0 {
		s.log.Debug("render entries dropped for source", "source", sourcePath, "count", len(keys))
	}
	return len(keys), nil
}
