// Package store wraps the embedded Badger database that backs render
// cache metadata and the server's instance identity.
package store

import (
	"fmt"

	"encoding/json/v2"

	"github.com/dgraph-io/badger/v4"

	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// Store wraps a Badger database instance.
type Store struct {
	db  *badger.DB
	log *logger.Logger
}

// New opens the metadata database at path, creating it if needed.
func New(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Badger's own logging is too chatty
	opts.SyncWrites = true // survive crashes without replaying renders
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	log.Info("metadata database opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.log.Debug("closing metadata database")
	return s.db.Close()
}

func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Store) exists(key []byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			found = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	return found, err
}
