package search

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// Index wraps a Bleve index over the current catalog generation.
//
// All public methods are safe for concurrent use. The write lock is only
// taken while a generation is being replaced, so queries keep flowing
// during normal operation.
type Index struct {
	index bleve.Index
	path  string
	log   *logger.Logger
	mu    sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string // Directory for index storage
	Log      *logger.Logger
}

// mappingVersion is bumped whenever the index mapping changes. A mismatch on
// startup drops the index; the next import (or catalog replay) refills it.
const mappingVersion = "1"

// NewIndex opens the search index under DataPath, creating it when missing
// and recreating it when corrupt or built with an older mapping.
func NewIndex(opts Options) (*Index, error) {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			log.Info("search index has no version file, recreating", "new_version", mappingVersion)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			log.Info("search index mapping changed, recreating",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			log.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			log.Warn("failed to write search version file", "error", writeErr)
		}
		log.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		log.Info("opened search index", "path", indexPath)
	}

	return &Index{
		index: index,
		path:  indexPath,
		log:   log,
	}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexDocument indexes a single document, replacing any previous entry
// with the same ID.
func (s *Index) IndexDocument(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDocuments indexes documents in batches. Large catalogs are chunked
// to keep memory flat during full reindexing.
func (s *Index) IndexDocuments(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexBatches(docs)
}

func (s *Index) indexBatches(docs []*Document) error {
	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))
		chunk := docs[i:end]

		batch := s.index.NewBatch()
		for _, doc := range chunk {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteDocument removes one document from the index.
func (s *Index) DeleteDocument(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DeleteDocuments removes multiple documents in one batch.
func (s *Index) DeleteDocuments(ids []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	return s.index.Batch(batch)
}

// DocumentCount returns the number of indexed documents.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// ReplaceAll swaps the whole index for a new catalog generation: the old
// index is dropped and the given documents indexed into a fresh one.
// Queries block for the duration, which is acceptable since imports are
// rare and the EFB shows import progress anyway.
func (s *Index) ReplaceAll(docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := s.indexBatches(docs); err != nil {
		return err
	}

	s.log.Info("rebuilt search index", "path", s.path, "documents", len(docs))
	return nil
}
