package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"encoding/json/v2"

	"github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/id"
	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// IndexFile is the catalog index name under the data path.
const IndexFile = "catalog.json"

// IndexStore persists catalog snapshots as a single JSON document.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a torn index behind.
type IndexStore struct {
	path string
	log  *logger.Logger
}

// NewIndexStore creates a store rooted at dataPath.
func NewIndexStore(dataPath string, log *logger.Logger) *IndexStore {
	if log == nil {
		log = logger.Discard()
	}
	return &IndexStore{
		path: filepath.Join(dataPath, IndexFile),
		log:  log,
	}
}

// Path returns the index file location.
func (s *IndexStore) Path() string {
	return s.path
}

// Load reads the persisted snapshot. A missing, truncated, or otherwise
// unreadable index is not fatal: the catalog starts empty and the next
// import rewrites it.
func (s *IndexStore) Load() *Snapshot {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("catalog index unreadable, starting empty", "path", s.path, "error", err)
		}
		return EmptySnapshot()
	}
	defer f.Close()

	var snap Snapshot
	if err := json.UnmarshalRead(f, &snap); err != nil {
		s.log.Warn("catalog index corrupt, starting empty", "path", s.path, "error", err)
		return EmptySnapshot()
	}
	if snap.Version != SnapshotVersion {
		s.log.Warn("catalog index version mismatch, starting empty",
			"path", s.path, "got", snap.Version, "want", SnapshotVersion)
		return EmptySnapshot()
	}
	return &snap
}

// Save writes the snapshot atomically: temp file in the same directory,
// fsync, then rename over the previous index.
func (s *IndexStore) Save(snap *Snapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IndexWriteFailed(err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf("%s.tmp-%s", IndexFile, id.Suffix(8)))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return errors.IndexWriteFailed(err)
	}

	if err := json.MarshalWrite(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.IndexWriteFailed(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.IndexWriteFailed(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.IndexWriteFailed(err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errors.IndexWriteFailed(err)
	}

	s.log.Debug("catalog index written", "path", s.path, "charts", len(snap.Charts))
	return nil
}
