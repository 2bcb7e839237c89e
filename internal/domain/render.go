package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RenderParams identify one rendering of a source file.
type RenderParams struct {
	DPI  int `json:"dpi"`
	Page int `json:"page"`
}

// RenderKey derives the deterministic cache key for a source file and
// parameters. The same inputs always map to the same key.
func RenderKey(filePath string, p RenderParams) string {
	sum := sha256.Sum256([]byte(filePath))
	return fmt.Sprintf("%s-%d-p%d", hex.EncodeToString(sum[:8]), p.DPI, p.Page)
}

// RenderEntry is one cached bitmap plus the validity tag captured when it
// was produced. The entry is stale once the source file's mtime or size
// diverges from the tag.
type RenderEntry struct {
	Key        string       `json:"key"`
	SourcePath string       `json:"source_path"`
	Params     RenderParams `json:"params"`
	BitmapPath string       `json:"bitmap_path"`
	SourceMod  int64        `json:"source_mod"`
	SourceSize int64        `json:"source_size"`
	BlurHash   string       `json:"blur_hash,omitempty"`
	RenderedAt time.Time    `json:"rendered_at"`
}

// ValidFor reports whether the entry still matches the source file.
func (e *RenderEntry) ValidFor(modUnixNano, size int64) bool {
	return e.SourceMod == modUnixNano && e.SourceSize == size
}
