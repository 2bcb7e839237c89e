// Package importer ingests chart packages: archive extraction with a
// bounded worker pool, cataloging, and atomic index persistence.
package importer

import (
	"archive/zip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/chartbagapp/chartbag-server/internal/errors"
)

// Archive is an opened chart package.
type Archive struct {
	path    string
	zr      *zip.ReadCloser
	entries []*zip.File
}

// OpenArchive opens and validates a chart package. A container that cannot
// be opened, or one with no file entries at all, fails the job up front.
func OpenArchive(archivePath string) (*Archive, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, errors.Wrapf(err, errors.CodeArchiveCorrupt, "open %s", filepath.Base(archivePath))
	}
	// ErrInsecurePath still yields a usable reader; the per-entry guard
	// rejects the offending names individually.

	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, f)
	}
	if len(entries) == 0 {
		zr.Close()
		return nil, errors.ArchiveCorruptf("%s contains no files", filepath.Base(archivePath))
	}

	return &Archive{path: archivePath, zr: zr, entries: entries}, nil
}

// Entries returns the archive's file entries, directories excluded.
func (a *Archive) Entries() []*zip.File {
	return a.entries
}

// UncompressedSize is the total declared size of all file entries.
func (a *Archive) UncompressedSize() uint64 {
	var total uint64
	for _, f := range a.entries {
		total += f.UncompressedSize64
	}
	return total
}

// Close releases the underlying reader.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// safeRelPath normalizes a zip entry name and rejects anything that would
// land outside the extraction root.
func safeRelPath(name string) (string, error) {
	p := strings.ReplaceAll(name, `\`, "/")
	if p == "" {
		return "", fmt.Errorf("empty entry name")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute entry path %q", name)
	}
	if len(p) > 1 && p[1] == ':' {
		return "", fmt.Errorf("drive-prefixed entry path %q", name)
	}

	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry %q escapes extraction root", name)
	}
	return clean, nil
}

// extractEntry writes one zip entry under destRoot and returns the
// slash-separated relative path it landed at.
func extractEntry(f *zip.File, destRoot string) (string, error) {
	rel, err := safeRelPath(f.Name)
	if err != nil {
		return "", err
	}
	destPath := filepath.Join(destRoot, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", err
	}

	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		os.Remove(destPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(destPath)
		return "", err
	}
	return rel, nil
}

// Checksum computes the package digest used to spot re-imports of the
// same archive.
func Checksum(archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
