// Package render turns chart PDFs into bitmaps and caches the results,
// keyed by source identity and render parameters.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/chartbagapp/chartbag-server/internal/logger"
)

// Backend renders one page of a source document to a PNG file.
type Backend interface {
	Render(ctx context.Context, sourcePath string, dpi, page int, destPath string) error
}

// PDFToPPM shells out to poppler's pdftoppm.
type PDFToPPM struct {
	binPath string
	log     *logger.Logger
}

// NewPDFToPPM resolves the renderer binary. An empty binPath searches
// PATH; a missing binary is an error since every render needs it.
func NewPDFToPPM(binPath string, log *logger.Logger) (*PDFToPPM, error) {
	if log == nil {
		log = logger.Discard()
	}
	if binPath == "" {
		path, err := exec.LookPath("pdftoppm")
		if err != nil {
			return nil, fmt.Errorf("pdftoppm not found in PATH: %w", err)
		}
		binPath = path
	}
	log.Info("using pdftoppm", "path", binPath)
	return &PDFToPPM{binPath: binPath, log: log}, nil
}

// Render rasterizes one page. destPath must end in .png; pdftoppm's
// -singlefile mode appends the extension to the output prefix itself.
func (p *PDFToPPM) Render(ctx context.Context, sourcePath string, dpi, page int, destPath string) error {
	prefix := strings.TrimSuffix(destPath, ".png")
	pageArg := strconv.Itoa(page + 1) // pdftoppm pages are 1-based

	cmd := exec.CommandContext(ctx, p.binPath,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", pageArg,
		"-l", pageArg,
		"-singlefile",
		sourcePath,
		prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("pdftoppm: %w: %s", err, firstLine(msg))
		}
		return fmt.Errorf("pdftoppm: %w", err)
	}

	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("pdftoppm produced no output for page %d of %s", page+1, sourcePath)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
