package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"encoding/json/v2"

	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/util"
)

// NamesFile is the optional metadata sidecar carrying airport names.
const NamesFile = "airports.json"

var airacPattern = regexp.MustCompile(`(\d{2})(0[1-9]|1[0-3])`)

// Cataloger turns extracted chart files into catalog snapshots.
type Cataloger struct {
	log *logger.Logger
}

// NewCataloger creates a Cataloger.
func NewCataloger(log *logger.Logger) *Cataloger {
	if log == nil {
		log = logger.Discard()
	}
	return &Cataloger{log: log}
}

// Build catalogs the given files, paths relative to root. PDFs that do not
// follow the <airport>/<category>/<file> layout are skipped and reported;
// non-PDF files are ignored. The returned errors are recoverable.
func (c *Cataloger) Build(root string, relPaths []string) (*Snapshot, []domain.ImportError) {
	names := c.loadAirportNames(root)

	var (
		charts     []domain.Chart
		errs       []domain.ImportError
		seenIDs    = make(map[string]bool)
		byAirport  = make(map[string][]string)
		oddNoticed = make(map[string]bool)
	)

	for _, rel := range relPaths {
		if !strings.EqualFold(filepath.Ext(rel), ".pdf") {
			continue
		}

		airport, category, filename, reason := parseChartPath(rel)
		if reason != "" {
			c.log.Warn("skipping chart with unrecognized path", "path", rel, "reason", reason)
			errs = append(errs, domain.ImportError{
				Path:    rel,
				Phase:   "catalog",
				Message: reason,
				Time:    time.Now().UTC(),
			})
			continue
		}

		if !domain.KnownCategory(category) && !oddNoticed[category] {
			oddNoticed[category] = true
			c.log.Debug("category outside the standard AIP set", "category", category)
		}

		stem := strings.TrimSuffix(filename, filepath.Ext(filename))
		id := chartID(airport, category, stem)
		if seenIDs[id] {
			id = fmt.Sprintf("%s-%s", id, pathDigest(rel))
		}
		seenIDs[id] = true

		abs := filepath.Join(root, filepath.FromSlash(rel))
		chart := domain.Chart{
			ID:          id,
			Code:        chartCode(stem),
			Name:        stem,
			FilePath:    abs,
			Category:    category,
			AirportCode: airport,
		}
		if info, err := os.Stat(abs); err == nil {
			chart.SizeBytes = info.Size()
		}

		charts = append(charts, chart)
		byAirport[airport] = append(byAirport[airport], category)
	}

	airports := make([]domain.Airport, 0, len(byAirport))
	for code, categories := range byAirport {
		a := domain.Airport{
			Code:       code,
			ChartCount: len(categories),
			Categories: dedupeSorted(categories),
		}
		if n, ok := names[code]; ok {
			a.NameLocal = n.NameLocal
			a.NameForeign = n.NameForeign
		}
		airports = append(airports, a)
	}

	sort.Slice(airports, func(i, j int) bool { return airports[i].Code < airports[j].Code })
	sort.Slice(charts, func(i, j int) bool {
		a, b := charts[i], charts[j]
		if a.AirportCode != b.AirportCode {
			return a.AirportCode < b.AirportCode
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Name < b.Name
	})

	return &Snapshot{
		Version:     SnapshotVersion,
		AIRAC:       detectAIRAC(relPaths),
		GeneratedAt: time.Now().UTC(),
		Airports:    airports,
		Charts:      charts,
	}, errs
}

// BuildFromRoot walks the charts root and catalogs what it finds. Used for
// rescans outside the import pipeline.
func (c *Cataloger) BuildFromRoot(ctx context.Context, root string) (*Snapshot, []domain.ImportError, error) {
	relPaths, err := walkChartFiles(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	snap, errs := c.Build(root, relPaths)
	return snap, errs, nil
}

// parseChartPath splits a relative path per the <airport>/<category>/<file>
// convention. Deeper paths are matched on their last three segments, so a
// wrapping cycle directory in the package does not break parsing.
func parseChartPath(rel string) (airport, category, filename, reason string) {
	segs := strings.Split(filepath.ToSlash(rel), "/")
	if len(segs) < 3 {
		return "", "", "", "expected <airport>/<category>/<file> layout"
	}
	segs = segs[len(segs)-3:]
	airport, category, filename = segs[0], segs[1], segs[2]

	if !domain.AirportCodePattern.MatchString(airport) {
		return "", "", "", fmt.Sprintf("airport code %q is not a 4-letter indicator", airport)
	}
	if category == "" {
		return "", "", "", "empty category segment"
	}
	return airport, category, filename, ""
}

// chartID builds the stable chart identity for one generation.
func chartID(airport, category, stem string) string {
	return fmt.Sprintf("%s_%s_%s", airport, util.Slugify(category), util.Slugify(stem))
}

// chartCode is the leading token of the stem, the short designator shown
// in dense listings.
func chartCode(stem string) string {
	if i := strings.IndexAny(stem, " \t"); i > 0 {
		return stem[:i]
	}
	return stem
}

func pathDigest(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

type airportNames struct {
	NameLocal   string `json:"name_local"`
	NameForeign string `json:"name_foreign"`
}

// loadAirportNames reads the airports.json sidecar at the charts root.
// Both the bare map and the wrapped {"airports": {...}} form are accepted.
func (c *Cataloger) loadAirportNames(root string) map[string]airportNames {
	f, err := os.Open(filepath.Join(root, NamesFile))
	if err != nil {
		return nil
	}
	defer f.Close()

	var wrapped struct {
		Airports map[string]airportNames `json:"airports"`
	}
	if err := json.UnmarshalRead(f, &wrapped); err == nil && len(wrapped.Airports) > 0 {
		return wrapped.Airports
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil
	}
	var bare map[string]airportNames
	if err := json.UnmarshalRead(f, &bare); err != nil {
		c.log.Warn("airport names sidecar unreadable", "file", NamesFile, "error", err)
		return nil
	}
	return bare
}

// detectAIRAC looks for a 4-digit cycle designator (YYCC) in the top-level
// path segments, e.g. "EAIP2505" or "2505".
func detectAIRAC(relPaths []string) string {
	firsts := make([]string, 0, 4)
	seen := make(map[string]bool)
	for _, rel := range relPaths {
		first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
		if !seen[first] {
			seen[first] = true
			firsts = append(firsts, first)
		}
	}
	sort.Strings(firsts)

	for _, s := range firsts {
		if m := airacPattern.FindStringSubmatch(s); m != nil {
			return m[0]
		}
	}
	return ""
}

// walkChartFiles collects regular files under root, paths relative to
// root. Hidden files and directories are skipped.
func walkChartFiles(ctx context.Context, root string) ([]string, error) {
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
