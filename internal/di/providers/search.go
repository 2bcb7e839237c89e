package providers

import (
	"github.com/samber/do/v2"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/domain"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Storage.DataPath,
		Log:      log,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded refills an empty index from the loaded
// catalog. The index is dropped on mapping upgrades and corruption, so
// after such a start the catalog has charts the index does not.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	cat := do.MustInvoke[*catalog.Catalog](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}
	if cat.Len() == 0 {
		return
	}

	snap := cat.Snapshot()
	log.Info("Search index is empty but catalog has charts, triggering reindex",
		"charts", len(snap.Charts),
		"airports", len(snap.Airports),
	)

	go func() {
		docs := make([]*search.Document, 0, len(snap.Charts)+len(snap.Airports))
		byCode := make(map[string]domain.Airport, len(snap.Airports))
		for _, a := range snap.Airports {
			byCode[a.Code] = a
			docs = append(docs, search.AirportDocument(a))
		}
		for _, c := range snap.Charts {
			docs = append(docs, search.ChartDocument(c, byCode[c.AirportCode]))
		}
		if err := indexHandle.ReplaceAll(docs); err != nil {
			log.Error("Initial search reindex failed", "error", err)
		} else {
			log.Info("Initial search reindex completed", "documents", len(docs))
		}
	}()
}
