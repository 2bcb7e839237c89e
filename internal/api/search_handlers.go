package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/chartbagapp/chartbag-server/internal/color"
	apperrors "github.com/chartbagapp/chartbag-server/internal/errors"
	"github.com/chartbagapp/chartbag-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/search",
		Summary:     "Search catalog",
		Description: "Full-text search over charts and airports. Matches chart names, codes, airport codes, and airport names in any cataloged language.",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// SearchInput holds the query parameters for catalog search.
type SearchInput struct {
	Query    string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Search text"`
	Type     string `query:"type" enum:"chart,airport" doc:"Restrict to one document type"`
	Airport  string `query:"airport" maxLength:"8" doc:"Restrict to one airport (ICAO code)"`
	Category string `query:"category" maxLength:"32" doc:"Restrict to one chart category"`
	Limit    int    `query:"limit" minimum:"1" maximum:"100" doc:"Max hits per page (default 20)"`
	Offset   int    `query:"offset" minimum:"0" doc:"Hits to skip"`
	Sort     string `query:"sort" enum:"relevance,name,code,airport" doc:"Sort field (default relevance)"`
	Order    string `query:"order" enum:"asc,desc" doc:"Sort direction (default desc)"`
}

// SearchHitResponse is one matched document.
type SearchHitResponse struct {
	ID          string            `json:"id" doc:"Chart ID or airport code"`
	Type        string            `json:"type" doc:"Document type: chart or airport"`
	Score       float64           `json:"score" doc:"Relevance score"`
	Name        string            `json:"name" doc:"Chart or airport name"`
	Code        string            `json:"code,omitempty" doc:"Chart code"`
	Category    string            `json:"category,omitempty" doc:"Chart category"`
	AirportCode string            `json:"airport_code,omitempty" doc:"Owning airport"`
	AirportName string            `json:"airport_name,omitempty" doc:"Airport names, local and foreign"`
	ChartCount  int               `json:"chart_count,omitempty" doc:"Charts at the airport (airport hits only)"`
	Pinned      bool              `json:"pinned,omitempty" doc:"True when a chart hit is pinned"`
	AccentColor string            `json:"accent_color,omitempty" doc:"Accent color as #RRGGBB"`
	Highlights  map[string]string `json:"highlights,omitempty" doc:"Matched fragments with <mark> tags"`
}

// FacetEntry is one facet value and its document count.
type FacetEntry struct {
	Value string `json:"value" doc:"Facet value"`
	Count int    `json:"count" doc:"Documents with this value"`
}

// SearchFacetsResponse groups facet counts for drill-down UI.
type SearchFacetsResponse struct {
	Types      []FacetEntry `json:"types,omitempty" doc:"Counts per document type"`
	Categories []FacetEntry `json:"categories,omitempty" doc:"Counts per chart category"`
	Airports   []FacetEntry `json:"airports,omitempty" doc:"Counts per airport"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Query  string                `json:"query" doc:"Echo of the query text"`
	Total  uint64                `json:"total" doc:"Total matching documents"`
	TookMs int64                 `json:"took_ms" doc:"Query time in milliseconds"`
	Hits   []SearchHitResponse   `json:"hits" doc:"Matched documents, best first"`
	Facets *SearchFacetsResponse `json:"facets,omitempty" doc:"Facet counts over the full result set"`
}

// SearchOutput wraps a search response.
type SearchOutput struct {
	Body SearchResponse
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if s.search == nil {
		return nil, apperrors.Internal("search index not configured")
	}

	params := search.DefaultParams()
	params.Query = input.Query
	if input.Type != "" {
		params.Types = []string{input.Type}
	}
	params.AirportCode = strings.ToUpper(strings.TrimSpace(input.Airport))
	params.Category = strings.ToUpper(strings.TrimSpace(input.Category))
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Offset > 0 {
		params.Offset = input.Offset
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}

	result, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHitResponse, 0, len(result.Hits))
	for _, h := range result.Hits {
		hit := SearchHitResponse{
			ID:          h.ID,
			Type:        string(h.Type),
			Score:       h.Score,
			Name:        h.Name,
			Code:        h.Code,
			Category:    h.Category,
			AirportCode: h.AirportCode,
			AirportName: h.AirportName,
			ChartCount:  h.ChartCount,
			Highlights:  h.Highlights,
		}
		switch h.Type {
		case search.DocTypeChart:
			hit.Pinned = s.pins != nil && s.pins.IsPinned(h.ID)
			hit.AccentColor = color.ForCategory(h.Category)
		case search.DocTypeAirport:
			hit.AccentColor = color.ForAirport(h.AirportCode)
		}
		hits = append(hits, hit)
	}

	resp := SearchResponse{
		Query:  result.Query,
		Total:  result.Total,
		TookMs: result.TookMs,
		Hits:   hits,
	}
	if facets := facetsResponse(result.Facets); facets != nil {
		resp.Facets = facets
	}

	return &SearchOutput{Body: resp}, nil
}

func facetsResponse(f search.Facets) *SearchFacetsResponse {
	if len(f.Types) == 0 && len(f.Categories) == 0 && len(f.Airports) == 0 {
		return nil
	}
	return &SearchFacetsResponse{
		Types:      facetEntries(f.Types),
		Categories: facetEntries(f.Categories),
		Airports:   facetEntries(f.Airports),
	}
}

func facetEntries(counts []search.FacetCount) []FacetEntry {
	if len(counts) == 0 {
		return nil
	}
	entries := make([]FacetEntry, len(counts))
	for i, c := range counts {
		entries[i] = FacetEntry{Value: c.Value, Count: c.Count}
	}
	return entries
}
