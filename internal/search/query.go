package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query.
type Params struct {
	Query string   // User's search text
	Types []string // Document types to include (empty = all)

	// Filters
	AirportCode string // Restrict to one airport (exact code)
	Category    string // Restrict to one category (exact, as cataloged)

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "code", "airport"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool
	FacetFields   []string
	Highlight     bool
}

// DefaultParams returns the defaults the API layer starts from.
func DefaultParams() Params {
	return Params{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		FacetFields:   []string{"type", "category", "airport_code"},
		Highlight:     true,
	}
}

// Result is one page of search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
	Facets Facets `json:"facets,omitzero"`
}

// Hit is a single matched document.
type Hit struct {
	ID          string            `json:"id"`
	Type        DocType           `json:"type"`
	Score       float64           `json:"score"`
	Name        string            `json:"name"`
	Code        string            `json:"code,omitempty"`
	Category    string            `json:"category,omitempty"`
	AirportCode string            `json:"airport_code,omitempty"`
	AirportName string            `json:"airport_name,omitempty"`
	ChartCount  int               `json:"chart_count,omitempty"`
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// Facets carries facet counts for the result set.
type Facets struct {
	Types      []FacetCount `json:"types,omitempty"`
	Categories []FacetCount `json:"categories,omitempty"`
	Airports   []FacetCount `json:"airports,omitempty"`
}

// FacetCount is one facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a query against the current generation.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.IncludeFacets {
		for _, field := range params.FacetFields {
			searchRequest.AddFacet(field, bleve.NewFacetRequest(field, 20))
		}
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("airport_name")
	}

	searchRequest.Fields = []string{
		"type", "name", "code", "category", "airport_code", "airport_name", "chart_count",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if t, ok := hit.Fields["type"].(string); ok {
			h.Type = DocType(t)
		}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if c, ok := hit.Fields["code"].(string); ok {
			h.Code = c
		}
		if c, ok := hit.Fields["category"].(string); ok {
			h.Category = c
		}
		if a, ok := hit.Fields["airport_code"].(string); ok {
			h.AirportCode = a
		}
		if a, ok := hit.Fields["airport_name"].(string); ok {
			h.AirportName = a
		}
		if n, ok := hit.Fields["chart_count"].(float64); ok {
			h.ChartCount = int(n)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
//
// Text matching targets names: chart titles, airport display names and the
// denormalized airport names on charts. Chart codes get a separate uppercased
// prefix clause since pilots type them verbatim ("ZBAA-7A" should hit before
// any fuzzy name match).
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		airportNameMatch := bleve.NewMatchQuery(params.Query)
		airportNameMatch.SetField("airport_name")
		airportNameMatch.SetBoost(1.5)
		textQueries = append(textQueries, airportNameMatch)

		// Typo tolerance on names.
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		if len(params.Query) >= 2 {
			// Autocomplete on names. The standard analyzer lowercases terms.
			namePrefix := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			namePrefix.SetField("name")
			namePrefix.SetBoost(0.5)
			textQueries = append(textQueries, namePrefix)

			// Codes are keyword-analyzed, so terms keep their case.
			codePrefix := bleve.NewPrefixQuery(strings.ToUpper(params.Query))
			codePrefix.SetField("code")
			codePrefix.SetBoost(2.0)
			textQueries = append(textQueries, codePrefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if params.AirportCode != "" {
		tq := bleve.NewTermQuery(strings.ToUpper(params.AirportCode))
		tq.SetField("airport_code")
		queries = append(queries, tq)
	}

	if params.Category != "" {
		tq := bleve.NewTermQuery(params.Category)
		tq.SetField("category")
		queries = append(queries, tq)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "name":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "code":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-code", "-name"})
		} else {
			req.SortBy([]string{"code", "name"})
		}
	case "airport":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-airport_code", "-name"})
		} else {
			req.SortBy([]string{"airport_code", "name"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

// extractFacets converts Bleve facets to our shape.
func extractFacets(result *bleve.SearchResult) Facets {
	facets := Facets{}

	if typeFacet, ok := result.Facets["type"]; ok {
		for _, term := range typeFacet.Terms.Terms() {
			facets.Types = append(facets.Types, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	if categoryFacet, ok := result.Facets["category"]; ok {
		for _, term := range categoryFacet.Terms.Terms() {
			facets.Categories = append(facets.Categories, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	if airportFacet, ok := result.Facets["airport_code"]; ok {
		for _, term := range airportFacet.Terms.Terms() {
			facets.Airports = append(facets.Airports, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return facets
}
