package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func zbaaDocs() []*Document {
	zbaa := domain.Airport{
		Code:        "ZBAA",
		NameLocal:   "北京/首都",
		NameForeign: "Beijing Capital",
		ChartCount:  2,
	}
	zsss := domain.Airport{
		Code:        "ZSSS",
		NameForeign: "Shanghai Hongqiao",
		ChartCount:  1,
	}
	return []*Document{
		ChartDocument(domain.Chart{
			ID:          "ZBAA_adc_aerodrome-chart",
			Code:        "ZBAA-1A",
			Name:        "AERODROME CHART",
			Category:    "ADC",
			AirportCode: "ZBAA",
		}, zbaa),
		ChartDocument(domain.Chart{
			ID:          "ZBAA_iac_ils-rwy-36l",
			Code:        "ZBAA-7A01",
			Name:        "ILS RWY 36L",
			Category:    "IAC",
			AirportCode: "ZBAA",
		}, zbaa),
		ChartDocument(domain.Chart{
			ID:          "ZSSS_adc_aerodrome-chart",
			Code:        "ZSSS-1A",
			Name:        "AERODROME CHART",
			Category:    "ADC",
			AirportCode: "ZSSS",
		}, zsss),
		AirportDocument(zbaa),
		AirportDocument(zsss),
	}
}

func TestNewIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndexDocument(t *testing.T) {
	index := setupTestIndex(t)

	doc := ChartDocument(domain.Chart{
		ID:          "ZBAA_adc_aerodrome-chart",
		Name:        "AERODROME CHART",
		Category:    "ADC",
		AirportCode: "ZBAA",
	}, domain.Airport{Code: "ZBAA"})

	require.NoError(t, index.IndexDocument(doc))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchByChartName(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	result, err := index.Search(context.Background(), Params{Query: "ILS", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "ZBAA_iac_ils-rwy-36l", result.Hits[0].ID)
	assert.Equal(t, DocTypeChart, result.Hits[0].Type)
	assert.Equal(t, "ILS RWY 36L", result.Hits[0].Name)
}

func TestSearchByAirportName(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	// Airport names are denormalized onto charts, so a city query surfaces
	// both the airport and its charts.
	result, err := index.Search(context.Background(), Params{Query: "Beijing", Limit: 10})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Total, uint64(3))

	ids := make(map[string]bool, len(result.Hits))
	for _, h := range result.Hits {
		ids[h.ID] = true
	}
	assert.True(t, ids["ZBAA"], "airport document should match")
	assert.True(t, ids["ZBAA_iac_ils-rwy-36l"], "charts should match via denormalized airport name")
}

func TestSearchFilterByType(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	result, err := index.Search(context.Background(), Params{
		Types: []string{string(DocTypeAirport)},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	for _, h := range result.Hits {
		assert.Equal(t, DocTypeAirport, h.Type)
	}
}

func TestSearchFilterByAirport(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	// Lowercase input is normalized to the canonical uppercase code.
	result, err := index.Search(context.Background(), Params{
		AirportCode: "zbaa",
		Types:       []string{string(DocTypeChart)},
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	for _, h := range result.Hits {
		assert.Equal(t, "ZBAA", h.AirportCode)
	}
}

func TestSearchFilterByCategory(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	result, err := index.Search(context.Background(), Params{
		Category: "ADC",
		Limit:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	for _, h := range result.Hits {
		assert.Equal(t, "ADC", h.Category)
	}
}

func TestSearchCodePrefix(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	// Pilots type chart codes verbatim; lowercase must still match.
	result, err := index.Search(context.Background(), Params{Query: "zbaa-7a", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "ZBAA_iac_ils-rwy-36l", result.Hits[0].ID)
}

func TestSearchNamePrefix(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	result, err := index.Search(context.Background(), Params{Query: "aero", Limit: 10})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Total, uint64(2))
}

func TestSearchFacets(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	result, err := index.Search(context.Background(), Params{
		Limit:         10,
		IncludeFacets: true,
		FacetFields:   []string{"type", "category", "airport_code"},
	})
	require.NoError(t, err)

	types := make(map[string]int)
	for _, f := range result.Facets.Types {
		types[f.Value] = f.Count
	}
	assert.Equal(t, 3, types["chart"])
	assert.Equal(t, 2, types["airport"])

	categories := make(map[string]int)
	for _, f := range result.Facets.Categories {
		categories[f.Value] = f.Count
	}
	assert.Equal(t, 2, categories["ADC"])
	assert.Equal(t, 1, categories["IAC"])
}

func TestDeleteDocument(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	require.NoError(t, index.DeleteDocument("ZBAA_adc_aerodrome-chart"))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestReplaceAllSwapsGeneration(t *testing.T) {
	index := setupTestIndex(t)
	require.NoError(t, index.IndexDocuments(zbaaDocs()))

	nextGen := []*Document{
		ChartDocument(domain.Chart{
			ID:          "ZGGG_adc_aerodrome-chart",
			Name:        "AERODROME CHART",
			Category:    "ADC",
			AirportCode: "ZGGG",
		}, domain.Airport{Code: "ZGGG", NameForeign: "Guangzhou Baiyun"}),
	}
	require.NoError(t, index.ReplaceAll(nextGen))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// The previous generation is gone.
	result, err := index.Search(context.Background(), Params{
		AirportCode: "ZBAA",
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Total)

	result, err = index.Search(context.Background(), Params{Query: "Guangzhou", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()

	index1, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index1.IndexDocuments(zbaaDocs()))
	require.NoError(t, index1.Close())

	index2, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index2.Close()

	count, err := index2.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestMappingVersionTriggersRebuild(t *testing.T) {
	dir := t.TempDir()

	index1, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index1.IndexDocuments(zbaaDocs()))
	require.NoError(t, index1.Close())

	// Simulate an index built with an older mapping.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search.version"), []byte("0"), 0o644))

	index2, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index2.Close()

	count, err := index2.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count, "stale-mapping index should be dropped")
}

func TestChartDocument(t *testing.T) {
	chart := domain.Chart{
		ID:          "ZBAA_iac_ils-rwy-36l",
		Code:        "ZBAA-7A01",
		Name:        "ILS RWY 36L",
		Category:    "IAC",
		AirportCode: "ZBAA",
	}
	airport := domain.Airport{Code: "ZBAA", NameLocal: "北京/首都", NameForeign: "Beijing Capital"}

	doc := ChartDocument(chart, airport)

	assert.Equal(t, "ZBAA_iac_ils-rwy-36l", doc.ID)
	assert.Equal(t, DocTypeChart, doc.Type)
	assert.Equal(t, "ILS RWY 36L", doc.Name)
	assert.Equal(t, "ZBAA-7A01", doc.Code)
	assert.Equal(t, "IAC", doc.Category)
	assert.Equal(t, "ZBAA", doc.AirportCode)
	assert.Equal(t, "北京/首都 Beijing Capital", doc.AirportName)
}

func TestAirportDocument(t *testing.T) {
	airport := domain.Airport{
		Code:        "ZSSS",
		NameForeign: "Shanghai Hongqiao",
		ChartCount:  12,
	}

	doc := AirportDocument(airport)

	assert.Equal(t, "ZSSS", doc.ID)
	assert.Equal(t, DocTypeAirport, doc.Type)
	assert.Equal(t, "Shanghai Hongqiao", doc.Name)
	assert.Equal(t, "ZSSS", doc.AirportCode)
	assert.Equal(t, 12, doc.ChartCount)
}
