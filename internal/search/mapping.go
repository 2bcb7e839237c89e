package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for chart documents.
//
// Text fields use the standard analyzer rather than a stemming one: chart
// titles mix English procedure names with local-language airport names, and
// the unicode tokenizer handles both without mangling identifiers like
// "RWY 36L". Codes and categories are keyword fields for exact filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	// Name is the primary search target.
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = standard.Name
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Airport names, denormalized onto charts.
	airportNameFieldMapping := bleve.NewTextFieldMapping()
	airportNameFieldMapping.Analyzer = standard.Name
	airportNameFieldMapping.Store = true
	airportNameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("airport_name", airportNameFieldMapping)

	// Chart codes ("ZBAA-7A01") must survive analysis intact.
	codeFieldMapping := bleve.NewTextFieldMapping()
	codeFieldMapping.Analyzer = keyword.Name
	codeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("code", codeFieldMapping)

	typeFieldMapping := bleve.NewTextFieldMapping()
	typeFieldMapping.Analyzer = keyword.Name
	typeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("type", typeFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	airportCodeFieldMapping := bleve.NewTextFieldMapping()
	airportCodeFieldMapping.Analyzer = keyword.Name
	airportCodeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("airport_code", airportCodeFieldMapping)

	categoryFieldMapping := bleve.NewTextFieldMapping()
	categoryFieldMapping.Analyzer = keyword.Name
	categoryFieldMapping.Store = true
	categoryFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("category", categoryFieldMapping)

	chartCountFieldMapping := bleve.NewNumericFieldMapping()
	chartCountFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("chart_count", chartCountFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
