// Package search provides full-text chart lookup using Bleve. Charts and
// airports share one index with type discrimination, so a single query box
// can resolve "ILS RWY 36L", "ZBAA" and "首都" alike.
package search

import (
	"strings"

	"github.com/chartbagapp/chartbag-server/internal/domain"
)

// DocType discriminates entries in the unified index.
type DocType string

const (
	DocTypeChart   DocType = "chart"
	DocTypeAirport DocType = "airport"
)

// Document is the unified index entry. Airport names are denormalized onto
// chart documents so a name query surfaces the airport's charts without a
// second lookup.
type Document struct {
	ID   string  `json:"id"`
	Type DocType `json:"type"`

	// Chart: procedure title. Airport: display name.
	Name string `json:"name"`

	// Chart-specific fields
	Code        string `json:"code,omitempty"`
	Category    string `json:"category,omitempty"`
	AirportCode string `json:"airport_code,omitempty"`
	AirportName string `json:"airport_name,omitempty"`

	// Airport-specific fields
	ChartCount int `json:"chart_count,omitempty"`
}

// ToMap converts the document to lowercase field names matching the index
// mapping. Bleve would otherwise index by Go field name.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":   d.ID,
		"type": string(d.Type),
		"name": d.Name,
	}

	if d.Code != "" {
		m["code"] = d.Code
	}
	if d.Category != "" {
		m["category"] = d.Category
	}
	if d.AirportCode != "" {
		m["airport_code"] = d.AirportCode
	}
	if d.AirportName != "" {
		m["airport_name"] = d.AirportName
	}
	if d.ChartCount > 0 {
		m["chart_count"] = d.ChartCount
	}

	return m
}

// ChartDocument builds the index entry for one chart. The airport carries the
// sidecar names; a zero-value airport leaves the name fields empty.
func ChartDocument(chart domain.Chart, airport domain.Airport) *Document {
	return &Document{
		ID:          chart.ID,
		Type:        DocTypeChart,
		Name:        chart.Name,
		Code:        chart.Code,
		Category:    chart.Category,
		AirportCode: chart.AirportCode,
		AirportName: joinNames(airport.NameLocal, airport.NameForeign),
	}
}

// AirportDocument builds the index entry for one airport.
func AirportDocument(a domain.Airport) *Document {
	return &Document{
		ID:          a.Code,
		Type:        DocTypeAirport,
		Name:        a.DisplayName(),
		AirportCode: a.Code,
		AirportName: joinNames(a.NameLocal, a.NameForeign),
		ChartCount:  a.ChartCount,
	}
}

func joinNames(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}
