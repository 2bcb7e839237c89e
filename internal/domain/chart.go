// Package domain contains the core entities of the chart library.
package domain

import (
	"fmt"
	"regexp"
	"slices"
)

// AirportCodePattern matches a 4-letter ICAO location indicator.
var AirportCodePattern = regexp.MustCompile(`^[A-Z]{4}$`)

// Chart is one cataloged chart file. Charts are immutable once cataloged;
// a full re-import replaces the whole generation.
type Chart struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	FilePath      string `json:"file_path"`
	Category      string `json:"category"`
	AirportCode   string `json:"airport_code"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`
}

// Airport aggregates the charts cataloged for one location.
type Airport struct {
	Code        string   `json:"code"`
	NameLocal   string   `json:"name_local"`
	NameForeign string   `json:"name_foreign"`
	ChartCount  int      `json:"chart_count"`
	Categories  []string `json:"categories"`
}

// DisplayName prefers the localized name, then the foreign name, then the code.
func (a *Airport) DisplayName() string {
	if a.NameLocal != "" {
		return a.NameLocal
	}
	if a.NameForeign != "" {
		return a.NameForeign
	}
	return a.Code
}

// Label renders "CODE NAME" for logs and listings.
func (a *Airport) Label() string {
	name := a.DisplayName()
	if name == a.Code {
		return a.Code
	}
	return fmt.Sprintf("%s %s", a.Code, name)
}

// Standard chart category codes seen in AIP packages. Packages may carry
// categories outside this list; the cataloger accepts them as-is.
var KnownCategories = []string{
	"ADC",
	"APDC",
	"GMC",
	"DGS",
	"AOC",
	"PATC",
	"FDA",
	"ATCMAS",
	"SID",
	"STAR",
	"WAYPOINT LIST",
	"DATABASE CODING TABLE",
	"IAC",
	"ATCSMAC",
}

// KnownCategory reports whether name is one of the standard AIP category
// codes.
func KnownCategory(name string) bool {
	return slices.Contains(KnownCategories, name)
}
