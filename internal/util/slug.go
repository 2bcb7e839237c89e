// Package util provides small shared helpers.
package util

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a lowercase URL-safe slug.
// "Waypoint List" -> "waypoint-list", "Aérodrome" -> "aerodrome".
// Chart names are often fully non-Latin; when stripping leaves nothing,
// the slug falls back to a short FNV digest of the input so identifiers
// derived from it stay stable and distinct.
func Slugify(s string) string {
	original := s

	// Decompose accented characters, then drop what is still non-ASCII.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" && original != "" {
		s = hashSlug(original)
	}
	return s
}

func hashSlug(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("x%08x", h.Sum32())
}
