// Package id generates prefixed NanoID identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate returns "<prefix>-<nanoid>", e.g. "job-V1StGXR8_Z5jdHi6B-myT".
// NanoIDs are URL-safe and shorter than UUIDs at comparable entropy.
// Fails only when the system entropy source does.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate panics when Generate fails. Reserved for init paths where a
// dead entropy source should stop the process anyway.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("generate id: %v", err))
	}
	return id
}

// Suffix returns a short random token for temp-file names and similar
// low-stakes uniqueness. Length is the token length in characters.
func Suffix(length int) string {
	s, err := gonanoid.New(length)
	if err != nil {
		panic(fmt.Sprintf("generate suffix: %v", err))
	}
	return s
}
