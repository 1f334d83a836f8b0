// Package deduper decides whether a candidate listing duplicates an existing
// one, and derives the stable key backing the unique constraint that guards
// concurrent imports.
package deduper

import (
	"context"
	"strings"
)

type Deduper interface {
	// AddIfNotExists reports whether key was seen for the first time in this run.
	AddIfNotExists(context.Context, string) bool
	// Exists reports whether key was already recorded, without recording it.
	Exists(context.Context, string) bool
}

func New() Deduper {
	return newHashmap()
}

// Key returns the normalized business-name+address key a listing is uniquely
// constrained on. Case and surrounding whitespace are insignificant.
func Key(businessName, fullAddress string) string {
	return normalize(businessName) + "|" + normalize(fullAddress)
}

// MatchAddress reports whether two single-line addresses refer to the same
// location. Containment is checked both ways so minor formatting differences,
// such as a missing suite number, still match.
func MatchAddress(stored, candidate string) bool {
	a := normalize(stored)
	b := normalize(candidate)

	if a == "" || b == "" {
		return false
	}

	return strings.Contains(a, b) || strings.Contains(b, a)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
