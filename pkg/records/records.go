// Package records reads test records and their audit trail from the
// TestDataManager contract.
package records

import (
	"errors"
	"strings"
)

var (
	// ErrFetchFailed is returned when any part of a listing fails. No
	// partial results are returned alongside it.
	ErrFetchFailed = errors.New("failed to fetch records")

	// ErrNotFound is returned when a record id is out of range.
	ErrNotFound = errors.New("record not found")
)

// Record is a test record as stored on chain.
type Record struct {
	// ID is the zero-based append index.
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
	// Data is the stored payload, byte-for-byte.
	Data      string `json:"data"`
	Submitter string `json:"submitter"`
}

// Well-known categories.
const (
	CategoryUI          = "ui"
	CategoryAPI         = "api"
	CategoryIntegration = "integration"
	CategoryPerformance = "performance"
	CategorySecurity    = "security"
)

var categoryLabels = map[string]string{
	CategoryUI:          "UI Test",
	CategoryAPI:         "API Test",
	CategoryIntegration: "Integration Test",
	CategoryPerformance: "Performance Test",
	CategorySecurity:    "Security Test",
}

// CategoryLabel returns the display label for a category. Unknown
// categories are returned unchanged.
func CategoryLabel(category string) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}

	return category
}

// IsKnownCategory reports whether category is one of the well-known values.
func IsKnownCategory(category string) bool {
	_, ok := categoryLabels[category]

	return ok
}

// Filter returns the records whose name, category or data contain term,
// case-insensitively. A blank term returns records unchanged.
func Filter(records []Record, term string) []Record {
	if strings.TrimSpace(term) == "" {
		return records
	}

	needle := strings.ToLower(term)
	out := make([]Record, 0, len(records))

	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Category), needle) ||
			strings.Contains(strings.ToLower(r.Data), needle) {
			out = append(out, r)
		}
	}

	return out
}
