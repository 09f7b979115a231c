// Package sanitizer strips markup from user-supplied free-text fields
// before they reach the core or the database.
package sanitizer

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// InputSanitizer cleans a single free-text value
type InputSanitizer interface {
	Clean(value string) string
}

// StrictSanitizer implements InputSanitizer using bluemonday's strict
// policy: all HTML tags and attributes are removed.
type StrictSanitizer struct {
	policy *bluemonday.Policy
}

// New creates a new StrictSanitizer
func New() *StrictSanitizer {
	return &StrictSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean trims surrounding whitespace and strips every tag and attribute
func (s *StrictSanitizer) Clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(value))
}
