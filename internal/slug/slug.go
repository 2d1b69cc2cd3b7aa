// Package slug derives URL-safe post identifiers from titles.
package slug

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxLength matches the width of the posts.slug column.
const MaxLength = 255

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Make lower-cases title and collapses every run of characters outside
// [a-z0-9] into a single hyphen. Titles without any alphanumeric character
// produce an empty slug.
func Make(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return truncate(b.String(), MaxLength)
}

// WithSuffix returns base with a numeric disambiguator, keeping the result
// within MaxLength.
func WithSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	return truncate(base, MaxLength-len(suffix)) + suffix
}

// Validate checks an explicitly supplied slug.
func Validate(s string) error {
	if s == "" {
		return fmt.Errorf("slug is required")
	}
	if len(s) > MaxLength {
		return fmt.Errorf("slug must be at most %d characters", MaxLength)
	}
	if !slugRegex.MatchString(s) {
		return fmt.Errorf("slug must contain only lowercase letters, numbers, and single hyphens")
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimRight(s[:max], "-")
}
