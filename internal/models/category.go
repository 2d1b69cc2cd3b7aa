package models

import (
	"strings"
)

// DefaultCategories is the category list used when configuration does not
// override it.
var DefaultCategories = []string{
	"Design & Inspiration",
	"Building & Construction",
	"Eco-Living Tips",
	"Furniture & Storage",
	"Lifestyle & Wellness",
	"Uncategorized",
}

// CategorySet is the closed list of category names posts may use.
type CategorySet struct {
	names []string
	index map[string]struct{}
}

// NewCategorySet builds a set from names, ignoring blanks and duplicates.
// An empty input falls back to DefaultCategories.
func NewCategorySet(names []string) *CategorySet {
	set := &CategorySet{index: make(map[string]struct{})}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := set.index[n]; ok {
			continue
		}
		set.index[n] = struct{}{}
		set.names = append(set.names, n)
	}
	if len(set.names) == 0 {
		return NewCategorySet(DefaultCategories)
	}
	return set
}

// Contains reports whether name is an allowed category.
func (s *CategorySet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the categories in configured order.
func (s *CategorySet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// NormalizeCategory maps the URL form of a category (underscores for spaces)
// back to its stored form.
func NormalizeCategory(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
}

// CategoryKey is the URL form of a category name.
func CategoryKey(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}
