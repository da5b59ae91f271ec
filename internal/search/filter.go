package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	// MinTermLength is the shortest term that triggers filtering.
	MinTermLength = 2
	// DefaultLimit caps the dropdown when callers have no preference.
	DefaultLimit = 10
)

// Searchable reports whether term is long enough to filter on.
func Searchable(term string) bool {
	return utf8.RuneCountInString(term) >= MinTermLength
}

// Filter returns the products whose name or description contains term,
// case-insensitively. Name matches sort before description-only matches and
// catalog order is otherwise preserved. Terms shorter than MinTermLength
// yield no results.
func Filter(products []types.Product, term string) []types.Product {
	return FilterLimit(products, term, 0)
}

// FilterLimit is Filter capped at limit results; limit <= 0 means no cap.
func FilterLimit(products []types.Product, term string, limit int) []types.Product {
	if !Searchable(term) {
		return []types.Product{}
	}
	needle := strings.ToLower(term)

	type match struct {
		product types.Product
		byName  bool
	}
	matches := make([]match, 0)
	for _, p := range products {
		byName := strings.Contains(strings.ToLower(p.Name), needle)
		if byName || strings.Contains(strings.ToLower(p.Description), needle) {
			matches = append(matches, match{product: p, byName: byName})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].byName && !matches[j].byName
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]types.Product, len(matches))
	for i, m := range matches {
		out[i] = m.product
	}
	return out
}
