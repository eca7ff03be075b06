// Package export reads the legacy WordPress-style XML exports. It recovers
// known fields with independent pattern lookups instead of a validating XML
// parser, because the exports are not well-formed enough to survive one.
package export

import (
	"iter"
	"slices"
	"strings"
)

const (
	itemStart = "<item>"
	itemEnd   = "</item>"
)

// ExtractItems splits doc into the raw text following each item start
// marker. The prefix before the first marker is dropped, and so is a final
// piece that never reaches an end marker. Callers cut each piece with
// CutItem.
func ExtractItems(doc string) []string {
	return slices.Collect(Items(doc))
}

// Items is the lazy form of ExtractItems. The sequence can be ranged over
// any number of times.
func Items(doc string) iter.Seq[string] {
	return func(yield func(string) bool) {
		i := strings.Index(doc, itemStart)
		for i >= 0 {
			rest := doc[i+len(itemStart):]
			next := strings.Index(rest, itemStart)
			if next < 0 {
				if strings.Contains(rest, itemEnd) {
					yield(rest)
				}
				return
			}
			if !yield(rest[:next]) {
				return
			}
			i += len(itemStart) + next
		}
	}
}

// CutItem returns the body of a raw item up to its end marker.
func CutItem(raw string) string {
	body, _, _ := strings.Cut(raw, itemEnd)
	return body
}
