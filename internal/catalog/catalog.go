package catalog

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NoneOfThese is always the last option offered to the user.
const NoneOfThese = "keins davon"

// Catalog is the ordered, immutable set of correction labels.
type Catalog struct {
	labels []string
}

// Build deduplicates raw, sorts it with German collation and appends the
// NoneOfThese sentinel. Blank labels are dropped.
func Build(raw []string) Catalog {
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0, len(raw)+1)
	for _, label := range raw {
		label = strings.TrimSpace(label)
		if label == "" || label == NoneOfThese {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}

	collate.New(language.German).SortStrings(labels)
	return Catalog{labels: append(labels, NoneOfThese)}
}

// Labels returns a copy of the ordered labels.
func (c Catalog) Labels() []string {
	if len(c.labels) == 0 {
		return nil
	}
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Contains reports whether label can be selected.
func (c Catalog) Contains(label string) bool {
	for _, candidate := range c.labels {
		if candidate == label {
			return true
		}
	}
	return false
}

// Len returns the number of options including the sentinel.
func (c Catalog) Len() int {
	return len(c.labels)
}
