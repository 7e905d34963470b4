package authors

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/inspirehep/inspire-matcher/pkg/normalizers"
	"github.com/inspirehep/inspire-matcher/pkg/scoring"
)

// Author is the comparable view of an author object from a record
type Author struct {
	Name       ParsedName
	IDs        []string // "SCHEMA:value"
	Ref        string
	Variations []string // normalized
}

// FromRecord builds an Author from an author object: full_name, ids, record.$ref and
// name_variations are read when present. Anything that is not an object is read as a name.
func FromRecord(value any) Author {
	switch v := value.(type) {
	case string:
		return Author{Name: ParseName(v)}
	case map[string]any:
		author := Author{}
		if name, ok := v["full_name"].(string); ok {
			author.Name = ParseName(name)
		}
		if ids, ok := v["ids"].([]any); ok {
			for _, raw := range ids {
				id, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				schema, _ := id["schema"].(string)
				val, _ := id["value"].(string)
				if val != "" {
					author.IDs = append(author.IDs, fmt.Sprintf("%s:%s", strings.ToUpper(schema), val))
				}
			}
		}
		if rec, ok := v["record"].(map[string]any); ok {
			author.Ref, _ = rec["$ref"].(string)
		}
		if variations, ok := v["name_variations"].([]any); ok {
			for _, raw := range variations {
				if s, ok := raw.(string); ok {
					if n := normalizers.NormalizeName(s); n != "" {
						author.Variations = append(author.Variations, n)
					}
				}
			}
		}
		return author
	default:
		return Author{}
	}
}

// FromList converts a list of author objects
func FromList(values []any) []Author {
	return ectolinq.Map(values, FromRecord)
}

// Comparator decides whether two authors are the same person. Normalized last names must be
// equal unless a last name threshold is set.
type Comparator struct {
	scorer            *scoring.Scorer
	lastNameThreshold float64
}

// ComparatorOption configures a Comparator
type ComparatorOption func(*Comparator)

// WithLastNameThreshold accepts last names whose Jaro-Winkler similarity reaches threshold.
// A threshold of 0 or 1 and above keeps exact matching.
func WithLastNameThreshold(threshold float64) ComparatorOption {
	return func(c *Comparator) {
		c.lastNameThreshold = threshold
	}
}

// NewComparator creates a Comparator
func NewComparator(opts ...ComparatorOption) *Comparator {
	c := &Comparator{
		scorer: scoring.NewScorer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Same reports whether a and b denote the same author. Shared identifiers or record
// references are decisive; otherwise the names must agree.
func (c *Comparator) Same(a, b Author) bool {
	if len(a.IDs) > 0 && len(b.IDs) > 0 && intersects(a.IDs, b.IDs) {
		return true
	}
	if a.Ref != "" && a.Ref == b.Ref {
		return true
	}
	if c.namesMatch(a.Name, b.Name) {
		return true
	}
	if len(a.Variations) > 0 && len(b.Variations) > 0 {
		return intersects(a.Variations, b.Variations)
	}
	return false
}

func (c *Comparator) namesMatch(a, b ParsedName) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}

	if !c.lastNamesMatch(a.NormalizedLast(), b.NormalizedLast()) {
		return false
	}

	return givenNamesCompatible(a.NormalizedFirst(), b.NormalizedFirst())
}

func (c *Comparator) lastNamesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if c.lastNameThreshold <= 0 || c.lastNameThreshold >= 1 {
		return false
	}
	return c.scorer.JaroWinkler(a, b) >= c.lastNameThreshold
}

// givenNamesCompatible compares given names position by position: initials must agree and
// two spelled-out names must be equal. A side without given names is compatible with anything.
func givenNamesCompatible(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := a[i], b[i]
		if x[0] != y[0] {
			return false
		}
		if len(x) > 1 && len(y) > 1 && x != y {
			return false
		}
	}
	return true
}

// Matches pairs authors of x with authors of y, each author used at most once, and returns the pairs
// as index pairs into x and y
func (c *Comparator) Matches(x, y []Author) [][2]int {
	used := make([]bool, len(y))
	var pairs [][2]int
	for i, a := range x {
		for j, b := range y {
			if used[j] {
				continue
			}
			if c.Same(a, b) {
				used[j] = true
				pairs = append(pairs, [2]int{i, j})
				break
			}
		}
	}
	return pairs
}

// CountMatches returns the number of authors shared by x and y
func (c *Comparator) CountMatches(x, y []Author) int {
	return len(c.Matches(x, y))
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if ectolinq.Contains(b, v) {
			return true
		}
	}
	return false
}
