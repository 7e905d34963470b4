// Package authors parses author names into search queries and decides author identity
package authors

import (
	"strings"
	"unicode/utf8"

	"github.com/inspirehep/inspire-matcher/pkg/normalizers"
)

// ParsedName is an author name split into a last name and given names
type ParsedName struct {
	Raw   string
	Last  string   // as written, e.g. "Ellis"
	First []string // given names or initials as written, e.g. ["John", "R."]
}

// ParseName splits a raw name. "Last, First Middle" is taken literally; otherwise the final
// word is the last name unless it is an initial ("Smith J.").
func ParseName(raw string) ParsedName {
	raw = strings.TrimSpace(raw)
	parsed := ParsedName{Raw: raw}
	if raw == "" {
		return parsed
	}

	if idx := strings.Index(raw, ","); idx != -1 {
		parsed.Last = strings.TrimSpace(raw[:idx])
		parsed.First = splitGiven(raw[idx+1:])
		if parsed.Last == "" && len(parsed.First) > 0 {
			parsed.Last = parsed.First[len(parsed.First)-1]
			parsed.First = parsed.First[:len(parsed.First)-1]
		}
		return parsed
	}

	words := strings.Fields(raw)
	if len(words) == 1 {
		parsed.Last = words[0]
		return parsed
	}

	last := words[len(words)-1]
	if isInitial(last) && !isInitial(words[0]) {
		parsed.Last = words[0]
		parsed.First = splitGiven(strings.Join(words[1:], " "))
		return parsed
	}

	parsed.Last = last
	parsed.First = splitGiven(strings.Join(words[:len(words)-1], " "))
	return parsed
}

// splitGiven splits given names on whitespace and on dots between initials ("J.R." -> J., R.)
func splitGiven(s string) []string {
	var result []string
	for _, word := range strings.Fields(s) {
		parts := strings.SplitAfter(word, ".")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" || part == "." {
				continue
			}
			result = append(result, part)
		}
	}
	return result
}

func isInitial(word string) bool {
	trimmed := strings.TrimSuffix(word, ".")
	return utf8.RuneCountInString(trimmed) == 1
}

// NormalizedLast returns the comparable form of the last name
func (p ParsedName) NormalizedLast() string {
	return normalizers.NormalizeName(p.Last)
}

// NormalizedFirst returns the comparable form of every given name
func (p ParsedName) NormalizedFirst() []string {
	result := make([]string, 0, len(p.First))
	for _, name := range p.First {
		if n := normalizers.NormalizeName(name); n != "" {
			result = append(result, n)
		}
	}
	return result
}

// Initials returns the given-name initials, lowercase
func (p ParsedName) Initials() string {
	return normalizers.Initials(strings.Join(p.NormalizedFirst(), " "))
}

// IsEmpty reports whether no last name could be parsed
func (p ParsedName) IsEmpty() bool {
	return p.NormalizedLast() == ""
}

// Key is a compact identity key: "ellis j"
func (p ParsedName) Key() string {
	key := p.NormalizedLast()
	if initials := p.Initials(); initials != "" {
		key += " " + initials
	}
	return key
}

// SearchExpression renders the name as a search expression: "a Ellis, John R."
func (p ParsedName) SearchExpression() string {
	if p.Last == "" {
		return ""
	}
	if len(p.First) == 0 {
		return "a " + p.Last
	}
	return "a " + p.Last + ", " + strings.Join(p.First, " ")
}

// QueryFields names the index fields targeted by GenerateQuery
type QueryFields struct {
	NestedPath string
	LastName   string
	FirstName  string
}

// DefaultQueryFields targets the authors nested documents
func DefaultQueryFields() QueryFields {
	return FieldsFor("authors")
}

// FieldsFor derives the last/first name fields under a nested path
func FieldsFor(nestedPath string) QueryFields {
	return QueryFields{
		NestedPath: nestedPath,
		LastName:   nestedPath + ".last_name",
		FirstName:  nestedPath + ".first_name",
	}
}

// GenerateQuery renders the name as a nested author query: the last name must match and,
// when given names are known, at least one of them must match in full or by initial.
func (p ParsedName) GenerateQuery(fields QueryFields) map[string]any {
	must := []any{
		map[string]any{
			"match": map[string]any{
				fields.LastName: map[string]any{
					"query":    p.Last,
					"operator": "AND",
				},
			},
		},
	}

	if len(p.First) > 0 {
		should := make([]any, 0, len(p.First)*2)
		for _, name := range p.First {
			trimmed := strings.TrimSuffix(name, ".")
			if !isInitial(name) {
				should = append(should, map[string]any{
					"match": map[string]any{
						fields.FirstName: map[string]any{
							"query":    trimmed,
							"operator": "AND",
						},
					},
				})
			}
			initial, _ := utf8.DecodeRuneInString(trimmed)
			should = append(should, map[string]any{
				"match_phrase_prefix": map[string]any{
					fields.FirstName: map[string]any{
						"query": string(initial),
					},
				},
			})
		}
		must = append(must, map[string]any{
			"bool": map[string]any{
				"should": should,
			},
		})
	}

	return map[string]any{
		"nested": map[string]any{
			"path": fields.NestedPath,
			"query": map[string]any{
				"bool": map[string]any{
					"must": must,
				},
			},
		},
	}
}
