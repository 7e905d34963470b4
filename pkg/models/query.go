package models

// QueryType defines which compiler turns a QuerySpec into a query body
type QueryType string

const (
	QueryTypeExact        QueryType = "exact"         // One match clause per resolved value (OR)
	QueryTypeFuzzy        QueryType = "fuzzy"         // more_like_this clauses under dis_max
	QueryTypeNested       QueryType = "nested"        // Nested query, every path mandatory
	QueryTypeNestedPrefix QueryType = "nested-prefix" // Nested query with a phrase-prefix clause
	QueryTypeAuthorNames  QueryType = "author-names"  // Parsed author name as nested author query
)

// Boolean operators accepted by nested match clauses
const (
	OperatorOR  = "OR"
	OperatorAND = "AND"
)

// QuerySpec is one declarative field-matching rule of a match step.
// Which fields are required depends on Type. A QuerySpec is never modified by the compiler.
type QuerySpec struct {
	Type QueryType `json:"type" yaml:"type" validate:"required"`

	// exact, author-names
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	SearchPath string `json:"search_path,omitempty" yaml:"search_path,omitempty"`

	// Deprecated aliases of Path and SearchPath
	Match  string `json:"match,omitempty" yaml:"match,omitempty"`
	Search string `json:"search,omitempty" yaml:"search,omitempty"`

	// fuzzy
	Clauses []FuzzyClause `json:"clauses,omitempty" yaml:"clauses,omitempty"`

	// nested, nested-prefix
	Paths            []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	SearchPaths      []string `json:"search_paths,omitempty" yaml:"search_paths,omitempty"`
	PrefixSearchPath string   `json:"prefix_search_path,omitempty" yaml:"prefix_search_path,omitempty"`
	Operator         string   `json:"operator,omitempty" yaml:"operator,omitempty" validate:"omitempty,oneof=OR AND"`

	// nested, nested-prefix, author-names
	InnerHits map[string]any `json:"inner_hits,omitempty" yaml:"inner_hits,omitempty"`
}

// FuzzyClause is one more_like_this disjunct of a fuzzy query
type FuzzyClause struct {
	Path  string   `json:"path" yaml:"path"`
	Boost *float64 `json:"boost,omitempty" yaml:"boost,omitempty"`
}

// BoostOrDefault returns the clause boost, 1 when unset
func (c FuzzyClause) BoostOrDefault() float64 {
	if c.Boost == nil {
		return 1
	}
	return *c.Boost
}

// QueryBody is a compiled search query in the backend's JSON query DSL.
// A nil QueryBody means the record holds no data the query could match on.
type QueryBody map[string]any
