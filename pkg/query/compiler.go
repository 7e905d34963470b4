// Package query compiles declarative QuerySpecs into search engine query bodies
package query

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/inspirehep/inspire-matcher/pkg/authors"
	"github.com/inspirehep/inspire-matcher/pkg/extractor"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
)

// more_like_this and dis_max constants of fuzzy queries
const (
	fuzzyMaxQueryTerms = 25
	fuzzyMinDocFreq    = 1
	fuzzyMinTermFreq   = 1
	fuzzyTieBreaker    = 0.3
	fuzzyMinScore      = 1
)

// Options are the per-config settings applied to every compiled query
type Options struct {
	Collections  []string
	MatchDeleted bool
}

// Compiler turns a QuerySpec and a record into a query body.
// It holds no per-call state and is safe for concurrent use.
type Compiler struct {
	logger    ectologger.Logger
	extractor *extractor.Extractor
}

// NewCompiler creates a new Compiler
func NewCompiler(logger ectologger.Logger) *Compiler {
	return &Compiler{
		logger:    logger,
		extractor: extractor.New(),
	}
}

// Compile renders spec against record and wraps it in the collection and deletion filters.
// A nil body with a nil error means the record has no data to match on for this query.
func (c *Compiler) Compile(ctx context.Context, spec models.QuerySpec, record models.Record, opts Options) (models.QueryBody, error) {
	ctx, span := tracing.StartSpan(ctx, "query.Compiler.Compile")
	defer span.End()

	inner, err := c.compileInner(ctx, spec, record)
	if err != nil {
		return nil, err
	}

	return compileFilters(inner, opts), nil
}

func (c *Compiler) compileInner(ctx context.Context, spec models.QuerySpec, record models.Record) (models.QueryBody, error) {
	switch spec.Type {
	case models.QueryTypeExact:
		return c.compileExact(ctx, spec, record)
	case models.QueryTypeFuzzy:
		return c.compileFuzzy(spec, record)
	case models.QueryTypeNested, models.QueryTypeNestedPrefix:
		return c.compileNested(spec, record)
	case models.QueryTypeAuthorNames:
		return c.compileAuthorNames(ctx, spec, record)
	case "":
		return nil, newCompileError(ErrMalformedQuery, "", "missing type")
	}

	return nil, newCompileError(ErrNotImplemented, string(spec.Type), "")
}

// paths returns path and search_path, falling back to the deprecated match and search keys.
// The spec itself is left untouched.
func (c *Compiler) paths(ctx context.Context, spec models.QuerySpec) (string, string) {
	path, searchPath := spec.Path, spec.SearchPath

	if path == "" && spec.Match != "" {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"type":  spec.Type,
			"match": spec.Match,
		}).Warn("The 'match' key is deprecated, use 'path' instead")
		path = spec.Match
	}
	if searchPath == "" && spec.Search != "" {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"type":   spec.Type,
			"search": spec.Search,
		}).Warn("The 'search' key is deprecated, use 'search_path' instead")
		searchPath = spec.Search
	}

	return path, searchPath
}

func (c *Compiler) resolve(spec models.QuerySpec, record models.Record, path string) (any, error) {
	value, err := c.extractor.Resolve(map[string]any(record), path)
	if err != nil {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "%v", err)
	}
	return value, nil
}

func (c *Compiler) compileExact(ctx context.Context, spec models.QuerySpec, record models.Record) (models.QueryBody, error) {
	path, searchPath := c.paths(ctx, spec)
	if path == "" {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'path'")
	}
	if searchPath == "" {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'search_path'")
	}

	value, err := c.resolve(spec, record, path)
	if err != nil {
		return nil, err
	}

	values := extractor.ForceList(value)
	if len(values) == 0 {
		return nil, nil
	}

	should := make([]any, 0, len(values))
	for _, v := range values {
		should = append(should, map[string]any{
			"match": map[string]any{
				searchPath: deepCopy(v),
			},
		})
	}

	return models.QueryBody{
		"query": map[string]any{
			"bool": map[string]any{
				"should": should,
			},
		},
	}, nil
}

func (c *Compiler) compileFuzzy(spec models.QuerySpec, record models.Record) (models.QueryBody, error) {
	if len(spec.Clauses) == 0 {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'clauses'")
	}

	queries := make([]any, 0, len(spec.Clauses))
	for i, clause := range spec.Clauses {
		if clause.Path == "" {
			return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "clause %d is missing 'path'", i)
		}

		field := extractor.StripIndex(clause.Path)
		if strings.Contains(field, ".") {
			return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "the 'path' key can't contain dots: %s", clause.Path)
		}

		values, err := c.resolve(spec, record, clause.Path)
		if err != nil {
			return nil, err
		}
		if extractor.IsEmpty(values) {
			continue
		}

		queries = append(queries, map[string]any{
			"more_like_this": map[string]any{
				"boost": clause.BoostOrDefault(),
				"docs": []any{
					map[string]any{
						"doc": map[string]any{
							field: deepCopy(values),
						},
					},
				},
				"max_query_terms": fuzzyMaxQueryTerms,
				"min_doc_freq":    fuzzyMinDocFreq,
				"min_term_freq":   fuzzyMinTermFreq,
			},
		})
	}

	if len(queries) == 0 {
		return nil, nil
	}

	return models.QueryBody{
		"min_score": fuzzyMinScore,
		"query": map[string]any{
			"dis_max": map[string]any{
				"queries":     queries,
				"tie_breaker": fuzzyTieBreaker,
			},
		},
	}, nil
}

func (c *Compiler) compileNested(spec models.QuerySpec, record models.Record) (models.QueryBody, error) {
	if len(spec.Paths) == 0 || len(spec.SearchPaths) == 0 {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'paths' or 'search_paths'")
	}
	if len(spec.Paths) != len(spec.SearchPaths) {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "paths and search_paths must be of the same length")
	}
	if spec.Type == models.QueryTypeNestedPrefix && spec.PrefixSearchPath == "" {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'prefix_search_path'")
	}

	commonPath := CommonPath(spec.SearchPaths)
	if commonPath == "" {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "search_paths must share a common path")
	}

	must := make([]any, 0, len(spec.Paths))
	for i, path := range spec.Paths {
		searchPath := spec.SearchPaths[i]

		value, err := c.resolve(spec, record, path)
		if err != nil {
			return nil, err
		}
		if extractor.IsEmpty(value) {
			return nil, nil
		}

		if spec.Type == models.QueryTypeNestedPrefix && searchPath == spec.PrefixSearchPath {
			must = append(must, map[string]any{
				"match_phrase_prefix": map[string]any{
					searchPath: deepCopy(value),
				},
			})
			continue
		}

		must = append(must, matchClause(searchPath, deepCopy(value), spec.Operator))
	}

	nested := map[string]any{
		"path": commonPath,
		"query": map[string]any{
			"bool": map[string]any{
				"must": must,
			},
		},
	}
	if spec.InnerHits != nil {
		nested["inner_hits"] = copyMap(spec.InnerHits)
	}

	return models.QueryBody{
		"query": map[string]any{
			"nested": nested,
		},
	}, nil
}

// matchClause keeps the short {match: {field: value}} form unless an operator is configured
func matchClause(searchPath string, value any, operator string) map[string]any {
	if operator == "" {
		return map[string]any{
			"match": map[string]any{
				searchPath: value,
			},
		}
	}

	return map[string]any{
		"match": map[string]any{
			searchPath: map[string]any{
				"query":    value,
				"operator": operator,
			},
		},
	}
}

func (c *Compiler) compileAuthorNames(ctx context.Context, spec models.QuerySpec, record models.Record) (models.QueryBody, error) {
	path, searchPath := c.paths(ctx, spec)
	if path == "" {
		return nil, newCompileError(ErrMalformedQuery, string(spec.Type), "missing 'path'")
	}
	if searchPath == "" {
		searchPath = "authors"
	}

	value, err := c.resolve(spec, record, path)
	if err != nil {
		return nil, err
	}

	var fullName string
	for _, v := range extractor.ForceList(value) {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			fullName = s
			break
		}
	}
	if fullName == "" {
		return nil, nil
	}

	parsed := authors.ParseName(fullName)
	if parsed.IsEmpty() {
		return nil, nil
	}

	query := parsed.GenerateQuery(authors.FieldsFor(searchPath))
	if spec.InnerHits != nil {
		if nested, ok := query["nested"].(map[string]any); ok {
			nested["inner_hits"] = copyMap(spec.InnerHits)
		}
	}

	return models.QueryBody{
		"query": query,
	}, nil
}

// CommonPath returns the longest dot-segment prefix shared by all search paths.
// A single search path yields its first segment.
func CommonPath(searchPaths []string) string {
	if len(searchPaths) == 0 {
		return ""
	}
	if len(searchPaths) == 1 {
		return strings.Split(searchPaths[0], ".")[0]
	}

	common := strings.Split(searchPaths[0], ".")
	for _, path := range searchPaths[1:] {
		segments := strings.Split(path, ".")
		n := 0
		for n < len(common) && n < len(segments) && common[n] == segments[n] {
			n++
		}
		common = common[:n]
	}

	return strings.Join(common, ".")
}

// compileFilters restricts the query to the configured collections and hides deleted records.
// Keys next to "query" (min_score) are kept on the wrapped body.
func compileFilters(inner models.QueryBody, opts Options) models.QueryBody {
	if len(inner) == 0 {
		return nil
	}
	if opts.MatchDeleted && len(opts.Collections) == 0 {
		return inner
	}

	filter := map[string]any{}
	if len(opts.Collections) > 0 {
		should := make([]any, 0, len(opts.Collections))
		for _, collection := range opts.Collections {
			should = append(should, map[string]any{
				"match": map[string]any{
					"_collections": collection,
				},
			})
		}
		filter["should"] = should
	}
	if !opts.MatchDeleted {
		filter["must_not"] = map[string]any{
			"match": map[string]any{
				"deleted": true,
			},
		}
	}

	result := models.QueryBody{}
	for key, value := range inner {
		if key != "query" {
			result[key] = value
		}
	}
	result["query"] = map[string]any{
		"bool": map[string]any{
			"must": inner["query"],
			"filter": map[string]any{
				"bool": filter,
			},
		},
	}

	return result
}
