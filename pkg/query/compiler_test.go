package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

func newTestCompiler() *Compiler {
	return NewCompiler(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

// record decodes JSON so values have the shapes a decoded record has
func record(t *testing.T, raw string) models.Record {
	t.Helper()
	var r models.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

// asJSON compares bodies by their wire form
func asJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func boost(v float64) *float64 {
	return &v
}

var matchAll = Options{MatchDeleted: true}

func TestCompileExact(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	t.Run("should compile an arxiv eprint query", func(t *testing.T) {
		r := record(t, `{"arxiv_eprints":[{"value":"hep-th/9711200"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "arxiv_eprints.value", SearchPath: "arxiv_eprints.value.raw"}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"bool":{"should":[{"match":{"arxiv_eprints.value.raw":"hep-th/9711200"}}]}}}`, asJSON(t, body))
	})

	t.Run("should emit one clause per value", func(t *testing.T) {
		r := record(t, `{"dois":[{"value":"10.1/a"},{"value":"10.1/b"},{"value":"10.1/c"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "dois.value", SearchPath: "dois.value.raw"}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		should := body["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
		require.Len(t, should, 3)
		assert.Equal(t, map[string]any{"match": map[string]any{"dois.value.raw": "10.1/b"}}, should[1])
	})

	t.Run("should wrap a scalar value", func(t *testing.T) {
		r := record(t, `{"control_number":123}`)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "control_number", SearchPath: "control_number"}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"bool":{"should":[{"match":{"control_number":123}}]}}}`, asJSON(t, body))
	})

	t.Run("should return nil when the value is missing", func(t *testing.T) {
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "dois.value", SearchPath: "dois.value.raw"}

		body, err := c.Compile(ctx, spec, record(t, `{"titles":[{"title":"x"}]}`), Options{})
		require.NoError(t, err)
		assert.Nil(t, body)

		body, err = c.Compile(ctx, spec, record(t, `{"dois":[]}`), Options{})
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("should accept deprecated keys without mutating the query", func(t *testing.T) {
		r := record(t, `{"arxiv_eprints":[{"value":"hep-th/9711200"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Match: "arxiv_eprints.value", Search: "arxiv_eprints.value.raw"}
		before := spec

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"bool":{"should":[{"match":{"arxiv_eprints.value.raw":"hep-th/9711200"}}]}}}`, asJSON(t, body))
		assert.Equal(t, before, spec)
		assert.Empty(t, spec.Path)
	})

	t.Run("should reject a spec without paths", func(t *testing.T) {
		_, err := c.Compile(ctx, models.QuerySpec{Type: models.QueryTypeExact, Path: "a"}, record(t, `{"a":1}`), Options{})
		assert.ErrorIs(t, err, ErrMalformedQuery)

		_, err = c.Compile(ctx, models.QuerySpec{Type: models.QueryTypeExact, SearchPath: "a"}, record(t, `{"a":1}`), Options{})
		assert.ErrorIs(t, err, ErrMalformedQuery)
	})

	t.Run("should not modify the record", func(t *testing.T) {
		r := record(t, `{"dois":[{"value":"10.1/a"}]}`)
		before := asJSON(t, r)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "dois.value", SearchPath: "dois.value.raw"}

		_, err := c.Compile(ctx, spec, r, Options{Collections: []string{"Literature"}})
		require.NoError(t, err)
		assert.Equal(t, before, asJSON(t, r))
	})
}

func TestCompileFuzzy(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	t.Run("should compile more_like_this clauses", func(t *testing.T) {
		r := record(t, `{"abstracts":[{"value":"A review"}],"titles":[{"title":"CP violation"}]}`)
		spec := models.QuerySpec{
			Type: models.QueryTypeFuzzy,
			Clauses: []models.FuzzyClause{
				{Path: "abstracts"},
				{Path: "titles", Boost: boost(3)},
				{Path: "authors[:3]"},
			},
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"min_score": 1,
			"query": {
				"dis_max": {
					"queries": [
						{"more_like_this": {"boost": 1, "docs": [{"doc": {"abstracts": [{"value": "A review"}]}}], "max_query_terms": 25, "min_doc_freq": 1, "min_term_freq": 1}},
						{"more_like_this": {"boost": 3, "docs": [{"doc": {"titles": [{"title": "CP violation"}]}}], "max_query_terms": 25, "min_doc_freq": 1, "min_term_freq": 1}}
					],
					"tie_breaker": 0.3
				}
			}
		}`, asJSON(t, body))
	})

	t.Run("should restrict values to the slice and strip it from the field name", func(t *testing.T) {
		r := record(t, `{"authors":[{"full_name":"A"},{"full_name":"B"},{"full_name":"C"},{"full_name":"D"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeFuzzy, Clauses: []models.FuzzyClause{{Path: "authors[:3]"}}}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		queries := body["query"].(map[string]any)["dis_max"].(map[string]any)["queries"].([]any)
		require.Len(t, queries, 1)
		doc := queries[0].(map[string]any)["more_like_this"].(map[string]any)["docs"].([]any)[0].(map[string]any)["doc"].(map[string]any)
		assert.JSONEq(t, `{"authors":[{"full_name":"A"},{"full_name":"B"},{"full_name":"C"}]}`, asJSON(t, doc))
	})

	t.Run("should reject dotted paths", func(t *testing.T) {
		r := record(t, `{"authors":[{"full_name":"A"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeFuzzy, Clauses: []models.FuzzyClause{{Path: "authors.full_name"}}}

		_, err := c.Compile(ctx, spec, r, matchAll)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedQuery)
		assert.True(t, IsCompileError(err))
	})

	t.Run("should return nil when every clause is empty", func(t *testing.T) {
		spec := models.QuerySpec{Type: models.QueryTypeFuzzy, Clauses: []models.FuzzyClause{{Path: "abstracts"}, {Path: "titles"}}}

		body, err := c.Compile(ctx, spec, record(t, `{"abstracts":[],"titles":null}`), Options{})
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("should keep min_score when filters are added", func(t *testing.T) {
		r := record(t, `{"abstracts":[{"value":"A review"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeFuzzy, Clauses: []models.FuzzyClause{{Path: "abstracts"}}}

		body, err := c.Compile(ctx, spec, r, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, body["min_score"])
		must := body["query"].(map[string]any)["bool"].(map[string]any)["must"].(map[string]any)
		assert.Contains(t, must, "dis_max")
	})
}

func TestCompileNested(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	r := record(t, `{"publication_info":[{"journal_title":"Phys.Rev.","journal_volume":"D94","artid":"054021"}]}`)

	t.Run("should compile a nested query", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title", "publication_info.journal_volume", "publication_info.artid"},
			SearchPaths: []string{"publication_info.journal_title", "publication_info.journal_volume", "publication_info.artid"},
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"query": {
				"nested": {
					"path": "publication_info",
					"query": {
						"bool": {
							"must": [
								{"match": {"publication_info.journal_title": ["Phys.Rev."]}},
								{"match": {"publication_info.journal_volume": ["D94"]}},
								{"match": {"publication_info.artid": ["054021"]}}
							]
						}
					}
				}
			}
		}`, asJSON(t, body))
	})

	t.Run("should apply the operator", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title"},
			SearchPaths: []string{"publication_info.journal_title"},
			Operator:    models.OperatorAND,
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"nested":{"path":"publication_info","query":{"bool":{"must":[
			{"match":{"publication_info.journal_title":{"query":["Phys.Rev."],"operator":"AND"}}}
		]}}}}}`, asJSON(t, body))
	})

	t.Run("should use phrase prefix for the prefix search path", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:             models.QueryTypeNestedPrefix,
			Paths:            []string{"publication_info.journal_title", "publication_info.journal_volume"},
			SearchPaths:      []string{"publication_info.journal_title", "publication_info.journal_volume"},
			PrefixSearchPath: "publication_info.journal_title",
			InnerHits:        map[string]any{"size": 1},
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"nested":{
			"path":"publication_info",
			"inner_hits":{"size":1},
			"query":{"bool":{"must":[
				{"match_phrase_prefix":{"publication_info.journal_title":["Phys.Rev."]}},
				{"match":{"publication_info.journal_volume":["D94"]}}
			]}}
		}}}`, asJSON(t, body))
	})

	t.Run("should return nil when any value is missing", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title", "publication_info.page_start"},
			SearchPaths: []string{"publication_info.journal_title", "publication_info.page_start"},
		}

		body, err := c.Compile(ctx, spec, r, Options{})
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("should reject mismatched paths", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title"},
			SearchPaths: []string{"publication_info.journal_title", "publication_info.artid"},
		}

		_, err := c.Compile(ctx, spec, r, Options{})
		assert.ErrorIs(t, err, ErrMalformedQuery)
	})

	t.Run("should reject search paths without a common path", func(t *testing.T) {
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title", "publication_info.artid"},
			SearchPaths: []string{"a.b", "c.d"},
		}

		_, err := c.Compile(ctx, spec, r, Options{})
		assert.ErrorIs(t, err, ErrMalformedQuery)
	})
}

func TestCommonPath(t *testing.T) {
	assert.Equal(t, "a.b", CommonPath([]string{"a.b.c", "a.b.d"}))
	assert.Equal(t, "a", CommonPath([]string{"a.b.c", "a.d"}))
	assert.Equal(t, "", CommonPath([]string{"a.b", "c.d"}))
	assert.Equal(t, "authors", CommonPath([]string{"authors.full_name"}))
	assert.Equal(t, "", CommonPath(nil))
}

func TestCompileAuthorNames(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	t.Run("should compile the first author name", func(t *testing.T) {
		r := record(t, `{"authors":[{"full_name":"Ellis, John"},{"full_name":"Higgs, Peter"}]}`)
		spec := models.QuerySpec{
			Type:      models.QueryTypeAuthorNames,
			Path:      "authors.full_name",
			InnerHits: map[string]any{"_source": []any{"authors.full_name"}},
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		nested := body["query"].(map[string]any)["nested"].(map[string]any)
		assert.Equal(t, "authors", nested["path"])
		assert.Equal(t, map[string]any{"_source": []any{"authors.full_name"}}, nested["inner_hits"])

		must := nested["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
		assert.Equal(t, map[string]any{
			"match": map[string]any{
				"authors.last_name": map[string]any{"query": "Ellis", "operator": "AND"},
			},
		}, must[0])
	})

	t.Run("should return nil without a name", func(t *testing.T) {
		spec := models.QuerySpec{Type: models.QueryTypeAuthorNames, Path: "authors.full_name"}

		body, err := c.Compile(ctx, spec, record(t, `{"authors":[]}`), matchAll)
		require.NoError(t, err)
		assert.Nil(t, body)
	})
}

func TestCompileUnknownType(t *testing.T) {
	c := newTestCompiler()

	_, err := c.Compile(context.Background(), models.QuerySpec{Type: "geo"}, models.Record{}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.False(t, errors.Is(err, ErrMalformedQuery))

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, http.StatusNotImplemented, httperror.GetStatusCode(compileErr.ToHTTPError()))
}

func TestCompileCopiesInputs(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	t.Run("should not share fuzzy documents with the record", func(t *testing.T) {
		r := record(t, `{"titles":[{"title":"CP violation"}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeFuzzy, Clauses: []models.FuzzyClause{{Path: "titles"}}}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		queries := body["query"].(map[string]any)["dis_max"].(map[string]any)["queries"].([]any)
		mlt := queries[0].(map[string]any)["more_like_this"].(map[string]any)
		doc := mlt["docs"].([]any)[0].(map[string]any)["doc"].(map[string]any)
		titles := doc["titles"].([]any)
		titles[0].(map[string]any)["title"] = "changed"
		titles[0] = "replaced"

		assert.JSONEq(t, `{"titles":[{"title":"CP violation"}]}`, asJSON(t, r))
	})

	t.Run("should not share exact values with the record", func(t *testing.T) {
		r := record(t, `{"ids":[{"value":{"schema":"INSPIRE","id":"1"}}]}`)
		spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "ids.value", SearchPath: "ids"}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		should := body["query"].(map[string]any)["bool"].(map[string]any)["should"].([]any)
		value := should[0].(map[string]any)["match"].(map[string]any)["ids"].(map[string]any)
		value["id"] = "2"

		assert.JSONEq(t, `{"ids":[{"value":{"schema":"INSPIRE","id":"1"}}]}`, asJSON(t, r))
	})

	t.Run("should not share inner_hits with the query", func(t *testing.T) {
		r := record(t, `{"publication_info":[{"journal_title":"Phys.Rev."}]}`)
		spec := models.QuerySpec{
			Type:        models.QueryTypeNested,
			Paths:       []string{"publication_info.journal_title"},
			SearchPaths: []string{"publication_info.journal_title"},
			InnerHits:   map[string]any{"_source": []any{"publication_info.journal_title"}},
		}

		body, err := c.Compile(ctx, spec, r, matchAll)
		require.NoError(t, err)

		nested := body["query"].(map[string]any)["nested"].(map[string]any)
		nested["inner_hits"].(map[string]any)["_source"].([]any)[0] = "changed"

		assert.Equal(t, []any{"publication_info.journal_title"}, spec.InnerHits["_source"])
	})
}

func TestCompileFilters(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()
	r := record(t, `{"dois":[{"value":"10.1/a"}]}`)
	spec := models.QuerySpec{Type: models.QueryTypeExact, Path: "dois.value", SearchPath: "dois.value.raw"}

	t.Run("should exclude deleted records by default", func(t *testing.T) {
		body, err := c.Compile(ctx, spec, r, Options{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"bool":{
			"must":{"bool":{"should":[{"match":{"dois.value.raw":"10.1/a"}}]}},
			"filter":{"bool":{"must_not":{"match":{"deleted":true}}}}
		}}}`, asJSON(t, body))
	})

	t.Run("should restrict to any of the collections", func(t *testing.T) {
		body, err := c.Compile(ctx, spec, r, Options{Collections: []string{"Literature", "HAL Hidden"}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"query":{"bool":{
			"must":{"bool":{"should":[{"match":{"dois.value.raw":"10.1/a"}}]}},
			"filter":{"bool":{
				"should":[{"match":{"_collections":"Literature"}},{"match":{"_collections":"HAL Hidden"}}],
				"must_not":{"match":{"deleted":true}}
			}}
		}}}`, asJSON(t, body))
	})

	t.Run("should keep deleted records with collections when asked", func(t *testing.T) {
		body, err := c.Compile(ctx, spec, r, Options{Collections: []string{"Literature"}, MatchDeleted: true})
		require.NoError(t, err)
		filter := body["query"].(map[string]any)["bool"].(map[string]any)["filter"].(map[string]any)["bool"].(map[string]any)
		assert.NotContains(t, filter, "must_not")
		assert.Contains(t, filter, "should")
	})

	t.Run("should not wrap a nil body", func(t *testing.T) {
		assert.Nil(t, compileFilters(nil, Options{Collections: []string{"Literature"}}))
	})
}
