// Package validators decides whether a search hit is an acceptable match for a record
package validators

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/inspirehep/inspire-matcher/pkg/authors"
	"github.com/inspirehep/inspire-matcher/pkg/expressions"
	"github.com/inspirehep/inspire-matcher/pkg/extractor"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/scoring"
	"github.com/inspirehep/inspire-matcher/pkg/similarity"
)

const cdsIdentifiersExpression = "external_system_identifiers[?schema=='CDS'].value"

var (
	paths     = extractor.New()
	evaluator = mustCompile(cdsIdentifiersExpression)
	scorer    = scoring.NewScorer()
)

// mustCompile returns an evaluator with expressions already compiled
func mustCompile(exprs ...string) *expressions.Evaluator {
	e := expressions.NewEvaluator()
	for _, expr := range exprs {
		if err := e.Validate(expr); err != nil {
			panic(err)
		}
	}
	return e
}

// Validator accepts or rejects a hit returned for record
type Validator interface {
	Validate(record models.Record, hit models.Hit) bool
}

// Func adapts a function to a Validator
type Func func(record models.Record, hit models.Hit) bool

func (f Func) Validate(record models.Record, hit models.Hit) bool {
	return f(record, hit)
}

// Default accepts every hit
var Default = Func(func(_ models.Record, _ models.Hit) bool {
	return true
})

// All accepts a hit only when every validator does
func All(validators ...Validator) Validator {
	if len(validators) == 1 {
		return validators[0]
	}
	return Func(func(record models.Record, hit models.Hit) bool {
		for _, v := range validators {
			if !v.Validate(record, hit) {
				return false
			}
		}
		return true
	})
}

// AuthorsTitlesOptions tunes the authors and titles validator
type AuthorsTitlesOptions struct {
	// MaxAuthors truncates both author lists before comparison, 0 compares them whole
	MaxAuthors     int
	TitleThreshold float64
	MathThreshold  float64
	// NeutralScore is used for a dimension one side has no data for
	NeutralScore float64
	AcceptAbove  float64
	Metric       similarity.AuthorsMetric
	// LastNameThreshold lets last names match on Jaro-Winkler similarity, 0 requires equality
	LastNameThreshold float64
	// AuthorsWeight and TitlesWeight blend the two scores, both 1 by default
	AuthorsWeight float64
	TitlesWeight  float64
}

func (o AuthorsTitlesOptions) comparator() *authors.Comparator {
	if o.LastNameThreshold <= 0 {
		return nil
	}
	return authors.NewComparator(authors.WithLastNameThreshold(o.LastNameThreshold))
}

// DefaultAuthorsTitlesOptions compares the first 5 authors, titles at 0.5 (0.3 with math)
func DefaultAuthorsTitlesOptions() AuthorsTitlesOptions {
	return AuthorsTitlesOptions{
		MaxAuthors:     5,
		TitleThreshold: 0.5,
		MathThreshold:  0.3,
		NeutralScore:   0.5,
		AcceptAbove:    0.5,
		Metric:         similarity.MetricJaccard,
		AuthorsWeight:  1,
		TitlesWeight:   1,
	}
}

// AuthorsTitles blends the author overlap and the best title overlap of record and hit
func AuthorsTitles(opts AuthorsTitlesOptions) Validator {
	comparator := opts.comparator()
	return Func(func(record models.Record, hit models.Hit) bool {
		return authorsTitlesScore(record, hit, opts, comparator) > opts.AcceptAbove
	})
}

// AuthorsTitlesScore is the weighted mean of the author score and the title score
func AuthorsTitlesScore(record models.Record, hit models.Hit, opts AuthorsTitlesOptions) float64 {
	return authorsTitlesScore(record, hit, opts, opts.comparator())
}

func authorsTitlesScore(record models.Record, hit models.Hit, opts AuthorsTitlesOptions, comparator *authors.Comparator) float64 {
	recordAuthors := truncate(paths.GetAll(map[string]any(record), "authors"), opts.MaxAuthors)
	hitAuthors := truncate(paths.GetAll(map[string]any(hit.Source), "authors"), opts.MaxAuthors)

	authorScore := opts.NeutralScore
	if len(recordAuthors) > 0 && len(hitAuthors) > 0 {
		authorScore = similarity.AuthorMatchScore(recordAuthors, hitAuthors, similarity.AuthorScoreOptions{
			Metric:     opts.Metric,
			Comparator: comparator,
		})
	}

	recordTitles := paths.GetStrings(map[string]any(record), "titles.title")
	hitTitles := paths.GetStrings(map[string]any(hit.Source), "titles.title")

	titleScore := opts.NeutralScore
	if len(recordTitles) > 0 && len(hitTitles) > 0 {
		titleScore = similarity.MaxTitleScore(recordTitles, hitTitles, opts.TitleThreshold, opts.MathThreshold)
	}

	return scorer.WeightedScore(
		map[string]float64{"authors": authorScore, "titles": titleScore},
		map[string]float64{"authors": weightOrOne(opts.AuthorsWeight), "titles": weightOrOne(opts.TitlesWeight)},
	)
}

func weightOrOne(weight float64) float64 {
	if weight <= 0 {
		return 1
	}
	return weight
}

func truncate(values []any, n int) []any {
	if n > 0 && len(values) > n {
		return values[:n]
	}
	return values
}

// CDSIdentifier accepts hits sharing a CDS external system identifier with the record
var CDSIdentifier = Func(func(record models.Record, hit models.Hit) bool {
	recordIDs, err := evaluator.EvaluateStrings(cdsIdentifiersExpression, map[string]any(record))
	if err != nil {
		return false
	}
	hitIDs, err := evaluator.EvaluateStrings(cdsIdentifiersExpression, map[string]any(hit.Source))
	if err != nil {
		return false
	}
	return intersects(recordIDs, hitIDs)
})

// PersistentIdentifier accepts hits sharing a persistent identifier with the record.
// Identifiers are compared on all their key and value pairs, whatever the key order.
var PersistentIdentifier = Func(func(record models.Record, hit models.Hit) bool {
	return intersects(
		persistentIdentifierKeys(map[string]any(record)),
		persistentIdentifierKeys(map[string]any(hit.Source)),
	)
})

func persistentIdentifierKeys(data map[string]any) []string {
	identifiers := paths.GetAll(data, "persistent_identifiers")
	return ectolinq.Map(identifiers, func(identifier any) string {
		fields, ok := identifier.(map[string]any)
		if !ok {
			return fmt.Sprint(identifier)
		}
		pairs := make([]string, 0, len(fields))
		for k, v := range fields {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
		}
		slices.Sort(pairs)
		return strings.Join(pairs, "\x1f")
	})
}

// ArxivEprints rejects a hit only when both sides have arXiv eprints and none is shared
var ArxivEprints = Func(func(record models.Record, hit models.Hit) bool {
	recordEprints := paths.GetStrings(map[string]any(record), "arxiv_eprints.value")
	hitEprints := paths.GetStrings(map[string]any(hit.Source), "arxiv_eprints.value")

	if len(recordEprints) == 0 || len(hitEprints) == 0 {
		return true
	}
	return intersects(recordEprints, hitEprints)
})

func intersects(x, y []string) bool {
	for _, v := range x {
		if ectolinq.Contains(y, v) {
			return true
		}
	}
	return false
}
