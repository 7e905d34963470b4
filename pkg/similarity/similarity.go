// Package similarity holds the scoring primitives shared by the validators
package similarity

import (
	"strings"

	"github.com/inspirehep/inspire-matcher/pkg/authors"
)

// Math markers switch TitleScore to the math threshold
var mathMarkers = []string{"<math>", "$"}

// EmptyAuthorsPolicy decides the author score when either author list is empty
type EmptyAuthorsPolicy string

const (
	// EmptyAuthorsZero scores 0: nothing confirms the match
	EmptyAuthorsZero EmptyAuthorsPolicy = "zero"
	// EmptyAuthorsOne scores 1: missing authors do not disqualify
	EmptyAuthorsOne EmptyAuthorsPolicy = "one"
)

// AuthorsMetric selects how matched author pairs become a score
type AuthorsMetric string

const (
	// MetricJaccard is matches / (|x| + |y| - matches)
	MetricJaccard AuthorsMetric = "jaccard"
	// MetricCoverage is matches / max(|x|, |y|)
	MetricCoverage AuthorsMetric = "coverage"
)

var defaultComparator = authors.NewComparator()

// CountAuthorMatches returns the number of authors the two lists have in common
func CountAuthorMatches(xAuthors, yAuthors []any) int {
	return countMatches(defaultComparator, xAuthors, yAuthors)
}

func countMatches(comparator *authors.Comparator, xAuthors, yAuthors []any) int {
	if comparator == nil {
		comparator = defaultComparator
	}
	return comparator.CountMatches(authors.FromList(xAuthors), authors.FromList(yAuthors))
}

// JaccardIndex returns |x ∩ y| / |x ∪ y|, or 0 when either set is empty
func JaccardIndex[T comparable](x, y map[T]struct{}) float64 {
	if len(x) == 0 || len(y) == 0 {
		return 0
	}

	intersection := 0
	for k := range x {
		if _, ok := y[k]; ok {
			intersection++
		}
	}
	union := len(x) + len(y) - intersection
	return float64(intersection) / float64(union)
}

// SetOf builds a set from a slice
func SetOf[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// AuthorsJaccardIndex treats matched authors as the intersection of the two lists
func AuthorsJaccardIndex(xAuthors, yAuthors []any) float64 {
	return authorsJaccardIndex(defaultComparator, xAuthors, yAuthors)
}

func authorsJaccardIndex(comparator *authors.Comparator, xAuthors, yAuthors []any) float64 {
	if len(xAuthors) == 0 || len(yAuthors) == 0 {
		return 0
	}
	matches := countMatches(comparator, xAuthors, yAuthors)
	return float64(matches) / float64(len(xAuthors)+len(yAuthors)-matches)
}

// AuthorCoverage is the share of the longer list that found a match
func AuthorCoverage(xAuthors, yAuthors []any) float64 {
	return authorCoverage(defaultComparator, xAuthors, yAuthors)
}

func authorCoverage(comparator *authors.Comparator, xAuthors, yAuthors []any) float64 {
	if len(xAuthors) == 0 || len(yAuthors) == 0 {
		return 0
	}
	matches := countMatches(comparator, xAuthors, yAuthors)
	return float64(matches) / float64(max(len(xAuthors), len(yAuthors)))
}

// AuthorScoreOptions configures AuthorMatchScore. A nil Comparator requires equal last names.
type AuthorScoreOptions struct {
	Metric      AuthorsMetric
	EmptyPolicy EmptyAuthorsPolicy
	Comparator  *authors.Comparator
}

// AuthorMatchScore scores two author lists with the configured metric. When either list is
// empty the policy decides; the zero value of the options is jaccard with the zero policy.
func AuthorMatchScore(xAuthors, yAuthors []any, opts AuthorScoreOptions) float64 {
	if len(xAuthors) == 0 || len(yAuthors) == 0 {
		if opts.EmptyPolicy == EmptyAuthorsOne {
			return 1
		}
		return 0
	}

	if opts.Metric == MetricCoverage {
		return authorCoverage(opts.Comparator, xAuthors, yAuthors)
	}
	return authorsJaccardIndex(opts.Comparator, xAuthors, yAuthors)
}

// TokenizeTitle returns the set of lowercase whitespace separated tokens of a title
func TokenizeTitle(title string) map[string]struct{} {
	return SetOf(strings.Fields(strings.ToLower(title)))
}

// HasMath reports whether a title contains a math marker
func HasMath(title string) bool {
	for _, marker := range mathMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// TitleScore is the Jaccard index of the tokenized titles, or 0 when it falls below the
// threshold. mathThreshold applies instead when either title contains math.
func TitleScore(xTitle, yTitle string, threshold, mathThreshold float64) float64 {
	applicable := threshold
	if HasMath(xTitle) || HasMath(yTitle) {
		applicable = mathThreshold
	}

	score := JaccardIndex(TokenizeTitle(xTitle), TokenizeTitle(yTitle))
	if score < applicable {
		return 0
	}
	return score
}

// MaxTitleScore is the best TitleScore over every pair of titles
func MaxTitleScore(xTitles, yTitles []string, threshold, mathThreshold float64) float64 {
	best := 0.0
	for _, x := range xTitles {
		for _, y := range yTitles {
			if score := TitleScore(x, y, threshold, mathThreshold); score > best {
				best = score
			}
		}
	}
	return best
}
