// Package search sends compiled queries to the search backend
package search

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

// Request is one query against an index
type Request struct {
	Index   string
	DocType string
	Body    models.QueryBody
	Size    int
	Source  []string
}

// Searcher runs a query and returns its hits in rank order
type Searcher interface {
	Search(ctx context.Context, req Request) ([]models.Hit, error)
}

// SearcherFunc adapts a function to a Searcher
type SearcherFunc func(ctx context.Context, req Request) ([]models.Hit, error)

func (f SearcherFunc) Search(ctx context.Context, req Request) ([]models.Hit, error) {
	return f(ctx, req)
}

type rateLimited struct {
	next    Searcher
	limiter *rate.Limiter
}

// RateLimited waits for the limiter before every search
func RateLimited(next Searcher, limiter *rate.Limiter) Searcher {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Search(ctx context.Context, req Request) ([]models.Hit, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Search(ctx, req)
}

type timeoutSearcher struct {
	next    Searcher
	timeout time.Duration
}

// WithTimeout bounds every search by timeout. A zero timeout returns next unchanged.
func WithTimeout(next Searcher, timeout time.Duration) Searcher {
	if timeout <= 0 {
		return next
	}
	return &timeoutSearcher{next: next, timeout: timeout}
}

func (t *timeoutSearcher) Search(ctx context.Context, req Request) ([]models.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Search(ctx, req)
}
