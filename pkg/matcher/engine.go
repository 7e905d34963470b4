// Package matcher runs matching algorithms: compile each query, search, validate the hits
package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/fingerprint"
	"github.com/inspirehep/inspire-matcher/pkg/metrics"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
	"github.com/inspirehep/inspire-matcher/pkg/search"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
	"github.com/inspirehep/inspire-matcher/pkg/validators"
)

// RunCache stores finished runs per config (name and content fingerprint) and record fingerprint
type RunCache interface {
	Get(ctx context.Context, configName, configFingerprint, recordFingerprint string) (*models.MatchRun, error)
	Set(ctx context.Context, run *models.MatchRun) error
}

// Engine matches records against the index following a MatcherConfig
type Engine struct {
	logger     ectologger.Logger
	compiler   *query.Compiler
	searcher   search.Searcher
	validators *validators.Registry
	cache      RunCache
}

// Option configures an Engine
type Option func(*Engine)

// WithCache reuses runs for records already matched with the same config
func WithCache(cache RunCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// NewEngine creates a new match engine
func NewEngine(logger ectologger.Logger, searcher search.Searcher, registry *validators.Registry, opts ...Option) *Engine {
	e := &Engine{
		logger:     logger,
		compiler:   query.NewCompiler(logger),
		searcher:   searcher,
		validators: registry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compiler returns the query compiler used by the engine
func (e *Engine) Compiler() *query.Compiler {
	return e.compiler
}

// Match runs every step of cfg for record and returns the hits that passed their step validators,
// in step then query then rank order. A nil cfg uses the default config.
func (e *Engine) Match(ctx context.Context, record models.Record, cfg *models.MatcherConfig) (*models.MatchRun, error) {
	ctx, span := tracing.StartSpan(ctx, "matcher.Engine.Match")
	defer span.End()

	if cfg == nil {
		e.logger.WithContext(ctx).Debug("No configuration provided. Falling back to the default configuration.")
		cfg = models.DefaultMatcherConfig()
	}
	if err := config.ValidateMatcherConfig(cfg); err != nil {
		return nil, err
	}

	configName := cfg.Name
	if configName == "" {
		configName = "unnamed"
	}
	span.SetAttributes(attribute.String("matcher.config", configName))

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"config": configName,
		"index":  cfg.Index,
	})

	recordFingerprint := fingerprint.Record(map[string]any(record))
	// two configs sharing a name (inline ones) must not share cached runs
	configFingerprint := fingerprint.Generate(cfg)

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, configName, configFingerprint, recordFingerprint)
		if err != nil {
			log.WithError(err).Warn("Failed to read match cache")
		} else if cached != nil {
			log.Debug("Using cached match run")
			metrics.MatchRunsTotal.WithLabelValues(configName, outcome(cached)).Inc()
			return cached, nil
		}
	}

	start := time.Now()
	run := &models.MatchRun{
		RunID:             uuid.New().String(),
		ConfigName:        configName,
		RecordFingerprint: recordFingerprint,
		ConfigFingerprint: configFingerprint,
		Matches:           []models.Match{},
	}

	if err := e.runSteps(ctx, log, record, cfg, run); err != nil {
		metrics.MatchRunsTotal.WithLabelValues(configName, "error").Inc()
		tracing.RecordError(span, err)
		return nil, err
	}

	metrics.MatchRunDuration.WithLabelValues(configName).Observe(time.Since(start).Seconds())
	metrics.MatchRunsTotal.WithLabelValues(configName, outcome(run)).Inc()

	log.WithFields(map[string]any{
		"run_id":  run.RunID,
		"matches": len(run.Matches),
	}).Debug("Match run finished")

	if e.cache != nil {
		if err := e.cache.Set(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to write match cache")
		}
	}

	return run, nil
}

func (e *Engine) runSteps(ctx context.Context, log ectologger.Logger, record models.Record, cfg *models.MatcherConfig, run *models.MatchRun) error {
	opts := query.Options{
		Collections:  cfg.Collections,
		MatchDeleted: cfg.MatchDeleted,
	}

	for i, step := range cfg.Algorithm {
		if len(step.Queries) == 0 {
			return fmt.Errorf("%w: step %d has no queries", config.ErrMalformedConfig, i)
		}

		validator := e.validators.Resolve(ctx, step.Validator)

		for j, spec := range step.Queries {
			body, err := e.compiler.Compile(ctx, spec, record, opts)
			if err != nil {
				metrics.QueriesTotal.WithLabelValues(string(spec.Type), "error").Inc()
				var compileErr *query.CompileError
				if errors.As(err, &compileErr) {
					return compileErr.At(i, j)
				}
				return fmt.Errorf("query %d of step %d does not compile: %w", j, i, err)
			}
			if body == nil {
				metrics.QueriesTotal.WithLabelValues(string(spec.Type), "skipped").Inc()
				continue
			}
			metrics.QueriesTotal.WithLabelValues(string(spec.Type), "sent").Inc()

			log.WithFields(map[string]any{
				"step":  i,
				"query": j,
				"body":  body,
			}).Debug("Sending search query")

			searchStart := time.Now()
			hits, err := e.searcher.Search(ctx, search.Request{
				Index:   cfg.Index,
				DocType: cfg.DocType,
				Body:    body,
				Size:    cfg.SearchSize(),
				Source:  cfg.Source,
			})
			metrics.SearchDuration.WithLabelValues(cfg.Index).Observe(time.Since(searchStart).Seconds())
			if err != nil {
				return err
			}

			for _, hit := range hits {
				if !validator.Validate(record, hit) {
					metrics.HitsValidatedTotal.WithLabelValues(run.ConfigName, "rejected").Inc()
					continue
				}
				metrics.HitsValidatedTotal.WithLabelValues(run.ConfigName, "accepted").Inc()
				run.Matches = append(run.Matches, models.Match{
					Step:  i,
					Query: j,
					Hit:   hit,
				})
			}
		}
	}

	return nil
}

func outcome(run *models.MatchRun) string {
	if len(run.Matches) > 0 {
		return "matched"
	}
	return "unmatched"
}
