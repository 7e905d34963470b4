// Package processor matches the records consumed by the worker and reports the outcome.
package processor

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/inspirehep/inspire-matcher/config"
	reqctx "github.com/inspirehep/inspire-matcher/pkg/context"
	"github.com/inspirehep/inspire-matcher/pkg/kafka"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
)

const defaultConfigName = "default"

type Engine interface {
	Match(ctx context.Context, record models.Record, cfg *models.MatcherConfig) (*models.MatchRun, error)
}

type ConfigStore interface {
	Get(name string) (*models.MatcherConfig, bool)
}

type ResultStore interface {
	SaveRun(ctx context.Context, run *models.MatchRun) ([]models.MatchResult, error)
}

type Publisher interface {
	PublishMatchEvent(ctx context.Context, event *kafka.MatchEvent) error
}

// Processor handles match requests. results and publisher are optional.
type Processor struct {
	logger    ectologger.Logger
	engine    Engine
	configs   ConfigStore
	results   ResultStore
	publisher Publisher
}

func NewProcessor(logger ectologger.Logger, engine Engine, configs ConfigStore, results ResultStore, publisher Publisher) *Processor {
	return &Processor{
		logger:    logger,
		engine:    engine,
		configs:   configs,
		results:   results,
		publisher: publisher,
	}
}

// HandleMessage is a kafka.MessageHandler. Requests that can never succeed (unknown config,
// malformed config, uncompilable query) are logged and dropped. Other errors are returned
// so the message is redelivered.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	name := msg.ConfigName()
	if name == "" {
		name = defaultConfigName
	}
	ctx = reqctx.SetConfigName(ctx, name)

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"config": name,
		"key":    msg.Key,
		"offset": msg.Offset,
	})

	cfg, ok := p.configs.Get(name)
	if !ok {
		log.Error("Unknown matcher config, dropping message")
		return nil
	}

	run, err := p.engine.Match(ctx, msg.Request.Record, cfg)
	if err != nil {
		if isPermanent(err) {
			log.WithError(err).Error("Record cannot be matched with this config, dropping message")
			return nil
		}
		tracing.RecordError(span, err)
		return err
	}
	ctx = reqctx.SetRunID(ctx, run.RunID)

	// cached runs were stored when first computed
	if p.results != nil && !run.Cached {
		if _, err := p.results.SaveRun(ctx, run); err != nil {
			return err
		}
	}

	if p.publisher != nil {
		if err := p.publisher.PublishMatchEvent(ctx, kafka.NewMatchEvent(msg.Key, run)); err != nil {
			return err
		}
	}

	log.WithFields(map[string]any{
		"run_id":  run.RunID,
		"matches": len(run.Matches),
	}).Info("Processed match request")
	return nil
}

func isPermanent(err error) bool {
	var compileErr *query.CompileError
	return errors.Is(err, config.ErrMalformedConfig) || errors.As(err, &compileErr)
}
