package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	EventTypeMatchFound = "match.found"
	EventTypeMatchNone  = "match.none"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// MatchEvent reports the outcome of matching one consumed record
type MatchEvent struct {
	EventType         string       `json:"event_type"`
	SchemaVersion     string       `json:"schema_version"`
	RunID             string       `json:"run_id"`
	ConfigName        string       `json:"config_name"`
	RecordKey         string       `json:"record_key,omitempty"`
	RecordFingerprint string       `json:"record_fingerprint"`
	Cached            bool         `json:"cached"`
	Matches           []EventMatch `json:"matches"`
	Timestamp         time.Time    `json:"timestamp"`
}

// EventMatch is one accepted hit, without its source document
type EventMatch struct {
	Step  int     `json:"step"`
	Query int     `json:"query"`
	Index string  `json:"index,omitempty"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// NewMatchEvent builds the event for run. Runs without matches give match.none.
func NewMatchEvent(recordKey string, run *models.MatchRun) *MatchEvent {
	eventType := EventTypeMatchNone
	if len(run.Matches) > 0 {
		eventType = EventTypeMatchFound
	}

	matches := make([]EventMatch, 0, len(run.Matches))
	for _, m := range run.Matches {
		matches = append(matches, EventMatch{
			Step:  m.Step,
			Query: m.Query,
			Index: m.Hit.Index,
			ID:    m.Hit.ID,
			Score: m.Hit.Score,
		})
	}

	return &MatchEvent{
		EventType:         eventType,
		SchemaVersion:     SchemaVersion,
		RunID:             run.RunID,
		ConfigName:        run.ConfigName,
		RecordKey:         recordKey,
		RecordFingerprint: run.RecordFingerprint,
		Cached:            run.Cached,
		Matches:           matches,
	}
}

// PublishMatchEvent publishes a match event keyed by record fingerprint
func (p *Producer) PublishMatchEvent(ctx context.Context, event *MatchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMatchEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, headers)

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.RecordFingerprint),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: HeaderConfig, Value: []byte(event.ConfigName)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}
	for _, key := range headers.Keys() {
		msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(headers.Get(key))})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish match event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"run_id":     event.RunID,
		"matches":    len(event.Matches),
	}).Debug("Published match event")

	return nil
}
