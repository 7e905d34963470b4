package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{messages: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.messages <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.messages:
		return m, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestParseMatchRequest(t *testing.T) {
	t.Run("should read config and record", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"config":"journals","record":{"titles":[{"title":"A"}]}}`)}
		require.NoError(t, msg.ParseMatchRequest())
		assert.Equal(t, "journals", msg.ConfigName())
		assert.Contains(t, msg.Request.Record, "titles")
	})

	t.Run("should fall back to the config header", func(t *testing.T) {
		msg := &IncomingMessage{
			Value:   []byte(`{"record":{"control_number":1}}`),
			Headers: map[string]string{HeaderConfig: "authors"},
		}
		require.NoError(t, msg.ParseMatchRequest())
		assert.Equal(t, "authors", msg.ConfigName())
	})

	t.Run("should reject a message without a record", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"config":"default"}`)}
		assert.Error(t, msg.ParseMatchRequest())
	})

	t.Run("should reject invalid json", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`not json`)}
		assert.Error(t, msg.ParseMatchRequest())
	})
}

func TestConsumer(t *testing.T) {
	t.Run("should commit handled and malformed messages but not failed ones", func(t *testing.T) {
		reader := newFakeReader(
			kafka.Message{Offset: 1, Value: []byte(`{"record":{"a":1}}`)},
			kafka.Message{Offset: 2, Value: []byte(`garbage`)},
			kafka.Message{Offset: 3, Value: []byte(`{"record":{"fail":true}}`)},
		)

		var mu sync.Mutex
		handled := []int64{}
		consumer := newConsumer(reader, "records", nopLogger(), func(_ context.Context, msg *IncomingMessage) error {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, msg.Offset)
			if _, ok := msg.Request.Record["fail"]; ok {
				return errors.New("search unavailable")
			}
			return nil
		})

		require.NoError(t, consumer.Start(context.Background()))
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(handled) == 2
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, consumer.Stop())

		assert.Equal(t, []int64{1, 2}, reader.commits())
		assert.True(t, reader.closed)
	})

	t.Run("should report whether the consume loop is running", func(t *testing.T) {
		consumer := newConsumer(newFakeReader(), "records", nopLogger(), func(context.Context, *IncomingMessage) error {
			return nil
		})
		assert.ErrorIs(t, consumer.Ping(context.Background()), ErrConsumerStopped)

		require.NoError(t, consumer.Start(context.Background()))
		assert.NoError(t, consumer.Ping(context.Background()))

		require.NoError(t, consumer.Stop())
		assert.ErrorIs(t, consumer.Ping(context.Background()), ErrConsumerStopped)
	})
}

func TestProducer(t *testing.T) {
	run := &models.MatchRun{
		RunID:             "run-1",
		ConfigName:        "default",
		RecordFingerprint: "fp",
		Matches: []models.Match{
			{Step: 0, Query: 1, Hit: models.Hit{Index: "records-hep", ID: "42", Score: 7.5, Source: models.Record{"big": "document"}}},
		},
	}

	t.Run("should build a match.found event without sources", func(t *testing.T) {
		event := NewMatchEvent("key-1", run)
		assert.Equal(t, EventTypeMatchFound, event.EventType)
		require.Len(t, event.Matches, 1)
		assert.Equal(t, EventMatch{Step: 0, Query: 1, Index: "records-hep", ID: "42", Score: 7.5}, event.Matches[0])
	})

	t.Run("should build a match.none event for empty runs", func(t *testing.T) {
		event := NewMatchEvent("key-1", &models.MatchRun{RunID: "run-2"})
		assert.Equal(t, EventTypeMatchNone, event.EventType)
		assert.Empty(t, event.Matches)
	})

	t.Run("should publish keyed by fingerprint", func(t *testing.T) {
		writer := &fakeWriter{}
		producer := newProducer(writer, "match-events", nopLogger())

		require.NoError(t, producer.PublishMatchEvent(context.Background(), NewMatchEvent("key-1", run)))
		require.Len(t, writer.messages, 1)

		msg := writer.messages[0]
		assert.Equal(t, "match-events", msg.Topic)
		assert.Equal(t, "fp", string(msg.Key))

		var decoded MatchEvent
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, "run-1", decoded.RunID)
		assert.False(t, decoded.Timestamp.IsZero())
	})

	t.Run("should return write errors", func(t *testing.T) {
		producer := newProducer(&fakeWriter{err: errors.New("broker down")}, "match-events", nopLogger())
		assert.Error(t, producer.PublishMatchEvent(context.Background(), NewMatchEvent("", run)))
	})
}
