package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/inspirehep/inspire-matcher/pkg/models"
)

// HeaderConfig names the matcher config when the payload does not
const HeaderConfig = "matcher_config"

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Request *MatchRequest
}

// MatchRequest asks the worker to match one record
type MatchRequest struct {
	Config string        `json:"config,omitempty"`
	Record models.Record `json:"record"`
}

// ParseMatchRequest parses the message value as a match request
func (m *IncomingMessage) ParseMatchRequest() error {
	var req MatchRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		return err
	}
	if req.Record == nil {
		return fmt.Errorf("match request at offset %d has no record", m.Offset)
	}
	if req.Config == "" {
		req.Config = m.Headers[HeaderConfig]
	}
	m.Request = &req
	return nil
}

// ConfigName returns the requested matcher config, empty when none was given
func (m *IncomingMessage) ConfigName() string {
	if m.Request != nil && m.Request.Config != "" {
		return m.Request.Config
	}
	return m.Headers[HeaderConfig]
}
