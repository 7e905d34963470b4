package models

import (
	"encoding/json"
	"time"
)

// Match is a hit that passed every validator of the step that produced it
type Match struct {
	Step  int `json:"step"`
	Query int `json:"query"`
	Hit   Hit `json:"hit"`
}

// MatchResult is a persisted match between an incoming record and an indexed one
type MatchResult struct {
	ID                string          `json:"id" db:"id"`
	RunID             string          `json:"run_id" db:"run_id"`
	ConfigName        string          `json:"config_name" db:"config_name"`
	RecordFingerprint string          `json:"record_fingerprint" db:"record_fingerprint"`
	Step              int             `json:"step" db:"step"`
	Query             int             `json:"query" db:"query_index"`
	HitIndex          string          `json:"hit_index" db:"hit_index"`
	HitID             string          `json:"hit_id" db:"hit_id"`
	HitScore          float64         `json:"hit_score" db:"hit_score"`
	HitSource         json.RawMessage `json:"hit_source" db:"hit_source"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// MatchRun is the outcome of matching one record against one config
type MatchRun struct {
	RunID             string  `json:"run_id"`
	ConfigName        string  `json:"config_name"`
	RecordFingerprint string  `json:"record_fingerprint"`
	ConfigFingerprint string  `json:"config_fingerprint"`
	Matches           []Match `json:"matches"`
	Cached            bool    `json:"cached"`
}
