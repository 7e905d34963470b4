package models

// Record is one bibliographic record as decoded from JSON: nested maps, slices and scalars
type Record map[string]any

// Hit is a single search result. Source holds the stored record.
type Hit struct {
	Index     string         `json:"_index,omitempty"`
	ID        string         `json:"_id"`
	Score     float64        `json:"_score"`
	Source    Record         `json:"_source"`
	InnerHits map[string]any `json:"inner_hits,omitempty"`
}

