package models

import "time"

// AnalysisRecord is one persisted, immutable result of running the analysis
// pipeline for a user. Records are only ever appended, never updated.
type AnalysisRecord struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	ImageURL  string      `json:"imageUrl"`
	Timestamp time.Time   `json:"timestamp"`
	Result    *SignalPlan `json:"result"`
}

// Analysis event type constants
const (
	EventAnalysisCompleted = "ANALYSIS_COMPLETED"
)

// AnalysisEvent is published to Kafka after a record has been journaled
type AnalysisEvent struct {
	EventType string          `json:"event_type"`
	UserID    string          `json:"user_id"`
	Record    *AnalysisRecord `json:"record"`
	Timestamp time.Time       `json:"timestamp"`
}
