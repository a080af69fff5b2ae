// Package store defines the persistence interfaces for users and analysis
// history and provides the JSON-file backend. A PostgreSQL backend for the
// same interfaces lives in internal/database.
package store

import (
	"context"
	"errors"

	"github.com/tradesight/tradesight/internal/models"
)

// ErrNotFound is returned when a user id is unknown.
var ErrNotFound = errors.New("not found")

// UserStore owns User records. No other component mutates users directly.
type UserStore interface {
	// UpsertByEmail returns the user with the given email, creating one
	// with an empty API key if none exists. Safe to call repeatedly.
	UpsertByEmail(ctx context.Context, email, name, picture string) (*models.User, error)

	// GetSettings returns the user's API key and risk settings, with
	// defaults applied when the user never saved risk settings.
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)

	// UpdateSettings applies a partial update: nil fields are left
	// unchanged. The write is durable before it returns.
	UpdateSettings(ctx context.Context, userID string, geminiKey *string, risk *models.RiskSettings) error
}

// Journal owns AnalysisRecord records: append-only, per-user filterable.
type Journal interface {
	// Append creates and durably persists a new record, assigning its id
	// and timestamp. Must not lose writes under concurrent appends.
	Append(ctx context.Context, userID, imageURL string, result *models.SignalPlan) (*models.AnalysisRecord, error)

	// List returns the user's records newest first, empty when none.
	List(ctx context.Context, userID string) ([]*models.AnalysisRecord, error)
}
