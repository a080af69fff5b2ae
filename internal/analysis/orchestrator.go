// Package analysis composes ingestion, inference, extraction and
// journaling into the end-to-end chart-analysis pipeline.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tradesight/tradesight/internal/extract"
	"github.com/tradesight/tradesight/internal/ingest"
	"github.com/tradesight/tradesight/internal/inference"
	"github.com/tradesight/tradesight/internal/models"
	"github.com/tradesight/tradesight/internal/risk"
	"github.com/tradesight/tradesight/internal/store"
)

var (
	// ErrMissingCredential means the user is unknown or has no API key
	// saved. No external call is made in that case.
	ErrMissingCredential = errors.New("gemini API key missing")
	// ErrPersistence means the journal write failed after a successful
	// inference. The analysis cost was incurred but the result is lost;
	// callers must treat the analysis as not having happened.
	ErrPersistence = errors.New("failed to persist analysis record")
)

// ResponseCache is an optional cache of raw provider responses.
type ResponseCache interface {
	Get(ctx context.Context, image []byte, mode string) (string, error)
	Set(ctx context.Context, image []byte, mode, rawText string) error
}

// EventPublisher is an optional sink for completed-analysis events.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, record *models.AnalysisRecord) error
}

// Result is the analyze response: the persisted record plus a best-effort
// risk summary computed from the plan and the user's settings. The summary
// is not persisted.
type Result struct {
	*models.AnalysisRecord
	Risk *risk.Summary `json:"risk,omitempty"`
}

// Orchestrator runs the request lifecycle: credential check, ingest,
// infer, extract, persist. Every failure is terminal for the request; no
// stage retries.
type Orchestrator struct {
	users    store.UserStore
	journal  store.Journal
	ingestor *ingest.Ingestor
	adapter  inference.Adapter
	cache    ResponseCache  // nil disables caching
	events   EventPublisher // nil disables event publishing
	log      *zap.Logger
}

// New creates an Orchestrator. cache and events may be nil.
func New(users store.UserStore, journal store.Journal, ingestor *ingest.Ingestor, adapter inference.Adapter, cache ResponseCache, events EventPublisher, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		users:    users,
		journal:  journal,
		ingestor: ingestor,
		adapter:  adapter,
		cache:    cache,
		events:   events,
		log:      log,
	}
}

// Analyze runs the full pipeline for one uploaded chart image.
func (o *Orchestrator) Analyze(ctx context.Context, userID, mode string, image []byte, mimeType, originalName string) (*Result, error) {
	// Credential check. An unknown user and an empty key fail the same
	// way; neither triggers ingestion or an external call.
	settings, err := o.users.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissingCredential
		}
		return nil, fmt.Errorf("failed to load user settings: %w", err)
	}
	if settings.GeminiKey == "" {
		return nil, ErrMissingCredential
	}

	ref, err := o.ingestor.Ingest(image, mimeType, originalName)
	if err != nil {
		return nil, err
	}

	rawText, cached := o.cachedResponse(ctx, image, mode)
	if !cached {
		// If this fails the stored image is orphaned. That is harmless
		// and accepted; cleanup would risk deleting a journaled image.
		rawText, err = o.adapter.Infer(ctx, settings.GeminiKey, image, mimeType, mode)
		if err != nil {
			return nil, err
		}
		o.storeResponse(ctx, image, mode, rawText)
	}

	plan, err := extract.Extract(rawText)
	if err != nil {
		return nil, err
	}

	summary, err := risk.Evaluate(plan, settings.RiskSettings)
	if err != nil {
		// Risk sizing is advisory; unparseable prices degrade to no
		// summary rather than failing the analysis.
		o.log.Debug("risk summary unavailable", zap.String("user_id", userID), zap.Error(err))
		summary = nil
	}

	record, err := o.journal.Append(ctx, userID, ref.URL, plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if o.events != nil {
		if err := o.events.PublishAnalysisCompleted(ctx, record); err != nil {
			o.log.Warn("failed to publish analysis event", zap.String("record_id", record.ID), zap.Error(err))
		}
	}

	return &Result{AnalysisRecord: record, Risk: summary}, nil
}

func (o *Orchestrator) cachedResponse(ctx context.Context, image []byte, mode string) (string, bool) {
	if o.cache == nil {
		return "", false
	}
	text, err := o.cache.Get(ctx, image, mode)
	if err != nil {
		o.log.Warn("response cache lookup failed", zap.Error(err))
		return "", false
	}
	if text == "" {
		return "", false
	}
	o.log.Debug("response cache hit", zap.String("mode", mode))
	return text, true
}

func (o *Orchestrator) storeResponse(ctx context.Context, image []byte, mode, rawText string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, image, mode, rawText); err != nil {
		o.log.Warn("response cache store failed", zap.Error(err))
	}
}
