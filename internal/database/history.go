package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradesight/tradesight/internal/models"
)

// Append inserts a new analysis record. Unlike the file backend this needs
// no external serialization: a single INSERT cannot lose concurrent writes.
func (db *DB) Append(ctx context.Context, userID, imageURL string, result *models.SignalPlan) (*models.AnalysisRecord, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	record := &models.AnalysisRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		ImageURL:  imageURL,
		Timestamp: time.Now().UTC(),
		Result:    result,
	}

	query := `
		INSERT INTO analysis_history (id, user_id, image_url, result, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := db.conn.ExecContext(ctx, query, record.ID, record.UserID, record.ImageURL, payload, record.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to append analysis record: %w", err)
	}
	return record, nil
}

// List retrieves a user's analysis records newest first.
func (db *DB) List(ctx context.Context, userID string) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT id, user_id, image_url, result, created_at
		FROM analysis_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.AnalysisRecord, 0)
	for rows.Next() {
		var r models.AnalysisRecord
		var payload []byte
		if err := rows.Scan(&r.ID, &r.UserID, &r.ImageURL, &payload, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		var plan models.SignalPlan
		if err := json.Unmarshal(payload, &plan); err != nil {
			return nil, fmt.Errorf("failed to decode result for record %s: %w", r.ID, err)
		}
		r.Result = &plan
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis records: %w", err)
	}
	return records, nil
}
