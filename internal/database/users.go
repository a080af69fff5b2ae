package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/tradesight/tradesight/internal/models"
	"github.com/tradesight/tradesight/internal/store"
)

// UpsertByEmail returns the user with the given email, creating one with an
// empty API key if none exists. The insert races safely via ON CONFLICT.
func (db *DB) UpsertByEmail(ctx context.Context, email, name, picture string) (*models.User, error) {
	now := time.Now().UTC()
	id := strconv.FormatInt(now.UnixNano(), 10)

	query := `
		INSERT INTO users (id, email, name, picture, gemini_key, joined_at)
		VALUES ($1, $2, $3, $4, '', $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, picture, gemini_key, balance, risk_percent, joined_at
	`
	user, err := scanUser(db.conn.QueryRowContext(ctx, query, id, email, name, picture, now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// GetSettings retrieves a user's API key and risk settings, applying
// defaults when risk settings were never saved.
func (db *DB) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	query := `
		SELECT gemini_key, balance, risk_percent
		FROM users
		WHERE id = $1
	`
	var geminiKey string
	var balance, riskPercent sql.NullFloat64

	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&geminiKey, &balance, &riskPercent)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := &models.Settings{
		GeminiKey:    geminiKey,
		RiskSettings: models.DefaultRiskSettings(),
	}
	if balance.Valid && riskPercent.Valid {
		settings.RiskSettings = models.RiskSettings{
			Balance:     balance.Float64,
			RiskPercent: riskPercent.Float64,
		}
	}
	return settings, nil
}

// UpdateSettings applies a partial update; nil fields are left unchanged.
func (db *DB) UpdateSettings(ctx context.Context, userID string, geminiKey *string, risk *models.RiskSettings) error {
	query := `
		UPDATE users SET
			gemini_key = COALESCE($2, gemini_key),
			balance = COALESCE($3, balance),
			risk_percent = COALESCE($4, risk_percent)
		WHERE id = $1
	`
	var balance, riskPercent *float64
	if risk != nil {
		balance = &risk.Balance
		riskPercent = &risk.RiskPercent
	}

	result, err := db.conn.ExecContext(ctx, query, userID, geminiKey, balance, riskPercent)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var balance, riskPercent sql.NullFloat64

	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.APIKeys.Gemini, &balance, &riskPercent, &u.Joined)
	if err != nil {
		return nil, err
	}

	if balance.Valid && riskPercent.Valid {
		u.RiskSettings = &models.RiskSettings{
			Balance:     balance.Float64,
			RiskPercent: riskPercent.Float64,
		}
	}
	return &u, nil
}
