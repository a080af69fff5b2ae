package models

import "time"

// Default risk settings applied when a user has never saved any
const (
	DefaultBalance     = 10000
	DefaultRiskPercent = 1
)

// RiskSettings holds the account parameters used for position sizing
type RiskSettings struct {
	Balance     float64 `json:"balance"`
	RiskPercent float64 `json:"riskPercent"`
}

// DefaultRiskSettings returns the risk settings used when a user has none saved
func DefaultRiskSettings() RiskSettings {
	return RiskSettings{Balance: DefaultBalance, RiskPercent: DefaultRiskPercent}
}

// APIKeys holds per-provider API keys belonging to a user
type APIKeys struct {
	Gemini string `json:"gemini"`
}

// User represents an account created on first login by email
type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Picture      string        `json:"picture"`
	APIKeys      APIKeys       `json:"apiKeys"`
	RiskSettings *RiskSettings `json:"riskSettings,omitempty"`
	Joined       time.Time     `json:"joined"`
}

// Settings is the settings view returned to the dashboard. RiskSettings is
// always populated, falling back to defaults when the user never saved any.
type Settings struct {
	GeminiKey    string       `json:"geminiKey"`
	RiskSettings RiskSettings `json:"riskSettings"`
}
