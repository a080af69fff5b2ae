package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tradesight/tradesight/internal/models"
)

// FileUserStore keeps the user table in a single users.json document.
// Writers hold the lock across the whole load-modify-persist sequence;
// readers take the read lock and always see a complete document thanks to
// the atomic rename in writeDoc.
type FileUserStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileUserStore creates a user store backed by dir/users.json.
func NewFileUserStore(dir string) (*FileUserStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileUserStore{path: filepath.Join(dir, "users.json")}, nil
}

// UpsertByEmail implements UserStore.
func (s *FileUserStore) UpsertByEmail(ctx context.Context, email, name, picture string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	if err := readDoc(s.path, &users); err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:      strconv.FormatInt(now.UnixNano(), 10),
		Email:   email,
		Name:    name,
		Picture: picture,
		Joined:  now,
	}
	users = append(users, user)

	if err := writeDoc(s.path, users); err != nil {
		return nil, err
	}
	return user, nil
}

// GetSettings implements UserStore.
func (s *FileUserStore) GetSettings(ctx context.Context, userID string) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []*models.User
	if err := readDoc(s.path, &users); err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.ID == userID {
			return settingsOf(u), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

// UpdateSettings implements UserStore. Nil fields are left untouched so a
// key-only or risk-only update never clobbers the other field.
func (s *FileUserStore) UpdateSettings(ctx context.Context, userID string, geminiKey *string, risk *models.RiskSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*models.User
	if err := readDoc(s.path, &users); err != nil {
		return err
	}

	for _, u := range users {
		if u.ID != userID {
			continue
		}
		if geminiKey != nil {
			u.APIKeys.Gemini = *geminiKey
		}
		if risk != nil {
			r := *risk
			u.RiskSettings = &r
		}
		return writeDoc(s.path, users)
	}
	return fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

func settingsOf(u *models.User) *models.Settings {
	settings := &models.Settings{
		GeminiKey:    u.APIKeys.Gemini,
		RiskSettings: models.DefaultRiskSettings(),
	}
	if u.RiskSettings != nil {
		settings.RiskSettings = *u.RiskSettings
	}
	return settings
}
