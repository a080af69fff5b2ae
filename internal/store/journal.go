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

// FileJournal keeps the analysis history in a single history.json document
// shared across all users. Because an append is a read-modify-write of the
// whole document, the mutex is held across the entire sequence; without it
// two concurrent appends would silently drop one record.
type FileJournal struct {
	path   string
	mu     sync.RWMutex
	lastID int64 // guards timestamp-derived ids against same-nanosecond appends
}

// NewFileJournal creates a journal backed by dir/history.json.
func NewFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileJournal{path: filepath.Join(dir, "history.json")}, nil
}

// Append implements Journal.
func (j *FileJournal) Append(ctx context.Context, userID, imageURL string, result *models.SignalPlan) (*models.AnalysisRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var records []*models.AnalysisRecord
	if err := readDoc(j.path, &records); err != nil {
		return nil, err
	}

	record := &models.AnalysisRecord{
		ID:        j.nextID(),
		UserID:    userID,
		ImageURL:  imageURL,
		Timestamp: time.Now().UTC(),
		Result:    result,
	}
	records = append(records, record)

	if err := writeDoc(j.path, records); err != nil {
		return nil, err
	}
	return record, nil
}

// List implements Journal. The log is stored oldest-first, so the user's
// slice is reversed before returning.
func (j *FileJournal) List(ctx context.Context, userID string) ([]*models.AnalysisRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var records []*models.AnalysisRecord
	if err := readDoc(j.path, &records); err != nil {
		return nil, err
	}

	result := make([]*models.AnalysisRecord, 0)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].UserID == userID {
			result = append(result, records[i])
		}
	}
	return result, nil
}

// nextID returns a timestamp-derived id that is strictly increasing even
// when two appends land in the same nanosecond. Caller holds the lock.
func (j *FileJournal) nextID() string {
	id := time.Now().UnixNano()
	if id <= j.lastID {
		id = j.lastID + 1
	}
	j.lastID = id
	return strconv.FormatInt(id, 10)
}
