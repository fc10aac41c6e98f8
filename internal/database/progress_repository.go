package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ProgressRepository stores one serialized UserProgress per storage key
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the stored progress for key, or nil if none has been saved
func (r *ProgressRepository) Get(ctx context.Context, key string) (*models.UserProgress, error) {
	var data string
	err := r.db.GetContext(ctx, &data, r.db.Rebind("SELECT data FROM progress WHERE storage_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	var progress models.UserProgress
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	if progress.Sessions == nil {
		progress.Sessions = []models.PracticeSession{}
	}
	return &progress, nil
}

// Put overwrites the progress stored under key
func (r *ProgressRepository) Put(ctx context.Context, key string, progress models.UserProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO progress (storage_key, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (storage_key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`)
	if _, err := r.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
