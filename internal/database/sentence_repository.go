package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/jmoiron/sqlx"
)

// SentenceRepository handles database operations for the Korean sentence bank
type SentenceRepository struct {
	db *sqlx.DB
}

// NewSentenceRepository creates a new repository instance
func NewSentenceRepository(db *sqlx.DB) *SentenceRepository {
	return &SentenceRepository{db: db}
}

// Create inserts a sentence. It reports false without error when the same
// Korean text is already in the bank.
func (r *SentenceRepository) Create(ctx context.Context, s *models.Sentence) (bool, error) {
	korean := strings.TrimSpace(s.Korean)
	if korean == "" {
		return false, fmt.Errorf("sentence is empty")
	}

	query := r.db.Rebind(`
		INSERT INTO sentences (korean, topic, level)
		VALUES (?, ?, ?)
		ON CONFLICT (korean) DO NOTHING
	`)
	result, err := r.db.ExecContext(ctx, query, korean, s.Topic, s.Level)
	if err != nil {
		return false, fmt.Errorf("failed to create sentence: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Random returns up to limit sentences in random order
func (r *SentenceRepository) Random(ctx context.Context, limit int) ([]models.Sentence, error) {
	var sentences []models.Sentence
	query := r.db.Rebind(`
		SELECT id, korean, topic, level, created_at
		FROM sentences
		ORDER BY RANDOM()
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &sentences, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get random sentences: %w", err)
	}
	return sentences, nil
}

// Count returns the size of the sentence bank
func (r *SentenceRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sentences"); err != nil {
		return 0, fmt.Errorf("failed to count sentences: %w", err)
	}
	return count, nil
}
