package database

import (
	"context"
	"fmt"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/jmoiron/sqlx"
)

// StatisticsRepository reads usage totals across tables
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Summary counts stored progress records, enabled reminders and bank sentences
func (r *StatisticsRepository) Summary(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	query := r.db.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM progress) AS chats,
			(SELECT COUNT(*) FROM reminders WHERE enabled = ?) AS reminders_enabled,
			(SELECT COUNT(*) FROM sentences) AS sentences
	`)
	if err := r.db.GetContext(ctx, &stats, query, true); err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &stats, nil
}
