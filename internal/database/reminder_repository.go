package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/jmoiron/sqlx"
)

// ReminderRepository handles database operations for daily reminder opt-ins
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository creates a new repository instance
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Get returns the reminder for a chat, or nil if the chat never opted in
func (r *ReminderRepository) Get(ctx context.Context, chatID int64) (*models.Reminder, error) {
	var reminder models.Reminder
	query := r.db.Rebind(`
		SELECT chat_id, enabled, hour, created_at, updated_at
		FROM reminders
		WHERE chat_id = ?
	`)
	err := r.db.GetContext(ctx, &reminder, query, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

// Upsert creates or updates the reminder for a chat
func (r *ReminderRepository) Upsert(ctx context.Context, reminder *models.Reminder) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO reminders (chat_id, enabled, hour, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			enabled = excluded.enabled,
			hour = excluded.hour,
			updated_at = excluded.updated_at
	`)
	if _, err := r.db.ExecContext(ctx, query, reminder.ChatID, reminder.Enabled, reminder.Hour, now, now); err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	reminder.UpdatedAt = now
	return nil
}

// ListForHour returns enabled reminders due at the given hour
func (r *ReminderRepository) ListForHour(ctx context.Context, hour int) ([]models.Reminder, error) {
	var reminders []models.Reminder
	query := r.db.Rebind(`
		SELECT chat_id, enabled, hour, created_at, updated_at
		FROM reminders
		WHERE enabled = ? AND hour = ?
		ORDER BY chat_id
	`)
	if err := r.db.SelectContext(ctx, &reminders, query, true, hour); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}
