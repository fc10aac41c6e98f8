package models

import "time"

// Reminder is a chat's opt-in for the daily practice notification
type Reminder struct {
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	Hour      int       `json:"hour" db:"hour"` // 0-23 in the practice time zone
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
