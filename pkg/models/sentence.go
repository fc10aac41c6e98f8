package models

import "time"

// Sentence is a Korean practice sentence from the imported bank
type Sentence struct {
	ID        int64     `json:"id" db:"id"`
	Korean    string    `json:"korean" db:"korean"`
	Topic     string    `json:"topic" db:"topic"`
	Level     string    `json:"level" db:"level"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
