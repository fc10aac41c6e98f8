package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Upper bound for one feedback request
	FeedbackTimeout time.Duration
	// Hour of the daily reminder for chats that opt in
	ReminderHour int
	// Run the hourly reminder job
	SchedulerEnabled bool
	// Idle time after which a half-finished input flow is forgotten
	StateTTL time.Duration
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		FeedbackTimeout:  30 * time.Second,
		ReminderHour:     7,
		SchedulerEnabled: true,
		StateTTL:         6 * time.Hour,
	}
}
