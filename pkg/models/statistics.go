package models

// Statistics summarizes usage across all chats
type Statistics struct {
	Chats            int `json:"chats" db:"chats"`
	RemindersEnabled int `json:"reminders_enabled" db:"reminders_enabled"`
	Sentences        int `json:"sentences" db:"sentences"`
}
