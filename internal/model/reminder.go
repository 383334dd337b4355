package model

import "time"

// ReminderKind distinguishes the generated deadline-relative set from
// user-requested reminders.
type ReminderKind string

const (
	ReminderBeforeDeadline ReminderKind = "before_deadline"
	ReminderAfterDeadline  ReminderKind = "after_deadline"
	ReminderCustom         ReminderKind = "custom"
)

// Reminder is one scheduled notification occurrence. For default reminders
// the (TaskID, RecipientID, Kind, OffsetLabel) tuple has at most one unsent
// row at a time; regeneration supersedes instead of duplicating. Sent rows
// are immutable history.
type Reminder struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	TaskID      uint         `gorm:"index:idx_reminder_task" json:"task_id"`
	RecipientID int64        `gorm:"index" json:"recipient_id"`
	Kind        ReminderKind `gorm:"size:32" json:"kind"`
	OffsetLabel *string      `gorm:"size:16" json:"offset_label,omitempty"`
	RemindAt    time.Time    `gorm:"index" json:"remind_at"`
	IsSent      bool         `gorm:"index" json:"is_sent"`
	SentAt      *time.Time   `json:"sent_at,omitempty"`
	Attempts    int          `json:"attempts"`
	LastError   string       `gorm:"size:1024" json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	Task Task `gorm:"foreignKey:TaskID" json:"-"`
}
