package model

import (
	"time"

	"gorm.io/datatypes"
)

// User stores Telegram user metadata plus reminder preferences. MutedOffsets
// lists default-reminder offset labels the user opted out of; the handlers
// layer consults it before scheduling, the engine itself does not.
type User struct {
	ID           uint                       `gorm:"primaryKey" json:"id"`
	TelegramID   int64                      `gorm:"uniqueIndex" json:"telegram_id"`
	FirstName    string                     `json:"first_name"`
	LastName     string                     `json:"last_name"`
	Username     string                     `json:"username"`
	MutedOffsets datatypes.JSONSlice[string] `json:"muted_offsets"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}
