package model

import (
	"time"

	"gorm.io/datatypes"
)

// UndoRecord holds the pre-delete snapshot of a task for the duration of the
// grace window. At most one active (non-restored, non-expired) record exists
// per task; the sweeper purges expired rows, leaving the task a tombstone.
type UndoRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TaskID     uint           `gorm:"index" json:"task_id"`
	DeletedBy  int64          `gorm:"index" json:"deleted_by"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	DeletedAt  time.Time      `json:"deleted_at"`
	ExpiresAt  time.Time      `gorm:"index" json:"expires_at"`
	IsRestored bool           `gorm:"index" json:"is_restored"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Active reports whether the record can still satisfy a restore.
func (r *UndoRecord) Active(now time.Time) bool {
	return !r.IsRestored && now.Before(r.ExpiresAt)
}
