package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority validates a raw priority value.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

// Status is the task state machine. Transitions between any two states are
// allowed; completion timestamps are coupled to entering/leaving StatusCompleted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Task is a single unit of work. A group task is stored as one parent row
// (family G, no assignee) plus one child row per recipient referencing it via
// ParentID; nesting stops at one level.
type Task struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	PublicID       string     `gorm:"uniqueIndex;size:16" json:"public_id"`
	ParentID       *uint      `gorm:"index" json:"parent_id,omitempty"`
	Content        string     `gorm:"size:512" json:"content"`
	Description    string     `gorm:"size:2048" json:"description,omitempty"`
	Priority       Priority   `gorm:"size:16;default:normal" json:"priority"`
	Status         Status     `gorm:"size:16;index" json:"status"`
	Progress       int        `json:"progress"`
	CreatorID      int64      `gorm:"index" json:"creator_id"`
	AssigneeID     int64      `gorm:"index" json:"assignee_id"`
	GroupContextID *int64     `gorm:"index" json:"group_context_id,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	IsDeleted      bool       `gorm:"index" json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *int64     `json:"deleted_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsParent reports whether the task is a group parent row.
func (t *Task) IsParent() bool {
	return strings.HasPrefix(t.PublicID, string(FamilyGroup)+"-")
}

// AggregateChildren derives a parent's progress and status from its live
// children. Soft-deleted children must be filtered out by the caller; an
// empty slice yields (0, StatusPending).
func AggregateChildren(children []Task) (int, Status) {
	if len(children) == 0 {
		return 0, StatusPending
	}

	completed := 0
	started := 0
	for _, child := range children {
		switch child.Status {
		case StatusCompleted:
			completed++
		case StatusInProgress:
			started++
		}
	}

	progress := int(math.Round(100 * float64(completed) / float64(len(children))))
	switch {
	case completed == len(children):
		return progress, StatusCompleted
	case completed > 0 || started > 0:
		return progress, StatusInProgress
	default:
		return progress, StatusPending
	}
}
