package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskpilot/internal/errs"
	"taskpilot/internal/model"
	"taskpilot/internal/repository"
)

// Offset describes one default reminder relative to the deadline. Negative
// deltas fire before it, positive ones after a miss.
type Offset struct {
	Label string
	Delta time.Duration
	Kind  model.ReminderKind
}

// DefaultOffsets is the generated set for any task with a deadline: four
// warnings before, two escalating nudges after.
var DefaultOffsets = []Offset{
	{Label: "24h", Delta: -24 * time.Hour, Kind: model.ReminderBeforeDeadline},
	{Label: "1h", Delta: -time.Hour, Kind: model.ReminderBeforeDeadline},
	{Label: "30m", Delta: -30 * time.Minute, Kind: model.ReminderBeforeDeadline},
	{Label: "5m", Delta: -5 * time.Minute, Kind: model.ReminderBeforeDeadline},
	{Label: "10m", Delta: 10 * time.Minute, Kind: model.ReminderAfterDeadline},
	{Label: "1h", Delta: time.Hour, Kind: model.ReminderAfterDeadline},
}

// ReminderService generates reminder rows for tasks. Recipient preferences
// are not its concern: callers pass the labels a recipient muted.
type ReminderService struct {
	reminders *repository.ReminderRepository
	tasks     *repository.TaskRepository
	log       *logrus.Entry
}

func NewReminderService(reminders *repository.ReminderRepository, tasks *repository.TaskRepository, log *logrus.Entry) *ReminderService {
	return &ReminderService{reminders: reminders, tasks: tasks, log: log}
}

// WithTx returns a copy bound to the given transaction.
func (s *ReminderService) WithTx(tx *gorm.DB) *ReminderService {
	return &ReminderService{
		reminders: s.reminders.WithTx(tx),
		tasks:     s.tasks.WithTx(tx),
		log:       s.log,
	}
}

// ScheduleDefaults creates the default reminder set for a task, owned by the
// assignee. Tasks without a deadline and group parents (no assignee to
// address) get none. Re-running supersedes any still-unsent row for the same
// (task, recipient, kind, label) tuple, so a retried creation call cannot
// produce duplicates.
func (s *ReminderService) ScheduleDefaults(ctx context.Context, task *model.Task, mutedLabels ...string) error {
	if task.Deadline == nil || task.IsParent() {
		return nil
	}

	muted := make(map[string]bool, len(mutedLabels))
	for _, label := range mutedLabels {
		muted[label] = true
	}

	for _, offset := range DefaultOffsets {
		if muted[offset.Label] {
			continue
		}
		if err := s.reminders.DeleteUnsentMatching(ctx, task.ID, task.AssigneeID, offset.Kind, offset.Label); err != nil {
			return err
		}
		label := offset.Label
		reminder := model.Reminder{
			TaskID:      task.ID,
			RecipientID: task.AssigneeID,
			Kind:        offset.Kind,
			OffsetLabel: &label,
			RemindAt:    task.Deadline.Add(offset.Delta),
		}
		if err := s.reminders.Create(ctx, &reminder); err != nil {
			return err
		}
	}
	return nil
}

// RescheduleDefaults reacts to a deadline edit: every unsent default tied to
// the old deadline is cancelled, then the set is regenerated against the new
// one. Custom reminders are never touched.
func (s *ReminderService) RescheduleDefaults(ctx context.Context, task *model.Task, mutedLabels ...string) error {
	if err := s.reminders.DeleteUnsentDefaults(ctx, task.ID); err != nil {
		return err
	}
	return s.ScheduleDefaults(ctx, task, mutedLabels...)
}

// CreateCustom appends a user-requested reminder to a live task.
func (s *ReminderService) CreateCustom(ctx context.Context, publicID string, recipientID int64, remindAt time.Time) (*model.Reminder, error) {
	if recipientID == 0 {
		return nil, errs.Validation("recipient_id", "must not be empty")
	}
	if remindAt.IsZero() {
		return nil, errs.Validation("remind_at", "must be set")
	}

	task, err := s.tasks.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	reminder := model.Reminder{
		TaskID:      task.ID,
		RecipientID: recipientID,
		Kind:        model.ReminderCustom,
		RemindAt:    remindAt,
	}
	if err := s.reminders.Create(ctx, &reminder); err != nil {
		return nil, fmt.Errorf("create custom reminder: %w", err)
	}
	return &reminder, nil
}

// ListPending returns a user's not-yet-sent reminders on live tasks.
func (s *ReminderService) ListPending(ctx context.Context, recipientID int64) ([]model.Reminder, error) {
	return s.reminders.ListPendingByRecipient(ctx, recipientID)
}
