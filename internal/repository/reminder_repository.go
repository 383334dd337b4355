package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"taskpilot/internal/model"
)

// ReminderRepository handles persistence for reminders.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *ReminderRepository) WithTx(tx *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: tx}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return errors.Wrap(err, "create reminder")
	}
	return nil
}

// DeleteUnsentMatching removes the at-most-one unsent reminder for the given
// identity tuple, so a recreate supersedes instead of duplicating.
func (r *ReminderRepository) DeleteUnsentMatching(ctx context.Context, taskID uint, recipientID int64, kind model.ReminderKind, offsetLabel string) error {
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND recipient_id = ? AND kind = ? AND offset_label = ? AND is_sent = ?",
			taskID, recipientID, kind, offsetLabel, false).
		Delete(&model.Reminder{}).Error
	return errors.Wrap(err, "supersede reminder")
}

// DeleteUnsentDefaults removes all unsent deadline-relative reminders for a
// task. Custom reminders and sent history are untouched.
func (r *ReminderRepository) DeleteUnsentDefaults(ctx context.Context, taskID uint) error {
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND kind IN ? AND is_sent = ?",
			taskID, []model.ReminderKind{model.ReminderBeforeDeadline, model.ReminderAfterDeadline}, false).
		Delete(&model.Reminder{}).Error
	return errors.Wrap(err, "delete unsent defaults")
}

// ListDue selects reminders ready for delivery. The join on tasks.is_deleted
// is the suppression point for soft-deleted tasks: deleting a task takes
// effect on the very next tick without touching reminder rows.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]model.Reminder, error) {
	var due []model.Reminder
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = reminders.task_id").
		Where("reminders.is_sent = ? AND reminders.remind_at <= ? AND reminders.attempts < ? AND tasks.is_deleted = ?",
			false, now, maxAttempts, false).
		Order("reminders.remind_at").
		Limit(limit).
		Preload("Task").
		Find(&due).Error
	if err != nil {
		return nil, errors.Wrap(err, "list due reminders")
	}
	return due, nil
}

// MarkSent flips the sent flag exactly once. A second call for the same row
// is a no-op, which keeps duplicate deliveries idempotent on the record side.
func (r *ReminderRepository) MarkSent(ctx context.Context, id uint, sentAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND is_sent = ?", id, false).
		Updates(map[string]interface{}{
			"is_sent": true,
			"sent_at": sentAt,
		}).Error
	return errors.Wrap(err, "mark reminder sent")
}

// RecordFailure notes a failed delivery attempt; the reminder stays unsent
// and is retried on a later tick until the attempt bound is reached.
func (r *ReminderRepository) RecordFailure(ctx context.Context, id uint, reason string) error {
	err := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
	return errors.Wrap(err, "record delivery failure")
}

// ListPendingByRecipient returns a user's unsent reminders on live tasks.
func (r *ReminderRepository) ListPendingByRecipient(ctx context.Context, recipientID int64) ([]model.Reminder, error) {
	var pending []model.Reminder
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = reminders.task_id").
		Where("reminders.recipient_id = ? AND reminders.is_sent = ? AND tasks.is_deleted = ?",
			recipientID, false, false).
		Order("reminders.remind_at").
		Preload("Task").
		Find(&pending).Error
	if err != nil {
		return nil, errors.Wrap(err, "list pending reminders")
	}
	return pending, nil
}
