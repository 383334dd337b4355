package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"taskpilot/internal/model"
)

// UndoRepository handles persistence for undo records.
type UndoRepository struct {
	db *gorm.DB
}

func NewUndoRepository(db *gorm.DB) *UndoRepository {
	return &UndoRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *UndoRepository) WithTx(tx *gorm.DB) *UndoRepository {
	return &UndoRepository{db: tx}
}

// Create inserts a fresh record, first dropping any lingering active record
// for the same task so at most one exists.
func (r *UndoRepository) Create(ctx context.Context, record *model.UndoRecord) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("task_id = ? AND is_restored = ?", record.TaskID, false).
		Delete(&model.UndoRecord{}).Error; err != nil {
		return errors.Wrap(err, "clear stale undo record")
	}
	if err := db.Create(record).Error; err != nil {
		return errors.Wrap(err, "create undo record")
	}
	return nil
}

// FindLatestByTaskID returns the most recent record for a task, restored or
// not, so callers can tell "expired" apart from "already restored".
func (r *UndoRepository) FindLatestByTaskID(ctx context.Context, taskID uint) (*model.UndoRecord, error) {
	var record model.UndoRecord
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find undo record")
	}
	return &record, nil
}

func (r *UndoRepository) MarkRestored(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&model.UndoRecord{}).
		Where("id = ?", id).
		Update("is_restored", true).Error
	return errors.Wrap(err, "mark undo record restored")
}

// DeleteExpired purges records past their expiry. Restored records are
// removed as well; they are spent either way.
func (r *UndoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ? OR is_restored = ?", now, true).
		Delete(&model.UndoRecord{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "sweep undo records")
	}
	return res.RowsAffected, nil
}

// ListActiveByUser returns still-restorable records for tasks the user deleted.
func (r *UndoRepository) ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]model.UndoRecord, error) {
	var records []model.UndoRecord
	err := r.db.WithContext(ctx).
		Where("deleted_by = ? AND is_restored = ? AND expires_at > ?", userID, false, now).
		Order("expires_at").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "list active undo records")
	}
	return records, nil
}
