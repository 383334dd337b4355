package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"taskpilot/internal/errs"
	"taskpilot/internal/model"
)

// TaskFilter narrows task listings. Zero values mean "no constraint".
type TaskFilter struct {
	AssigneeID     int64
	CreatorID      int64
	GroupContextID int64
	Status         model.Status
	DueBefore      *time.Time
	DueAfter       *time.Time
	Page           int
	PageSize       int
}

// TaskRepository handles persistence for tasks. Normal queries exclude
// soft-deleted rows; the *Any variants see tombstones too.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return errors.Wrap(err, "create task")
	}
	return nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return errors.Wrap(err, "save task")
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "find task")
	}
	return &task, nil
}

func (r *TaskRepository) FindByPublicID(ctx context.Context, publicID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("public_id = ? AND is_deleted = ?", publicID, false).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "find task by public id")
	}
	return &task, nil
}

// FindByPublicIDAny also matches soft-deleted tasks; the restore path needs it.
func (r *TaskRepository) FindByPublicIDAny(ctx context.Context, publicID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errors.Wrap(err, "find task by public id")
	}
	return &task, nil
}

// ListChildren returns the live children of a group parent.
func (r *TaskRepository) ListChildren(ctx context.Context, parentID uint) ([]model.Task, error) {
	var children []model.Task
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND is_deleted = ?", parentID, false).
		Order("id").
		Find(&children).Error
	if err != nil {
		return nil, errors.Wrap(err, "list children")
	}
	return children, nil
}

// List returns non-deleted tasks matching the filter, newest first, paginated.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	tx := r.db.WithContext(ctx).Model(&model.Task{}).Where("is_deleted = ?", false)
	if filter.AssigneeID != 0 {
		tx = tx.Where("assignee_id = ?", filter.AssigneeID)
	}
	if filter.CreatorID != 0 {
		tx = tx.Where("creator_id = ?", filter.CreatorID)
	}
	if filter.GroupContextID != 0 {
		tx = tx.Where("group_context_id = ?", filter.GroupContextID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.DueBefore != nil {
		tx = tx.Where("deadline IS NOT NULL AND deadline <= ?", filter.DueBefore)
	}
	if filter.DueAfter != nil {
		tx = tx.Where("deadline IS NOT NULL AND deadline >= ?", filter.DueAfter)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count tasks")
	}

	var tasks []model.Task
	err := tx.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "list tasks")
	}
	return tasks, total, nil
}
