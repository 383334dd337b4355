package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskpilot/internal/errs"
	"taskpilot/internal/mirror"
	"taskpilot/internal/model"
	"taskpilot/internal/repository"
)

const (
	maxContentLen     = 512
	maxDescriptionLen = 2048
)

// TaskInput represents data required to create a task. MutedOffsets maps a
// recipient to the default-reminder labels they opted out of; the handlers
// layer fills it from stored preferences.
type TaskInput struct {
	Content        string
	Description    string
	Priority       model.Priority
	CreatorID      int64
	Recipients     []int64
	GroupContextID *int64
	Deadline       *time.Time
	MutedOffsets   map[int64][]string
}

// TaskEdit carries creator-side field edits. Nil pointers leave the field
// untouched; DeadlineSet distinguishes "clear the deadline" from "keep it".
type TaskEdit struct {
	Content      *string
	Description  *string
	Priority     *model.Priority
	Deadline     *time.Time
	DeadlineSet  bool
	MutedOffsets []string
}

// TaskService owns the task lifecycle: creation with id allocation and group
// decomposition, the status state machine, soft delete with timed undo, and
// parent aggregation. All multi-row changes run inside one transaction.
type TaskService struct {
	db        *gorm.DB
	tasks     *repository.TaskRepository
	undo      *repository.UndoRepository
	allocator *IdentifierAllocator
	reminders *ReminderService
	mirror    *mirror.Emitter
	window    time.Duration
	now       func() time.Time
	log       *logrus.Entry
}

func NewTaskService(db *gorm.DB, tasks *repository.TaskRepository, undo *repository.UndoRepository,
	allocator *IdentifierAllocator, reminders *ReminderService, emitter *mirror.Emitter,
	undoWindow time.Duration, log *logrus.Entry) *TaskService {
	return &TaskService{
		db:        db,
		tasks:     tasks,
		undo:      undo,
		allocator: allocator,
		reminders: reminders,
		mirror:    emitter,
		window:    undoWindow,
		now:       time.Now,
		log:       log,
	}
}

func (s *TaskService) emit(eventType mirror.EventType, task *model.Task) {
	if s.mirror != nil && task != nil {
		s.mirror.Emit(eventType, task)
	}
}

func validateInput(input *TaskInput) error {
	input.Content = strings.TrimSpace(input.Content)
	if input.Content == "" {
		return errs.Validation("content", "must not be empty")
	}
	if len(input.Content) > maxContentLen {
		return errs.Validation("content", fmt.Sprintf("longer than %d characters", maxContentLen))
	}
	if len(input.Description) > maxDescriptionLen {
		return errs.Validation("description", fmt.Sprintf("longer than %d characters", maxDescriptionLen))
	}
	if input.CreatorID == 0 {
		return errs.Validation("creator_id", "must not be empty")
	}
	if len(input.Recipients) == 0 {
		return errs.Validation("recipients", "at least one recipient is required")
	}
	if input.Priority == "" {
		input.Priority = model.PriorityNormal
	} else if _, err := model.ParsePriority(string(input.Priority)); err != nil {
		return errs.Validation("priority", err.Error())
	}
	return nil
}

// CreateTask creates a single task for one recipient, or a parent plus one
// child per recipient for several. Default reminders are scheduled in the
// same transaction; if id allocation fails, nothing is created.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, []model.Task, error) {
	if err := validateInput(&input); err != nil {
		return nil, nil, err
	}

	var root *model.Task
	var children []model.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocator := s.allocator.WithTx(tx)
		tasks := s.tasks.WithTx(tx)
		reminders := s.reminders.WithTx(tx)

		if len(input.Recipients) == 1 {
			task, err := s.createOne(ctx, allocator, tasks, reminders, input, input.Recipients[0], nil)
			if err != nil {
				return err
			}
			root = task
			return nil
		}

		parentID, err := allocator.Allocate(ctx, model.FamilyGroup)
		if err != nil {
			return err
		}
		parent := &model.Task{
			PublicID:       parentID,
			Content:        input.Content,
			Description:    input.Description,
			Priority:       input.Priority,
			Status:         model.StatusPending,
			CreatorID:      input.CreatorID,
			GroupContextID: input.GroupContextID,
			Deadline:       input.Deadline,
		}
		if err := tasks.Create(ctx, parent); err != nil {
			return err
		}

		for _, recipient := range input.Recipients {
			child, err := s.createOne(ctx, allocator, tasks, reminders, input, recipient, &parent.ID)
			if err != nil {
				return err
			}
			children = append(children, *child)
		}
		root = parent
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.emit(mirror.EventTaskCreated, root)
	for i := range children {
		s.emit(mirror.EventTaskCreated, &children[i])
	}
	return root, children, nil
}

func (s *TaskService) createOne(ctx context.Context, allocator *IdentifierAllocator, tasks *repository.TaskRepository,
	reminders *ReminderService, input TaskInput, recipient int64, parentID *uint) (*model.Task, error) {
	publicID, err := allocator.Allocate(ctx, model.FamilyIndividual)
	if err != nil {
		return nil, err
	}
	task := &model.Task{
		PublicID:       publicID,
		ParentID:       parentID,
		Content:        input.Content,
		Description:    input.Description,
		Priority:       input.Priority,
		Status:         model.StatusPending,
		CreatorID:      input.CreatorID,
		AssigneeID:     recipient,
		GroupContextID: input.GroupContextID,
		Deadline:       input.Deadline,
	}
	if err := tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	if err := reminders.ScheduleDefaults(ctx, task, input.MutedOffsets[recipient]...); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus moves a task to any status; there is no forced linear order.
// Entering completed stamps CompletedAt, leaving it clears it. Child changes
// recompute the parent synchronously in the same transaction.
func (s *TaskService) UpdateStatus(ctx context.Context, publicID string, actorID int64, status model.Status) (*model.Task, error) {
	if _, err := model.ParseStatus(string(status)); err != nil {
		return nil, errs.Validation("status", err.Error())
	}

	var task *model.Task
	var parent *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)

		var err error
		task, err = tasks.FindByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if task.IsParent() {
			return fmt.Errorf("status of %s is derived from its children: %w", publicID, errs.ErrConflict)
		}
		if actorID != task.CreatorID && actorID != task.AssigneeID {
			return errs.ErrPermissionDenied
		}

		s.applyStatus(task, status)
		if err := tasks.Save(ctx, task); err != nil {
			return err
		}

		if task.ParentID != nil {
			parent, err = s.recomputeParent(ctx, tasks, *task.ParentID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(mirror.EventTaskChanged, task)
	s.emit(mirror.EventTaskChanged, parent)
	return task, nil
}

func (s *TaskService) applyStatus(task *model.Task, status model.Status) {
	now := s.now()
	if status == model.StatusCompleted {
		if task.Status != model.StatusCompleted {
			task.CompletedAt = &now
		}
		task.Progress = 100
	} else {
		task.CompletedAt = nil
	}
	task.Status = status
}

// UpdateProgress sets manual progress on an individual task or child.
func (s *TaskService) UpdateProgress(ctx context.Context, publicID string, actorID int64, progress int) (*model.Task, error) {
	if progress < 0 || progress > 100 {
		return nil, errs.Validation("progress", "must be between 0 and 100")
	}

	task, err := s.tasks.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if task.IsParent() {
		return nil, fmt.Errorf("progress of %s is derived from its children: %w", publicID, errs.ErrConflict)
	}
	if actorID != task.CreatorID && actorID != task.AssigneeID {
		return nil, errs.ErrPermissionDenied
	}

	task.Progress = progress
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	s.emit(mirror.EventTaskChanged, task)
	return task, nil
}

// recomputeParent re-derives a parent's progress and status from its live
// children. Deleted children fall out of the denominator; the parent itself
// is never auto-deleted, even when all children are gone.
func (s *TaskService) recomputeParent(ctx context.Context, tasks *repository.TaskRepository, parentID uint) (*model.Task, error) {
	parent, err := tasks.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsDeleted {
		return nil, nil
	}

	children, err := tasks.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}

	progress, status := model.AggregateChildren(children)
	parent.Progress = progress
	if status == model.StatusCompleted {
		if parent.Status != model.StatusCompleted {
			now := s.now()
			parent.CompletedAt = &now
		}
	} else {
		parent.CompletedAt = nil
	}
	parent.Status = status

	if err := tasks.Save(ctx, parent); err != nil {
		return nil, err
	}
	return parent, nil
}

// EditTask lets the creator change fields before completion. A deadline
// change cancels unsent default reminders and regenerates them against the
// new deadline; custom reminders survive untouched.
func (s *TaskService) EditTask(ctx context.Context, publicID string, actorID int64, edit TaskEdit) (*model.Task, error) {
	if edit.Content != nil {
		trimmed := strings.TrimSpace(*edit.Content)
		if trimmed == "" {
			return nil, errs.Validation("content", "must not be empty")
		}
		if len(trimmed) > maxContentLen {
			return nil, errs.Validation("content", fmt.Sprintf("longer than %d characters", maxContentLen))
		}
		edit.Content = &trimmed
	}
	if edit.Description != nil && len(*edit.Description) > maxDescriptionLen {
		return nil, errs.Validation("description", fmt.Sprintf("longer than %d characters", maxDescriptionLen))
	}
	if edit.Priority != nil {
		if _, err := model.ParsePriority(string(*edit.Priority)); err != nil {
			return nil, errs.Validation("priority", err.Error())
		}
	}

	var task *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)
		reminders := s.reminders.WithTx(tx)

		var err error
		task, err = tasks.FindByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if actorID != task.CreatorID {
			return errs.ErrPermissionDenied
		}
		if task.Status == model.StatusCompleted {
			return fmt.Errorf("completed task %s is no longer editable: %w", publicID, errs.ErrConflict)
		}

		if edit.Content != nil {
			task.Content = *edit.Content
		}
		if edit.Description != nil {
			task.Description = *edit.Description
		}
		if edit.Priority != nil {
			task.Priority = *edit.Priority
		}

		deadlineChanged := edit.DeadlineSet && !equalTimes(task.Deadline, edit.Deadline)
		if deadlineChanged {
			task.Deadline = edit.Deadline
		}

		if err := tasks.Save(ctx, task); err != nil {
			return err
		}
		if deadlineChanged {
			return reminders.RescheduleDefaults(ctx, task, edit.MutedOffsets...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(mirror.EventTaskChanged, task)
	return task, nil
}

func equalTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// SoftDelete hides a task and captures an undo record for the grace window.
// Creator only. Reminders need no mutation: the delivery query checks
// is_deleted and stops seeing them before the next tick.
func (s *TaskService) SoftDelete(ctx context.Context, publicID string, actorID int64) (*model.Task, error) {
	var task *model.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)
		undo := s.undo.WithTx(tx)

		var err error
		task, err = tasks.FindByPublicID(ctx, publicID)
		if err != nil {
			return err
		}
		if actorID != task.CreatorID {
			return errs.ErrPermissionDenied
		}

		snapshot, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("snapshot task %s: %w", publicID, err)
		}

		now := s.now()
		task.IsDeleted = true
		task.DeletedAt = &now
		task.DeletedBy = &actorID
		if err := tasks.Save(ctx, task); err != nil {
			return err
		}

		record := model.UndoRecord{
			TaskID:    task.ID,
			DeletedBy: actorID,
			Snapshot:  snapshot,
			DeletedAt: now,
			ExpiresAt: now.Add(s.window),
		}
		if err := undo.Create(ctx, &record); err != nil {
			return err
		}

		if task.ParentID != nil {
			if _, err := s.recomputeParent(ctx, tasks, *task.ParentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(mirror.EventTaskDeleted, task)
	return task, nil
}

// Restore reverses a soft delete while the undo record is still active,
// putting back the exact snapshotted field values. Restoring an already
// restored task is a no-op, not an error.
func (s *TaskService) Restore(ctx context.Context, publicID string, actorID int64) (*model.Task, error) {
	var restored *model.Task
	alreadyLive := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tasks := s.tasks.WithTx(tx)
		undo := s.undo.WithTx(tx)

		task, err := tasks.FindByPublicIDAny(ctx, publicID)
		if err != nil {
			return err
		}
		if !task.IsDeleted {
			restored = task
			alreadyLive = true
			return nil
		}
		if actorID != task.CreatorID {
			return errs.ErrPermissionDenied
		}

		record, err := undo.FindLatestByTaskID(ctx, task.ID)
		if err != nil {
			return err
		}
		if record == nil || !record.Active(s.now()) {
			return fmt.Errorf("task %s: %w", publicID, errs.ErrUndoExpired)
		}

		var prior model.Task
		if err := json.Unmarshal(record.Snapshot, &prior); err != nil {
			return fmt.Errorf("decode snapshot for %s: %w", publicID, err)
		}
		prior.ID = task.ID
		prior.PublicID = task.PublicID
		prior.IsDeleted = false
		prior.DeletedAt = nil
		prior.DeletedBy = nil

		if err := tasks.Save(ctx, &prior); err != nil {
			return err
		}
		if err := undo.MarkRestored(ctx, record.ID); err != nil {
			return err
		}

		if prior.ParentID != nil {
			if _, err := s.recomputeParent(ctx, tasks, *prior.ParentID); err != nil {
				return err
			}
		}
		restored = &prior
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !alreadyLive {
		s.emit(mirror.EventTaskRestored, restored)
	}
	return restored, nil
}

// Get fetches a live task by its public id.
func (s *TaskService) Get(ctx context.Context, publicID string) (*model.Task, error) {
	return s.tasks.FindByPublicID(ctx, publicID)
}

// List returns live tasks matching the filter.
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, int64, error) {
	return s.tasks.List(ctx, filter)
}

// Children returns the live children of a group parent.
func (s *TaskService) Children(ctx context.Context, publicID string) ([]model.Task, error) {
	parent, err := s.tasks.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if !parent.IsParent() {
		return nil, nil
	}
	return s.tasks.ListChildren(ctx, parent.ID)
}

// ListActiveUndo returns the user's still-restorable undo records.
func (s *TaskService) ListActiveUndo(ctx context.Context, userID int64) ([]model.UndoRecord, error) {
	return s.undo.ListActiveByUser(ctx, userID, s.now())
}
