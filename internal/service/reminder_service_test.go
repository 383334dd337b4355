package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/errs"
	"taskpilot/internal/model"
)

func loadReminders(t *testing.T, f *fixture, taskID uint) []model.Reminder {
	t.Helper()
	var reminders []model.Reminder
	require.NoError(t, f.db.Where("task_id = ?", taskID).Order("remind_at").Find(&reminders).Error)
	return reminders
}

func TestScheduleDefaultsOffsets(t *testing.T) {
	f := newFixture(t)
	deadline := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
	})

	reminders := loadReminders(t, f, task.ID)
	require.Len(t, reminders, 6)
	assert.True(t, reminders[0].RemindAt.Equal(deadline.Add(-24*time.Hour)))
	assert.True(t, reminders[5].RemindAt.Equal(deadline.Add(time.Hour)))
	for _, reminder := range reminders {
		assert.Equal(t, int64(2), reminder.RecipientID)
		assert.False(t, reminder.IsSent)
		require.NotNil(t, reminder.OffsetLabel)
	}
}

func TestScheduleDefaultsWithoutDeadlineIsNoop(t *testing.T) {
	f := newFixture(t)
	task, _ := mustCreate(t, f, TaskInput{Content: "x", CreatorID: 1, Recipients: []int64{2}})
	assert.Empty(t, loadReminders(t, f, task.ID))
}

func TestScheduleDefaultsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := time.Now().Add(48 * time.Hour)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
	})

	// A retried creation call must supersede, not duplicate.
	got, err := f.taskSvc.Get(ctx, task.PublicID)
	require.NoError(t, err)
	require.NoError(t, f.remSvc.ScheduleDefaults(ctx, got))

	assert.Len(t, loadReminders(t, f, task.ID), 6)
}

func TestScheduleDefaultsHonorsMutedLabels(t *testing.T) {
	f := newFixture(t)
	deadline := time.Now().Add(48 * time.Hour)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
		MutedOffsets: map[int64][]string{2: {"24h", "30m"}},
	})

	reminders := loadReminders(t, f, task.ID)
	// "1h" exists both before and after the deadline; muting "24h" and "30m"
	// drops exactly one row each.
	assert.Len(t, reminders, 4)
	for _, reminder := range reminders {
		assert.NotEqual(t, "30m", *reminder.OffsetLabel)
		if reminder.Kind == model.ReminderBeforeDeadline {
			assert.NotEqual(t, "24h", *reminder.OffsetLabel)
		}
	}
}

func TestDeadlineEditSupersedesDefaultsKeepsCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
	})

	custom, err := f.remSvc.CreateCustom(ctx, task.PublicID, 2, time.Now().Add(3*time.Hour))
	require.NoError(t, err)

	newDeadline := deadline.Add(72 * time.Hour)
	_, err = f.taskSvc.EditTask(ctx, task.PublicID, 1, TaskEdit{
		Deadline: &newDeadline, DeadlineSet: true,
	})
	require.NoError(t, err)

	reminders := loadReminders(t, f, task.ID)
	require.Len(t, reminders, 7)

	var customs, defaults int
	for _, reminder := range reminders {
		if reminder.Kind == model.ReminderCustom {
			customs++
			assert.Equal(t, custom.ID, reminder.ID, "custom reminder survives the edit")
			continue
		}
		defaults++
		// Every unsent default now points at the new deadline.
		assert.True(t, reminder.RemindAt.After(deadline), "reminder %v still on old deadline", reminder.RemindAt)
	}
	assert.Equal(t, 1, customs)
	assert.Equal(t, 6, defaults)
}

func TestDeadlineEditDoesNotTouchSentHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := time.Now().Add(48 * time.Hour)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
	})

	reminders := loadReminders(t, f, task.ID)
	require.NoError(t, f.reminders.MarkSent(ctx, reminders[0].ID, time.Now()))

	newDeadline := deadline.Add(time.Hour)
	_, err := f.taskSvc.EditTask(ctx, task.PublicID, 1, TaskEdit{Deadline: &newDeadline, DeadlineSet: true})
	require.NoError(t, err)

	// 1 sent row kept as history + 6 regenerated unsent rows.
	assert.Len(t, loadReminders(t, f, task.ID), 7)
}

func TestCreateCustomValidatesAndChecksTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.remSvc.CreateCustom(ctx, "P-9999", 2, time.Now())
	assert.ErrorIs(t, err, errs.ErrNotFound)

	task, _ := mustCreate(t, f, TaskInput{Content: "x", CreatorID: 1, Recipients: []int64{2}})
	_, err = f.remSvc.CreateCustom(ctx, task.PublicID, 0, time.Now())
	assert.True(t, errs.IsValidation(err))
}

func TestListPendingSkipsDeletedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deadline := time.Now().Add(48 * time.Hour)
	task, _ := mustCreate(t, f, TaskInput{
		Content: "x", CreatorID: 1, Recipients: []int64{2}, Deadline: &deadline,
	})

	pending, err := f.remSvc.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, pending, 6)

	_, err = f.taskSvc.SoftDelete(ctx, task.PublicID, 1)
	require.NoError(t, err)

	pending, err = f.remSvc.ListPending(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
