package service

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskpilot/internal/model"
	"taskpilot/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Sequence{},
		&model.Task{},
		&model.Reminder{},
		&model.UndoRecord{},
	))
	return db
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fixture struct {
	db        *gorm.DB
	tasks     *repository.TaskRepository
	reminders *repository.ReminderRepository
	undo      *repository.UndoRepository
	taskSvc   *TaskService
	remSvc    *ReminderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	tasks := repository.NewTaskRepository(db)
	reminders := repository.NewReminderRepository(db)
	undo := repository.NewUndoRepository(db)
	allocator := NewIdentifierAllocator(repository.NewSequenceRepository(db))
	remSvc := NewReminderService(reminders, tasks, testLog())
	taskSvc := NewTaskService(db, tasks, undo, allocator, remSvc, nil, 10*time.Minute, testLog())
	return &fixture{
		db:        db,
		tasks:     tasks,
		reminders: reminders,
		undo:      undo,
		taskSvc:   taskSvc,
		remSvc:    remSvc,
	}
}
