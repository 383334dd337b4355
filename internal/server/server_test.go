package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskpilot/internal/model"
	"taskpilot/internal/repository"
	"taskpilot/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	tasks := repository.NewTaskRepository(db)
	reminders := repository.NewReminderRepository(db)
	users := repository.NewUserRepository(db)
	undo := repository.NewUndoRepository(db)
	allocator := service.NewIdentifierAllocator(repository.NewSequenceRepository(db))
	remSvc := service.NewReminderService(reminders, tasks, entry)
	taskSvc := service.NewTaskService(db, tasks, undo, allocator, remSvc, nil, 10*time.Minute, entry)

	router := gin.New()
	New(taskSvc, remSvc, users, entry).Register(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func TestCreateAndFetchTask(t *testing.T) {
	router := newTestRouter(t)

	deadline := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rec := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"content":    "Ship release notes",
		"creator_id": 10,
		"recipients": []int64{20},
		"deadline":   deadline,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		Task model.Task `json:"task"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, "P-0001", created.Task.PublicID)
	assert.Equal(t, model.StatusPending, created.Task.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/P-0001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/P-0404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTaskValidationError(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"content":    "",
		"creator_id": 10,
		"recipients": []int64{20},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupTaskEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"content":    "Prepare launch",
		"creator_id": 10,
		"recipients": []int64{21, 22, 23},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Task     model.Task   `json:"task"`
		Children []model.Task `json:"children"`
	}
	decodeData(t, rec, &created)
	assert.Equal(t, "G-0001", created.Task.PublicID)
	require.Len(t, created.Children, 3)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/G-0001/children", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var children []model.Task
	decodeData(t, rec, &children)
	assert.Len(t, children, 3)

	// Parent status is derived, direct writes conflict.
	rec = doJSON(t, router, http.MethodPatch, "/api/tasks/G-0001/status", gin.H{
		"actor_id": 10, "status": "completed",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteRestoreFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"content": "ephemeral", "creator_id": 10, "recipients": []int64{20},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Non-creator may not delete.
	rec = doJSON(t, router, http.MethodDelete, "/api/tasks/P-0001?actor_id=20", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/tasks/P-0001?actor_id=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/P-0001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/10/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []model.UndoRecord
	decodeData(t, rec, &records)
	assert.Len(t, records, 1)

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/P-0001/restore", gin.H{"actor_id": 10})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks/P-0001", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPendingRemindersAndPreferences(t *testing.T) {
	router := newTestRouter(t)

	// Mute the 24h warning for recipient 20 before creating the task.
	rec := doJSON(t, router, http.MethodPut, "/api/users/20/preferences", gin.H{
		"muted_offsets": []string{"24h"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	deadline := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rec = doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
		"content": "with reminders", "creator_id": 10, "recipients": []int64{20},
		"deadline": deadline,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/20/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.Reminder
	decodeData(t, rec, &pending)
	// 24h muted: 3 pre-deadline + 2 post-deadline remain. Muting "24h" only
	// drops the before-deadline row; the after-deadline "1h" keeps its label.
	assert.Len(t, pending, 5)

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/P-0001/reminders", gin.H{
		"recipient_id": 20,
		"remind_at":    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/users/20/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &pending)
	assert.Len(t, pending, 6)
}

func TestListTasksFilters(t *testing.T) {
	router := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/tasks", gin.H{
			"content": fmt.Sprintf("task %d", i), "creator_id": 10, "recipients": []int64{20 + int64(i)},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/tasks?assignee=21", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Tasks []model.Task `json:"tasks"`
		Total int64        `json:"total"`
	}
	decodeData(t, rec, &listing)
	assert.EqualValues(t, 1, listing.Total)
	require.Len(t, listing.Tasks, 1)
	assert.Equal(t, int64(21), listing.Tasks[0].AssigneeID)

	rec = doJSON(t, router, http.MethodGet, "/api/tasks?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
