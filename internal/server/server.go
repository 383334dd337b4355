// Package server exposes the task engine to the UI/handlers layer over HTTP.
// Deadlines arrive as already-resolved absolute timestamps; no natural
// language parsing happens here.
package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskpilot/internal/model"
	"taskpilot/internal/repository"
	"taskpilot/internal/service"
)

const maxPageSize = 200

// Server wires the gin routes to the services.
type Server struct {
	tasks     *service.TaskService
	reminders *service.ReminderService
	users     *repository.UserRepository
	log       *logrus.Entry
}

func New(tasks *service.TaskService, reminders *service.ReminderService, users *repository.UserRepository, log *logrus.Entry) *Server {
	return &Server{tasks: tasks, reminders: reminders, users: users, log: log}
}

// Register mounts all routes under /api.
func (s *Server) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.POST("/tasks", s.createTask)
	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:public_id", s.getTask)
	api.GET("/tasks/:public_id/children", s.listChildren)
	api.PATCH("/tasks/:public_id", s.editTask)
	api.PATCH("/tasks/:public_id/status", s.updateStatus)
	api.PATCH("/tasks/:public_id/progress", s.updateProgress)
	api.DELETE("/tasks/:public_id", s.deleteTask)
	api.POST("/tasks/:public_id/restore", s.restoreTask)
	api.POST("/tasks/:public_id/reminders", s.createReminder)

	api.GET("/users/:id/reminders", s.listPendingReminders)
	api.GET("/users/:id/undo", s.listActiveUndo)
	api.PUT("/users/:id/preferences", s.setPreferences)
}

type createTaskReq struct {
	Content        string     `json:"content"`
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	CreatorID      int64      `json:"creator_id"`
	Recipients     []int64    `json:"recipients"`
	GroupContextID *int64     `json:"group_context_id"`
	Deadline       *time.Time `json:"deadline"`
}

type createTaskResp struct {
	Task     *model.Task  `json:"task"`
	Children []model.Task `json:"children,omitempty"`
}

func (s *Server) createTask(c *gin.Context) {
	var req createTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	// Recipient preferences are the caller's concern, so they are resolved
	// here and handed to the engine as plain muted labels.
	muted := make(map[int64][]string, len(req.Recipients))
	for _, recipient := range req.Recipients {
		labels, err := s.users.MutedOffsets(c.Request.Context(), recipient)
		if err != nil {
			errorResp(c, err)
			return
		}
		if len(labels) > 0 {
			muted[recipient] = labels
		}
	}

	root, children, err := s.tasks.CreateTask(c.Request.Context(), service.TaskInput{
		Content:        req.Content,
		Description:    req.Description,
		Priority:       model.Priority(req.Priority),
		CreatorID:      req.CreatorID,
		Recipients:     req.Recipients,
		GroupContextID: req.GroupContextID,
		Deadline:       req.Deadline,
		MutedOffsets:   muted,
	})
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, createTaskResp{Task: root, Children: children})
}

func (s *Server) listTasks(c *gin.Context) {
	filter := repository.TaskFilter{
		AssigneeID:     queryInt64(c, "assignee"),
		CreatorID:      queryInt64(c, "creator"),
		GroupContextID: queryInt64(c, "group"),
		Page:           queryInt(c, "page", 1),
		PageSize:       queryInt(c, "page_size", 20),
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = status
	}
	if t, ok := queryTime(c, "due_before"); ok {
		filter.DueBefore = t
	}
	if t, ok := queryTime(c, "due_after"); ok {
		filter.DueAfter = t
	}

	tasks, total, err := s.tasks.List(c.Request.Context(), filter)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, gin.H{"tasks": tasks, "total": total})
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

func (s *Server) listChildren(c *gin.Context) {
	children, err := s.tasks.Children(c.Request.Context(), c.Param("public_id"))
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, children)
}

type editTaskReq struct {
	ActorID     int64      `json:"actor_id"`
	Content     *string    `json:"content"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	// ClearDeadline removes the deadline; a null deadline alone means "keep".
	ClearDeadline bool `json:"clear_deadline"`
}

func (s *Server) editTask(c *gin.Context) {
	var req editTaskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	edit := service.TaskEdit{
		Content:     req.Content,
		Description: req.Description,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		edit.Priority = &p
	}
	if req.Deadline != nil {
		edit.Deadline = req.Deadline
		edit.DeadlineSet = true
	} else if req.ClearDeadline {
		edit.DeadlineSet = true
	}
	if edit.DeadlineSet {
		// Regenerated reminders belong to the assignee, so their muted
		// labels apply, not the editor's.
		task, err := s.tasks.Get(c.Request.Context(), c.Param("public_id"))
		if err != nil {
			errorResp(c, err)
			return
		}
		labels, err := s.users.MutedOffsets(c.Request.Context(), task.AssigneeID)
		if err != nil {
			errorResp(c, err)
			return
		}
		edit.MutedOffsets = labels
	}

	task, err := s.tasks.EditTask(c.Request.Context(), c.Param("public_id"), req.ActorID, edit)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

type updateStatusReq struct {
	ActorID int64  `json:"actor_id"`
	Status  string `json:"status"`
}

func (s *Server) updateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.tasks.UpdateStatus(c.Request.Context(), c.Param("public_id"), req.ActorID, model.Status(req.Status))
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

type updateProgressReq struct {
	ActorID  int64 `json:"actor_id"`
	Progress int   `json:"progress"`
}

func (s *Server) updateProgress(c *gin.Context) {
	var req updateProgressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.tasks.UpdateProgress(c.Request.Context(), c.Param("public_id"), req.ActorID, req.Progress)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	actorID := queryInt64(c, "actor_id")
	if actorID == 0 {
		badRequest(c, "actor_id query parameter is required")
		return
	}
	task, err := s.tasks.SoftDelete(c.Request.Context(), c.Param("public_id"), actorID)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

type restoreReq struct {
	ActorID int64 `json:"actor_id"`
}

func (s *Server) restoreTask(c *gin.Context) {
	var req restoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := s.tasks.Restore(c.Request.Context(), c.Param("public_id"), req.ActorID)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, task)
}

type createReminderReq struct {
	RecipientID int64     `json:"recipient_id"`
	RemindAt    time.Time `json:"remind_at"`
}

func (s *Server) createReminder(c *gin.Context) {
	var req createReminderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	reminder, err := s.reminders.CreateCustom(c.Request.Context(), c.Param("public_id"), req.RecipientID, req.RemindAt)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, reminder)
}

func (s *Server) listPendingReminders(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	pending, err := s.reminders.ListPending(c.Request.Context(), userID)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, pending)
}

func (s *Server) listActiveUndo(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	records, err := s.tasks.ListActiveUndo(c.Request.Context(), userID)
	if err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, records)
}

type preferencesReq struct {
	MutedOffsets []string `json:"muted_offsets"`
}

func (s *Server) setPreferences(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if _, err := s.users.GetOrCreate(c.Request.Context(), userID, "", "", ""); err != nil {
		errorResp(c, err)
		return
	}
	if err := s.users.SetMutedOffsets(c.Request.Context(), userID, req.MutedOffsets); err != nil {
		errorResp(c, err)
		return
	}
	successResp(c, nil)
}

func queryInt64(c *gin.Context, key string) int64 {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
