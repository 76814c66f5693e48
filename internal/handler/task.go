package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/timeutil"
	"github.com/tasktrackerhq/task-tracker-api/internal/usecase"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// tagList accepts either a JSON array of strings or a single comma-joined
// string, which some clients send for the tags field.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var scalar string
	if err := json.Unmarshal(data, &scalar); err != nil {
		return errors.New("tags must be an array of strings or a comma-separated string")
	}

	parts := strings.Split(scalar, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	*t = cleaned

	return nil
}

type createTaskRequest struct {
	Title                 string  `json:"title"       validate:"required,max=256"`
	Description           string  `json:"description" validate:"omitempty,max=4096"`
	DueDate               string  `json:"dueDate"`
	Priority              string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Tags                  tagList `json:"tags"`
	Project               string  `json:"project" validate:"omitempty,max=256"`
	ReminderOffsetMinutes *int    `json:"reminderOffsetMinutes" validate:"omitempty,min=1"`
}

type updateTaskRequest struct {
	Title                 *string  `json:"title"       validate:"omitempty,max=256"`
	Description           *string  `json:"description" validate:"omitempty,max=4096"`
	DueDate               *string  `json:"dueDate"`
	Priority              *string  `json:"priority" validate:"omitempty,oneof=low medium high"`
	Status                *string  `json:"status"   validate:"omitempty,oneof=todo inprogress done"`
	Completed             *bool    `json:"completed"`
	Tags                  *tagList `json:"tags"`
	Project               *string  `json:"project" validate:"omitempty,max=256"`
	ReminderOffsetMinutes *int     `json:"reminderOffsetMinutes" validate:"omitempty,min=1"`
}

// taskDTO is the task wire form: canonical UTC timestamps plus the IST
// display fields clients render directly.
type taskDTO struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	DueDate               *string  `json:"dueDate"`
	Priority              string   `json:"priority"`
	Status                string   `json:"status"`
	Completed             bool     `json:"completed"`
	Tags                  []string `json:"tags"`
	Project               string   `json:"project"`
	ReminderSent          bool     `json:"reminderSent"`
	ReminderOffsetMinutes int      `json:"reminderOffsetMinutes"`
	CreatedAt             string   `json:"createdAt"`
	UpdatedAt             string   `json:"updatedAt"`
	DueDateIST            string   `json:"dueDateIST,omitempty"`
	DueDateDisplay        string   `json:"dueDateDisplay,omitempty"`
	CreatedAtIST          string   `json:"createdAtIST"`
	UpdatedAtIST          string   `json:"updatedAtIST"`
}

func toTaskDTO(task *model.Task) taskDTO {
	dto := taskDTO{
		ID:                    task.ID.Hex(),
		Title:                 task.Title,
		Description:           task.Description,
		Priority:              string(task.Priority),
		Status:                string(task.Status),
		Completed:             task.Completed,
		Tags:                  task.Tags,
		Project:               task.Project,
		ReminderSent:          task.ReminderSent,
		ReminderOffsetMinutes: task.ReminderOffsetMinutes,
		CreatedAt:             task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             task.UpdatedAt.UTC().Format(time.RFC3339),
		CreatedAtIST:          timeutil.ToISTISOString(task.CreatedAt),
		UpdatedAtIST:          timeutil.ToISTISOString(task.UpdatedAt),
	}

	if dto.Tags == nil {
		dto.Tags = []string{}
	}

	if task.DueDate != nil {
		due := task.DueDate.UTC().Format(time.RFC3339)
		dto.DueDate = &due
		dto.DueDateIST = timeutil.ToISTISOString(*task.DueDate)
		dto.DueDateDisplay = timeutil.ToISTString(*task.DueDate)
	}

	return dto
}

// TaskHandler serves the owner-scoped task routes.
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
	validator   *RequestValidator
	logger      *zerolog.Logger
}

// NewTaskHandler creates a new instance of TaskHandler.
func NewTaskHandler(taskUsecase usecase.TaskUsecase, validator *RequestValidator, logger *zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
		validator:   validator,
		logger:      logger,
	}
}

// taskID validates the id path parameter before it reaches the store. A
// false return means the response has already been written.
func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !usecase.ParseObjectID(id) {
		writeError(w, http.StatusBadRequest, "Invalid task id")
		return "", false
	}
	return id, true
}

// Create handles POST /api/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createTaskRequest
	if !h.validator.decodeValid(w, r, &req) {
		return
	}

	task, err := h.taskUsecase.CreateTask(r.Context(), user, usecase.CreateTaskParams{
		Title:                 req.Title,
		Description:           req.Description,
		DueDate:               req.DueDate,
		Priority:              req.Priority,
		Tags:                  req.Tags,
		Project:               req.Project,
		ReminderOffsetMinutes: req.ReminderOffsetMinutes,
	})
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "task": toTaskDTO(task)})
}

// List handles GET /api/tasks with page, limit, status, and q parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page := queryInt(r, "page", defaultPage)
	limit := queryInt(r, "limit", defaultLimit)

	tasks, total, err := h.taskUsecase.ListTasks(r.Context(), user, usecase.ListTaskParams{
		Page:   page,
		Limit:  limit,
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("q"),
	})
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	dtos := make([]taskDTO, 0, len(tasks))
	for _, task := range tasks {
		dtos = append(dtos, toTaskDTO(task))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"total": total,
		"page":  page,
		"limit": limit,
		"tasks": dtos,
	})
}

// Get handles GET /api/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskUsecase.GetTask(r.Context(), user, id)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": toTaskDTO(task)})
}

// Update handles PUT /api/tasks/{id}. Only supplied fields change.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !h.validator.decodeValid(w, r, &req) {
		return
	}

	params := usecase.UpdateTaskParams{
		Title:                 req.Title,
		Description:           req.Description,
		DueDate:               req.DueDate,
		Priority:              req.Priority,
		Status:                req.Status,
		Completed:             req.Completed,
		Project:               req.Project,
		ReminderOffsetMinutes: req.ReminderOffsetMinutes,
	}
	if req.Tags != nil {
		tags := []string(*req.Tags)
		params.Tags = &tags
	}

	task, err := h.taskUsecase.UpdateTask(r.Context(), user, id, params)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "task": toTaskDTO(task)})
}

// Delete handles DELETE /api/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.taskUsecase.DeleteTask(r.Context(), user, id); err != nil {
		h.writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Deleted"})
}

// Export handles GET /api/tasks/export, streaming the caller's tasks as a
// CSV attachment.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	out, err := h.taskUsecase.ExportTasksCSV(r.Context(), user)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to export tasks")
		writeServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *TaskHandler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, "title required")
	case errors.Is(err, usecase.ErrInvalidDueDate):
		writeError(w, http.StatusBadRequest, "Invalid dueDate format. Use ISO or 'yyyy-MM-dd HH:mm'.")
	case errors.Is(err, usecase.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, usecase.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		h.logger.Error().Err(err).Msg("task operation failed")
		writeServerError(w)
	}
}

func queryInt(r *http.Request, key string, fallback int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return fallback
	}

	return n
}
