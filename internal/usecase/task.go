package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/repository"
	"github.com/tasktrackerhq/task-tracker-api/internal/timeutil"
)

const defaultReminderOffsetMinutes = 60

var (
	ErrTitleRequired  = errors.New("title required")
	ErrInvalidDueDate = errors.New("invalid due date")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrTaskNotFound   = errors.New("task not found")
)

// CreateTaskParams defines the parameters for creating a task. DueDate is
// the raw user-supplied string, normalized to UTC here.
type CreateTaskParams struct {
	Title                 string
	Description           string
	DueDate               string
	Priority              string
	Tags                  []string
	Project               string
	ReminderOffsetMinutes *int
}

// UpdateTaskParams defines the optional parameters for a partial update.
// Only non-nil fields change.
type UpdateTaskParams struct {
	Title                 *string
	Description           *string
	DueDate               *string
	Priority              *string
	Status                *string
	Completed             *bool
	Tags                  *[]string
	Project               *string
	ReminderOffsetMinutes *int
}

// ListTaskParams defines filtering and pagination for listing.
type ListTaskParams struct {
	Page   int64
	Limit  int64
	Status string
	Search string
}

// TaskUsecase defines the business logic for user-owned tasks. Every
// operation is scoped to the owner; cross-user ids behave as missing.
type TaskUsecase interface {
	CreateTask(ctx context.Context, owner *model.User, params CreateTaskParams) (*model.Task, error)
	ListTasks(ctx context.Context, owner *model.User, params ListTaskParams) ([]*model.Task, int64, error)
	GetTask(ctx context.Context, owner *model.User, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, owner *model.User, id string, params UpdateTaskParams) (*model.Task, error)
	DeleteTask(ctx context.Context, owner *model.User, id string) error

	// ExportTasksCSV renders all of the owner's tasks as CSV with a fixed
	// column set, dates in IST display form.
	ExportTasksCSV(ctx context.Context, owner *model.User) ([]byte, error)
}

type taskUsecase struct {
	taskRepo   repository.TaskRepository
	dispatcher MailDispatcher
	logger     *zerolog.Logger
}

// NewTaskUsecase creates a new instance of TaskUsecase.
func NewTaskUsecase(taskRepo repository.TaskRepository, dispatcher MailDispatcher, logger *zerolog.Logger) TaskUsecase {
	return &taskUsecase{
		taskRepo:   taskRepo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (u *taskUsecase) CreateTask(ctx context.Context, owner *model.User, params CreateTaskParams) (*model.Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	var dueDate *time.Time
	if params.DueDate != "" {
		parsed, err := timeutil.ParseIncomingAsUTC(params.DueDate)
		if err != nil {
			return nil, ErrInvalidDueDate
		}
		dueDate = &parsed
	}

	priority := model.TaskPriority(params.Priority)
	if params.Priority == "" {
		priority = model.TaskPriorityLow
	} else if !priority.Valid() {
		priority = model.TaskPriorityLow
	}

	offset := defaultReminderOffsetMinutes
	if params.ReminderOffsetMinutes != nil && *params.ReminderOffsetMinutes > 0 {
		offset = *params.ReminderOffsetMinutes
	}

	task, err := u.taskRepo.CreateTask(ctx, &model.Task{
		UserID:                owner.ID,
		Title:                 title,
		Description:           params.Description,
		DueDate:               dueDate,
		Priority:              priority,
		Status:                model.TaskStatusTodo,
		Completed:             false,
		Tags:                  capTags(params.Tags),
		Project:               strings.TrimSpace(params.Project),
		ReminderSent:          false,
		ReminderOffsetMinutes: offset,
		CreatedBy:             owner.ID,
	})
	if err != nil {
		return nil, err
	}

	u.dispatcher.Dispatch(mailer.TaskCreatedMessage(owner.Email, task))

	return task, nil
}

func (u *taskUsecase) ListTasks(
	ctx context.Context,
	owner *model.User,
	params ListTaskParams,
) ([]*model.Task, int64, error) {
	repoParams := repository.ListTasksParams{
		Page:   params.Page,
		Limit:  params.Limit,
		Search: params.Search,
	}

	if params.Status != "" {
		status := model.TaskStatus(params.Status)
		if !status.Valid() {
			return nil, 0, ErrInvalidStatus
		}
		repoParams.Status = &status
	}

	return u.taskRepo.ListTasks(ctx, owner.ID.Hex(), repoParams)
}

func (u *taskUsecase) GetTask(ctx context.Context, owner *model.User, id string) (*model.Task, error) {
	task, err := u.taskRepo.GetTask(ctx, id, owner.ID.Hex())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

func (u *taskUsecase) UpdateTask(
	ctx context.Context,
	owner *model.User,
	id string,
	params UpdateTaskParams,
) (*model.Task, error) {
	repoParams := repository.UpdateTaskParams{
		Title:       params.Title,
		Description: params.Description,
		Completed:   params.Completed,
		UpdatedBy:   owner.ID,
	}

	if params.DueDate != nil {
		parsed, err := timeutil.ParseIncomingAsUTC(*params.DueDate)
		if err != nil {
			return nil, ErrInvalidDueDate
		}
		repoParams.DueDate = &parsed
	}

	if params.Priority != nil {
		priority := model.TaskPriority(*params.Priority)
		if priority.Valid() {
			repoParams.Priority = &priority
		}
	}

	if params.Status != nil {
		status := model.TaskStatus(*params.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		repoParams.Status = &status
	}

	if params.Tags != nil {
		tags := capTags(*params.Tags)
		repoParams.Tags = &tags
	}

	if params.Project != nil {
		project := strings.TrimSpace(*params.Project)
		repoParams.Project = &project
	}

	if params.ReminderOffsetMinutes != nil && *params.ReminderOffsetMinutes > 0 {
		repoParams.ReminderOffsetMinutes = params.ReminderOffsetMinutes
	}

	task, err := u.taskRepo.UpdateTask(ctx, id, owner.ID.Hex(), repoParams)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	return task, nil
}

func (u *taskUsecase) DeleteTask(ctx context.Context, owner *model.User, id string) error {
	if err := u.taskRepo.DeleteTask(ctx, id, owner.ID.Hex()); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTaskNotFound
		}
		return err
	}

	return nil
}

var csvColumns = []string{"id", "title", "description", "dueDate", "priority", "status", "createdAt"}

func (u *taskUsecase) ExportTasksCSV(ctx context.Context, owner *model.User) ([]byte, error) {
	tasks, err := u.taskRepo.ListAllTasks(ctx, owner.ID.Hex())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}

	for _, task := range tasks {
		dueDate := ""
		if task.DueDate != nil {
			dueDate = timeutil.ToISTISOString(*task.DueDate)
		}

		record := []string{
			task.ID.Hex(),
			task.Title,
			task.Description,
			dueDate,
			string(task.Priority),
			string(task.Status),
			timeutil.ToISTISOString(task.CreatedAt),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// capTags trims entries, drops empties, and bounds the list length.
func capTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
		if len(cleaned) == model.MaxTaskTags {
			break
		}
	}

	return cleaned
}

// ParseObjectID reports whether id is a well-formed document id. Handlers
// reject malformed ids before hitting the store.
func ParseObjectID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
