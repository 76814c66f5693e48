package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TaskPriority is the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	return p == TaskPriorityLow || p == TaskPriorityMedium || p == TaskPriorityHigh
}

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "inprogress"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// MaxTaskTags caps the tag list on create and update.
const MaxTaskTags = 20

// Task is a user-owned task. Due dates are stored in UTC; all reads and
// writes are scoped to the owning user.
type Task struct {
	ID                    bson.ObjectID `bson:"_id,omitempty"`
	UserID                bson.ObjectID `bson:"user_id"`
	Title                 string        `bson:"title"`
	Description           string        `bson:"description"`
	DueDate               *time.Time    `bson:"due_date"`
	Priority              TaskPriority  `bson:"priority"`
	Status                TaskStatus    `bson:"status"`
	Completed             bool          `bson:"completed"`
	Tags                  []string      `bson:"tags"`
	Project               string        `bson:"project"`
	ReminderSent          bool          `bson:"reminder_sent"`
	ReminderOffsetMinutes int           `bson:"reminder_offset_minutes"`
	CreatedBy             bson.ObjectID `bson:"created_by,omitempty"`
	UpdatedBy             bson.ObjectID `bson:"updated_by,omitempty"`
	CreatedAt             time.Time     `bson:"created_at"`
	UpdatedAt             time.Time     `bson:"updated_at"`
}
