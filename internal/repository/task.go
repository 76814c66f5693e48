package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

// TaskRepository defines the interface for task-related database
// operations. Every read and write is scoped to the owning user.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) (*model.Task, error)
	GetTask(ctx context.Context, id, userID string) (*model.Task, error)
	ListTasks(ctx context.Context, userID string, params ListTasksParams) ([]*model.Task, int64, error)
	ListAllTasks(ctx context.Context, userID string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, id, userID string, params UpdateTaskParams) (*model.Task, error)
	DeleteTask(ctx context.Context, id, userID string) error

	// FindReminderCandidates returns unfinished tasks due in (from, until]
	// whose reminder has not been sent yet.
	FindReminderCandidates(ctx context.Context, from, until time.Time) ([]*model.Task, error)

	// MarkReminderSent flags a task so it is never re-notified.
	MarkReminderSent(ctx context.Context, id bson.ObjectID) error
}

// ListTasksParams defines filtering and pagination for task listing.
type ListTasksParams struct {
	Status *model.TaskStatus
	Search string
	Page   int64
	Limit  int64
}

// UpdateTaskParams defines the optional parameters for a partial task
// update. Only non-nil fields are written.
type UpdateTaskParams struct {
	Title                 *string
	Description           *string
	DueDate               *time.Time
	Priority              *model.TaskPriority
	Status                *model.TaskStatus
	Completed             *bool
	Tags                  *[]string
	Project               *string
	ReminderOffsetMinutes *int
	UpdatedBy             bson.ObjectID
}

const taskCollection = "tasks"

type taskMongoRepository struct {
	db *mongo.Database
}

// NewTaskMongoRepository creates a MongoDB repository for tasks.
func NewTaskMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) TaskRepository {
	collection := db.Collection(taskCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "due_date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "due_date", Value: 1}, {Key: "reminder_sent", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create task indexes")
	}

	return &taskMongoRepository{db: db}
}

func (r *taskMongoRepository) CreateTask(ctx context.Context, task *model.Task) (*model.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	result, err := r.db.Collection(taskCollection).InsertOne(ctx, task)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		task.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return task, nil
}

func (r *taskMongoRepository) GetTask(ctx context.Context, id, userID string) (*model.Task, error) {
	filter, err := ownerFilter(id, userID)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(taskCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var task model.Task
	if err := result.Decode(&task); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *taskMongoRepository) ListTasks(
	ctx context.Context,
	userID string,
	params ListTasksParams,
) ([]*model.Task, int64, error) {
	ownerID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, 0, err
	}

	filter := bson.M{"user_id": ownerID}
	if params.Status != nil {
		filter["status"] = *params.Status
	}
	if params.Search != "" {
		filter["$or"] = searchFilter(params.Search)
	}

	total, err := r.db.Collection(taskCollection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "due_date", Value: 1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.db.Collection(taskCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	tasks, err := decodeTasks(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskMongoRepository) ListAllTasks(ctx context.Context, userID string) ([]*model.Task, error) {
	ownerID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})

	cursor, err := r.db.Collection(taskCollection).Find(ctx, bson.M{"user_id": ownerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeTasks(ctx, cursor)
}

func (r *taskMongoRepository) UpdateTask(
	ctx context.Context,
	id, userID string,
	params UpdateTaskParams,
) (*model.Task, error) {
	filter, err := ownerFilter(id, userID)
	if err != nil {
		return nil, err
	}

	updateMap := bson.M{}
	if params.Title != nil {
		updateMap["title"] = *params.Title
	}
	if params.Description != nil {
		updateMap["description"] = *params.Description
	}
	if params.DueDate != nil {
		updateMap["due_date"] = *params.DueDate
	}
	if params.Priority != nil {
		updateMap["priority"] = *params.Priority
	}
	if params.Status != nil {
		updateMap["status"] = *params.Status
	}
	if params.Completed != nil {
		updateMap["completed"] = *params.Completed
	}
	if params.Tags != nil {
		updateMap["tags"] = *params.Tags
	}
	if params.Project != nil {
		updateMap["project"] = *params.Project
	}
	if params.ReminderOffsetMinutes != nil {
		updateMap["reminder_offset_minutes"] = *params.ReminderOffsetMinutes
	}
	updateMap["updated_by"] = params.UpdatedBy
	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(taskCollection).FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var task model.Task
	if err := result.Decode(&task); err != nil {
		return nil, err
	}

	return &task, nil
}

func (r *taskMongoRepository) DeleteTask(ctx context.Context, id, userID string) error {
	filter, err := ownerFilter(id, userID)
	if err != nil {
		return err
	}

	result, err := r.db.Collection(taskCollection).DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

func (r *taskMongoRepository) FindReminderCandidates(
	ctx context.Context,
	from, until time.Time,
) ([]*model.Task, error) {
	filter := bson.M{
		"due_date":      bson.M{"$ne": nil, "$gt": from, "$lte": until},
		"status":        bson.M{"$ne": model.TaskStatusDone},
		"reminder_sent": false,
	}

	cursor, err := r.db.Collection(taskCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeTasks(ctx, cursor)
}

func (r *taskMongoRepository) MarkReminderSent(ctx context.Context, id bson.ObjectID) error {
	_, err := r.db.Collection(taskCollection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"reminder_sent": true, "updated_at": time.Now()}},
	)
	return err
}

// searchFilter matches q as a literal, case-insensitive substring of the
// title or description. Regex metacharacters in user input are escaped so
// they cannot break the query or smuggle in expensive patterns.
func searchFilter(q string) bson.A {
	pattern := regexp.QuoteMeta(q)
	return bson.A{
		bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
	}
}

func ownerFilter(id, userID string) (bson.M, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	ownerID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}

	return bson.M{"_id": objectID, "user_id": ownerID}, nil
}

func decodeTasks(ctx context.Context, cursor *mongo.Cursor) ([]*model.Task, error) {
	var tasks []*model.Task
	for cursor.Next(ctx) {
		var task model.Task
		if err := cursor.Decode(&task); err != nil {
			return nil, err
		}
		tasks = append(tasks, &task)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}
