package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

// EmailLogRepository appends to the write-only audit trail of send attempts.
type EmailLogRepository interface {
	Append(ctx context.Context, log *model.EmailLog) error
}

const emailLogCollection = "email_logs"

type emailLogMongoRepository struct {
	db *mongo.Database
}

// NewEmailLogMongoRepository creates a MongoDB repository for the email log.
func NewEmailLogMongoRepository(db *mongo.Database) EmailLogRepository {
	return &emailLogMongoRepository{db: db}
}

func (r *emailLogMongoRepository) Append(ctx context.Context, log *model.EmailLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.Collection(emailLogCollection).InsertOne(ctx, log)
	return err
}
