package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

// OtpRepository defines the interface for one-time code operations.
type OtpRepository interface {
	// CreateOtp stores a new hashed code.
	CreateOtp(ctx context.Context, otp *model.Otp) (*model.Otp, error)

	// GetLatestOtp retrieves the most recent code for (email, purpose).
	GetLatestOtp(ctx context.Context, email string, purpose model.OtpPurpose) (*model.Otp, error)

	// LogRequest records a code request for (email, purpose). Entries live in
	// their own collection so replacing a code does not erase the history.
	LogRequest(ctx context.Context, email string, purpose model.OtpPurpose) error

	// CountRecent counts code requests for (email, purpose) since the given time.
	CountRecent(ctx context.Context, email string, purpose model.OtpPurpose, since time.Time) (int64, error)

	// DeleteForEmailPurpose removes all codes for (email, purpose).
	DeleteForEmailPurpose(ctx context.Context, email string, purpose model.OtpPurpose) error

	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, id bson.ObjectID) (int32, error)

	// DeleteOtp removes a single code by id.
	DeleteOtp(ctx context.Context, id bson.ObjectID) error
}

const (
	otpCollection        = "otps"
	otpRequestCollection = "otp_requests"

	otpRequestTTLSeconds = 3600
)

type otpMongoRepository struct {
	db *mongo.Database
}

// NewOtpMongoRepository creates a MongoDB repository for one-time codes.
// Expired codes are reaped by a TTL index independent of application code.
func NewOtpMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) OtpRepository {
	collection := db.Collection(otpCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create otp indexes")
	}

	requestIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(otpRequestTTLSeconds), // TTL index
		},
	}

	_, err = db.Collection(otpRequestCollection).Indexes().CreateMany(ctx, requestIndexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create otp request indexes")
	}

	return &otpMongoRepository{db: db}
}

func (r *otpMongoRepository) CreateOtp(ctx context.Context, otp *model.Otp) (*model.Otp, error) {
	otp.CreatedAt = time.Now()
	otp.Attempts = 0

	result, err := r.db.Collection(otpCollection).InsertOne(ctx, otp)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		otp.ID = objectID
	}

	return otp, nil
}

func (r *otpMongoRepository) GetLatestOtp(
	ctx context.Context,
	email string,
	purpose model.OtpPurpose,
) (*model.Otp, error) {
	filter := bson.M{"email": email, "purpose": purpose}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var otp model.Otp
	if err := r.db.Collection(otpCollection).FindOne(ctx, filter, opts).Decode(&otp); err != nil {
		return nil, err
	}

	return &otp, nil
}

func (r *otpMongoRepository) LogRequest(ctx context.Context, email string, purpose model.OtpPurpose) error {
	_, err := r.db.Collection(otpRequestCollection).InsertOne(ctx, &model.OtpRequest{
		Email:     email,
		Purpose:   purpose,
		CreatedAt: time.Now(),
	})
	return err
}

func (r *otpMongoRepository) CountRecent(
	ctx context.Context,
	email string,
	purpose model.OtpPurpose,
	since time.Time,
) (int64, error) {
	filter := bson.M{
		"email":      email,
		"purpose":    purpose,
		"created_at": bson.M{"$gte": since},
	}

	return r.db.Collection(otpRequestCollection).CountDocuments(ctx, filter)
}

func (r *otpMongoRepository) DeleteForEmailPurpose(
	ctx context.Context,
	email string,
	purpose model.OtpPurpose,
) error {
	_, err := r.db.Collection(otpCollection).DeleteMany(ctx, bson.M{"email": email, "purpose": purpose})
	return err
}

func (r *otpMongoRepository) IncrementAttempts(ctx context.Context, id bson.ObjectID) (int32, error) {
	result := r.db.Collection(otpCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return 0, result.Err()
	}

	var otp model.Otp
	if err := result.Decode(&otp); err != nil {
		return 0, err
	}

	return otp.Attempts, nil
}

func (r *otpMongoRepository) DeleteOtp(ctx context.Context, id bson.ObjectID) error {
	_, err := r.db.Collection(otpCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}
