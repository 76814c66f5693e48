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

// RefreshTokenRepository defines the interface for refresh token id storage.
type RefreshTokenRepository interface {
	// CreateToken persists a newly issued jti.
	CreateToken(ctx context.Context, token *model.RefreshToken) (*model.RefreshToken, error)

	// ConsumeToken atomically deletes the record matching (jti, userID) and
	// reports whether this caller won the delete. A rotation race yields
	// exactly one winner.
	ConsumeToken(ctx context.Context, jti, userID string) (bool, error)

	// DeleteByJTI removes a token by jti regardless of owner. Used by logout.
	DeleteByJTI(ctx context.Context, jti string) error
}

const refreshTokenCollection = "refresh_tokens"

type refreshTokenMongoRepository struct {
	db *mongo.Database
}

// NewRefreshTokenMongoRepository creates a MongoDB repository for refresh
// token ids. Expired records are reaped by a TTL index.
func NewRefreshTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) RefreshTokenRepository {
	collection := db.Collection(refreshTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jti", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create refresh token indexes")
	}

	return &refreshTokenMongoRepository{db: db}
}

func (r *refreshTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.RefreshToken,
) (*model.RefreshToken, error) {
	token.CreatedAt = time.Now()

	result, err := r.db.Collection(refreshTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	}

	return token, nil
}

func (r *refreshTokenMongoRepository) ConsumeToken(ctx context.Context, jti, userID string) (bool, error) {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, err
	}

	result, err := r.db.Collection(refreshTokenCollection).DeleteOne(ctx, bson.M{
		"jti":     jti,
		"user_id": objectID,
	})
	if err != nil {
		return false, err
	}

	return result.DeletedCount == 1, nil
}

func (r *refreshTokenMongoRepository) DeleteByJTI(ctx context.Context, jti string) error {
	_, err := r.db.Collection(refreshTokenCollection).DeleteOne(ctx, bson.M{"jti": jti})
	return err
}
