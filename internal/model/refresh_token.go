package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RefreshToken records a currently-valid refresh token id. A token is good
// for exactly one rotation: redeeming it deletes the record. Expired
// documents are removed by a TTL index on expires_at.
type RefreshToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	JTI       string        `bson:"jti"`
	UserID    bson.ObjectID `bson:"user_id"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
}
