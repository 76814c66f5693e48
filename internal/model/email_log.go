package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// EmailKind classifies a transactional email.
type EmailKind string

const (
	EmailKindOtp      EmailKind = "otp"
	EmailKindWelcome  EmailKind = "welcome"
	EmailKindTask     EmailKind = "task"
	EmailKindReminder EmailKind = "reminder"
	EmailKindOther    EmailKind = "other"
)

// EmailLog is an append-only record of an attempted send. Either MessageID
// or Error is set depending on the outcome. Records are never mutated.
type EmailLog struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	To        string        `bson:"to"`
	Subject   string        `bson:"subject"`
	Kind      EmailKind     `bson:"kind"`
	MessageID string        `bson:"message_id,omitempty"`
	Error     string        `bson:"error,omitempty"`
	Meta      bson.M        `bson:"meta,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
}
