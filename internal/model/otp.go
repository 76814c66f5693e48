package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OtpPurpose distinguishes the flow an OTP belongs to.
type OtpPurpose string

const (
	OtpPurposeSignup OtpPurpose = "signup"
	OtpPurposeReset  OtpPurpose = "reset"
)

// Valid reports whether p is a known purpose.
func (p OtpPurpose) Valid() bool {
	return p == OtpPurposeSignup || p == OtpPurposeReset
}

// OtpRequest records a single code request for rate limiting. Entries
// outlive the codes they produced and are reaped by their own TTL index.
type OtpRequest struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Purpose   OtpPurpose    `bson:"purpose"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Otp is a short-lived one-time code. Only the hash of the code is stored.
// Expired documents are removed by a TTL index on expires_at.
type Otp struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	CodeHash  string        `bson:"code_hash"`
	Purpose   OtpPurpose    `bson:"purpose"`
	ExpiresAt time.Time     `bson:"expires_at"`
	Attempts  int32         `bson:"attempts"`
	CreatedAt time.Time     `bson:"created_at"`
}
