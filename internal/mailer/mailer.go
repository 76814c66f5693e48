// Package mailer sends transactional email through one of two providers
// selected at startup: an HTTP API client or a direct SMTP submitter. All
// send attempts are recorded in the email log.
package mailer

import (
	"context"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

// Message is a provider-independent transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
	Kind    model.EmailKind
	// TaskID is recorded in the email log for task and reminder mail.
	TaskID string
}

// Sender delivers a single message and returns the provider message id,
// when the provider exposes one.
type Sender interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}
