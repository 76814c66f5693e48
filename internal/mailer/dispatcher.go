package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

// errQueueFull is recorded in the email log when a dispatch is dropped.
var errQueueFull = errors.New("mail queue full, message dropped")

// dropLogTimeout bounds the audit write done on the drop path, which has no
// request context of its own.
const dropLogTimeout = 5 * time.Second

// EmailLogAppender records attempted sends in the append-only email log.
type EmailLogAppender interface {
	Append(ctx context.Context, log *model.EmailLog) error
}

// Dispatcher decouples email delivery from the request lifecycle. Dispatch
// enqueues onto a bounded queue drained by a single worker; Deliver sends
// synchronously for callers that need the outcome, like the reminder sweep.
// Every attempt, success or failure, is written to the email log.
type Dispatcher struct {
	sender Sender
	logs   EmailLogAppender
	logger *zerolog.Logger
	queue  chan Message
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, logs EmailLogAppender, logger *zerolog.Logger, queueSize int) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logs:   logs,
		logger: logger,
		queue:  make(chan Message, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker. The worker exits once the queue is
// closed and drained, or when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-d.queue:
				if !ok {
					return
				}
				if _, err := d.Deliver(ctx, msg); err != nil {
					d.logger.Error().Err(err).
						Str("to", msg.To).
						Str("kind", string(msg.Kind)).
						Msg("email delivery failed")
				}
			}
		}
	}()
}

// Dispatch enqueues a message without blocking. A full queue drops the
// message; the drop is written to the email log so the failure still shows
// up in the audit trail, not just in the server log.
func (d *Dispatcher) Dispatch(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Error().
			Str("to", msg.To).
			Str("kind", string(msg.Kind)).
			Msg("mail queue full, dropping message")

		ctx, cancel := context.WithTimeout(context.Background(), dropLogTimeout)
		defer cancel()
		d.appendLog(ctx, logEntry(msg, "", errQueueFull))
	}
}

// Deliver sends a message synchronously and records the attempt in the
// email log. The log write is best-effort and never masks the send result.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) (string, error) {
	messageID, sendErr := d.sender.Send(ctx, msg)

	d.appendLog(ctx, logEntry(msg, messageID, sendErr))

	return messageID, sendErr
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *model.EmailLog) {
	if err := d.logs.Append(ctx, entry); err != nil {
		d.logger.Error().Err(err).Msg("failed to append email log")
	}
}

func logEntry(msg Message, messageID string, sendErr error) *model.EmailLog {
	entry := &model.EmailLog{
		To:        msg.To,
		Subject:   msg.Subject,
		Kind:      msg.Kind,
		MessageID: messageID,
		CreatedAt: time.Now(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if msg.TaskID != "" {
		entry.Meta = bson.M{"task_id": msg.TaskID}
	}

	return entry
}

// Close stops accepting new messages and waits for the worker to drain the
// queue.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}
