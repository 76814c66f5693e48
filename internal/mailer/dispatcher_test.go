package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

type fakeSender struct {
	mu        sync.Mutex
	sent      []Message
	messageID string
	err       error
}

func (f *fakeSender) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.messageID, f.err
}

type fakeLogbook struct {
	mu      sync.Mutex
	entries []*model.EmailLog
	err     error
}

func (f *fakeLogbook) Append(_ context.Context, log *model.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, log)
	return f.err
}

func newTestDispatcher(sender *fakeSender, logs *fakeLogbook) *Dispatcher {
	logger := zerolog.Nop()
	return NewDispatcher(sender, logs, &logger, 8)
}

func TestDeliver_Success_LogsMessageID(t *testing.T) {
	sender := &fakeSender{messageID: "msg-1"}
	logs := &fakeLogbook{}
	d := newTestDispatcher(sender, logs)

	id, err := d.Deliver(context.Background(), Message{
		To:      "a@example.com",
		Subject: "hello",
		Kind:    model.EmailKindWelcome,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, "msg-1", logs.entries[0].MessageID)
	assert.Empty(t, logs.entries[0].Error)
	assert.Equal(t, model.EmailKindWelcome, logs.entries[0].Kind)
}

func TestDeliver_Failure_LogsError(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	logs := &fakeLogbook{}
	d := newTestDispatcher(sender, logs)

	_, err := d.Deliver(context.Background(), Message{To: "a@example.com", Kind: model.EmailKindOtp})
	require.Error(t, err)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, "smtp down", logs.entries[0].Error)
}

func TestDeliver_LogWriteFailureDoesNotMaskResult(t *testing.T) {
	sender := &fakeSender{messageID: "msg-2"}
	logs := &fakeLogbook{err: errors.New("log store down")}
	d := newTestDispatcher(sender, logs)

	id, err := d.Deliver(context.Background(), Message{To: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "msg-2", id)
}

func TestDispatch_DrainedOnClose(t *testing.T) {
	sender := &fakeSender{}
	logs := &fakeLogbook{}
	d := newTestDispatcher(sender, logs)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		d.Dispatch(Message{To: "a@example.com", Kind: model.EmailKindTask})
	}
	d.Close()

	assert.Len(t, sender.sent, 5)
	assert.Len(t, logs.entries, 5)
}

func TestDispatch_FullQueueDropsWithoutBlocking(t *testing.T) {
	sender := &fakeSender{}
	logs := &fakeLogbook{}
	logger := zerolog.Nop()
	d := NewDispatcher(sender, logs, &logger, 1)

	// Worker not started: second message must be dropped, not block.
	d.Dispatch(Message{To: "a@example.com"})
	d.Dispatch(Message{To: "b@example.com"})

	d.Start(context.Background())
	d.Close()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a@example.com", sender.sent[0].To)
}

func TestDispatch_FullQueueDropIsAudited(t *testing.T) {
	sender := &fakeSender{}
	logs := &fakeLogbook{}
	logger := zerolog.Nop()
	d := NewDispatcher(sender, logs, &logger, 1)

	// Worker not started: the second message is dropped, and the drop must
	// still land in the email log.
	d.Dispatch(Message{To: "a@example.com", Kind: model.EmailKindOtp})
	d.Dispatch(Message{To: "b@example.com", Kind: model.EmailKindOtp, TaskID: "t-1"})

	require.Len(t, logs.entries, 1)
	dropped := logs.entries[0]
	assert.Equal(t, "b@example.com", dropped.To)
	assert.Equal(t, model.EmailKindOtp, dropped.Kind)
	assert.Contains(t, dropped.Error, "queue full")
	assert.Empty(t, dropped.MessageID)

	d.Start(context.Background())
	d.Close()

	// Draining the queue logs the delivered message as usual.
	require.Len(t, logs.entries, 2)
	assert.Equal(t, "a@example.com", logs.entries[1].To)
	assert.Empty(t, logs.entries[1].Error)
}
