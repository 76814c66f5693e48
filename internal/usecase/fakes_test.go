package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/repository"
)

// In-memory fakes for the repository interfaces.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by email
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Email]; ok {
		return nil, duplicateKeyError()
	}
	user.ID = bson.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		return u, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID.Hex() == id {
			u.PasswordHash = passwordHash
			u.UpdatedAt = time.Now()
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken // keyed by jti
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (f *fakeRefreshRepo) CreateToken(_ context.Context, token *model.RefreshToken) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.ID = bson.NewObjectID()
	token.CreatedAt = time.Now()
	f.tokens[token.JTI] = token
	return token, nil
}

func (f *fakeRefreshRepo) ConsumeToken(_ context.Context, jti, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[jti]
	if !ok || token.UserID.Hex() != userID {
		return false, nil
	}
	delete(f.tokens, jti)
	return true, nil
}

func (f *fakeRefreshRepo) DeleteByJTI(_ context.Context, jti string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, jti)
	return nil
}

func (f *fakeRefreshRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

type fakeOtpRepo struct {
	mu       sync.Mutex
	otps     []*model.Otp
	requests []model.OtpRequest
}

func newFakeOtpRepo() *fakeOtpRepo {
	return &fakeOtpRepo{}
}

func (f *fakeOtpRepo) CreateOtp(_ context.Context, otp *model.Otp) (*model.Otp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	otp.ID = bson.NewObjectID()
	otp.CreatedAt = time.Now()
	f.otps = append(f.otps, otp)
	return otp, nil
}

func (f *fakeOtpRepo) GetLatestOtp(_ context.Context, email string, purpose model.OtpPurpose) (*model.Otp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.otps) - 1; i >= 0; i-- {
		if f.otps[i].Email == email && f.otps[i].Purpose == purpose {
			return f.otps[i], nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeOtpRepo) LogRequest(_ context.Context, email string, purpose model.OtpPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, model.OtpRequest{
		Email:     email,
		Purpose:   purpose,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeOtpRepo) CountRecent(
	_ context.Context,
	email string,
	purpose model.OtpPurpose,
	since time.Time,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.requests {
		if r.Email == email && r.Purpose == purpose && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeOtpRepo) DeleteForEmailPurpose(_ context.Context, email string, purpose model.OtpPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.otps[:0]
	for _, o := range f.otps {
		if o.Email != email || o.Purpose != purpose {
			kept = append(kept, o)
		}
	}
	f.otps = kept
	return nil
}

func (f *fakeOtpRepo) IncrementAttempts(_ context.Context, id bson.ObjectID) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.otps {
		if o.ID == id {
			o.Attempts++
			return o.Attempts, nil
		}
	}
	return 0, mongo.ErrNoDocuments
}

func (f *fakeOtpRepo) DeleteOtp(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.otps[:0]
	for _, o := range f.otps {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	f.otps = kept
	return nil
}

func (f *fakeOtpRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.otps)
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks []*model.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{}
}

func (f *fakeTaskRepo) CreateTask(_ context.Context, task *model.Task) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ID = bson.NewObjectID()
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeTaskRepo) GetTask(_ context.Context, id, userID string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID.Hex() == id && t.UserID.Hex() == userID {
			return t, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeTaskRepo) ListTasks(
	_ context.Context,
	userID string,
	params repository.ListTasksParams,
) ([]*model.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*model.Task
	for _, t := range f.tasks {
		if t.UserID.Hex() != userID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		matched = append(matched, t)
	}
	return matched, int64(len(matched)), nil
}

func (f *fakeTaskRepo) ListAllTasks(_ context.Context, userID string) ([]*model.Task, error) {
	tasks, _, err := f.ListTasks(context.Background(), userID, repository.ListTasksParams{})
	return tasks, err
}

func (f *fakeTaskRepo) UpdateTask(
	_ context.Context,
	id, userID string,
	params repository.UpdateTaskParams,
) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID.Hex() != id || t.UserID.Hex() != userID {
			continue
		}
		if params.Title != nil {
			t.Title = *params.Title
		}
		if params.Description != nil {
			t.Description = *params.Description
		}
		if params.DueDate != nil {
			t.DueDate = params.DueDate
		}
		if params.Priority != nil {
			t.Priority = *params.Priority
		}
		if params.Status != nil {
			t.Status = *params.Status
		}
		if params.Completed != nil {
			t.Completed = *params.Completed
		}
		if params.Tags != nil {
			t.Tags = *params.Tags
		}
		if params.Project != nil {
			t.Project = *params.Project
		}
		if params.ReminderOffsetMinutes != nil {
			t.ReminderOffsetMinutes = *params.ReminderOffsetMinutes
		}
		t.UpdatedBy = params.UpdatedBy
		t.UpdatedAt = time.Now()
		return t, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeTaskRepo) DeleteTask(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID.Hex() == id && t.UserID.Hex() == userID {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeTaskRepo) FindReminderCandidates(_ context.Context, from, until time.Time) ([]*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*model.Task
	for _, t := range f.tasks {
		if t.DueDate == nil || t.ReminderSent || t.Status == model.TaskStatusDone {
			continue
		}
		if t.DueDate.After(from) && !t.DueDate.After(until) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (f *fakeTaskRepo) MarkReminderSent(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks {
		if t.ID == id {
			t.ReminderSent = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type fakeDispatcher struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (f *fakeDispatcher) Dispatch(msg mailer.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeDispatcher) byKind(kind model.EmailKind) []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []mailer.Message
	for _, m := range f.messages {
		if m.Kind == kind {
			matched = append(matched, m)
		}
	}
	return matched
}
