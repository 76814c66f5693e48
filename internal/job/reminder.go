// Package job contains background jobs. The reminder sweeper periodically
// scans tasks and emails reminders for those coming due.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
)

const reminderLookahead = 24 * time.Hour

// TaskStore is the slice of the task repository the sweeper needs.
type TaskStore interface {
	FindReminderCandidates(ctx context.Context, from, until time.Time) ([]*model.Task, error)
	MarkReminderSent(ctx context.Context, id bson.ObjectID) error
}

// UserStore resolves task owners to their email addresses.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// MailDeliverer sends a message synchronously, recording the attempt in the
// email log. The sweeper needs the outcome before marking a task notified.
type MailDeliverer interface {
	Deliver(ctx context.Context, msg mailer.Message) (string, error)
}

// ReminderSweeper scans for tasks whose reminder time has arrived and
// notifies their owners once.
type ReminderSweeper struct {
	taskRepo  TaskStore
	userRepo  UserStore
	deliverer MailDeliverer
	logger    *zerolog.Logger
	interval  time.Duration
}

// NewReminderSweeper creates a sweeper with the given tick interval.
func NewReminderSweeper(
	taskRepo TaskStore,
	userRepo UserStore,
	deliverer MailDeliverer,
	logger *zerolog.Logger,
	interval time.Duration,
) *ReminderSweeper {
	return &ReminderSweeper{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		deliverer: deliverer,
		logger:    logger,
		interval:  interval,
	}
}

// Run executes sweeps on a fixed interval until ctx is cancelled. Ticks run
// sequentially off a single loop, so a slow sweep delays the next tick
// instead of overlapping it.
func (s *ReminderSweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("reminder sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("reminder sweep failed")
			}
		}
	}
}

// Sweep runs a single pass: tasks due within the lookahead window whose
// reminder time has passed get one reminder email each. A failed send for
// one task does not block the rest, and the task stays eligible for the
// next sweep.
func (s *ReminderSweeper) Sweep(ctx context.Context, now time.Time) error {
	candidates, err := s.taskRepo.FindReminderCandidates(ctx, now, now.Add(reminderLookahead))
	if err != nil {
		return err
	}

	for _, task := range candidates {
		if task.DueDate == nil {
			continue
		}

		offset := time.Duration(task.ReminderOffsetMinutes) * time.Minute
		if offset <= 0 {
			offset = 60 * time.Minute
		}

		reminderTime := task.DueDate.Add(-offset)
		if reminderTime.After(now) {
			continue
		}

		if err := s.notify(ctx, task); err != nil {
			s.logger.Error().Err(err).
				Str("task_id", task.ID.Hex()).
				Msg("failed to send reminder")
			continue
		}

		if err := s.taskRepo.MarkReminderSent(ctx, task.ID); err != nil {
			s.logger.Error().Err(err).
				Str("task_id", task.ID.Hex()).
				Msg("failed to mark reminder sent")
		}
	}

	return nil
}

func (s *ReminderSweeper) notify(ctx context.Context, task *model.Task) error {
	owner, err := s.userRepo.GetUser(ctx, task.UserID.Hex())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return errors.New("task owner not found")
		}
		return err
	}

	_, err = s.deliverer.Deliver(ctx, mailer.ReminderMessage(owner.Email, task))
	return err
}
