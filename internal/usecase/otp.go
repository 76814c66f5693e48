package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/repository"
	"github.com/tasktrackerhq/task-tracker-api/internal/security"
)

const (
	otpExpireMinutes  = 10
	otpMaxAttempts    = 5
	otpResendsPerHour = 3
	otpLowerBound     = 100000
	otpUpperBoundSpan = 900000
)

var (
	ErrOtpRateLimited     = errors.New("too many otp requests")
	ErrOtpNotFound        = errors.New("otp not found or expired")
	ErrOtpExpired         = errors.New("otp expired")
	ErrOtpInvalid         = errors.New("invalid otp")
	ErrOtpTooManyAttempts = errors.New("too many failed otp attempts")
)

// MailDispatcher is the one-way, non-blocking email dispatch used by
// usecases for fire-and-forget sends.
type MailDispatcher interface {
	Dispatch(msg mailer.Message)
}

// OtpUsecase defines the business logic for one-time codes.
type OtpUsecase interface {
	// RequestOtp generates a code for (email, purpose), replacing any prior
	// codes, and dispatches it by email. The response never reveals whether
	// an account exists for the email.
	RequestOtp(ctx context.Context, email string, purpose model.OtpPurpose) error

	// VerifyOtp checks a presented code and consumes it on success.
	VerifyOtp(ctx context.Context, email, code string, purpose model.OtpPurpose) error
}

type otpUsecase struct {
	otpRepo    repository.OtpRepository
	dispatcher MailDispatcher
	logger     *zerolog.Logger
}

// NewOtpUsecase creates a new instance of OtpUsecase.
func NewOtpUsecase(otpRepo repository.OtpRepository, dispatcher MailDispatcher, logger *zerolog.Logger) OtpUsecase {
	return &otpUsecase{
		otpRepo:    otpRepo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (u *otpUsecase) RequestOtp(ctx context.Context, email string, purpose model.OtpPurpose) error {
	email = NormalizeEmail(email)

	since := time.Now().Add(-time.Hour)
	recent, err := u.otpRepo.CountRecent(ctx, email, purpose, since)
	if err != nil {
		return err
	}
	if recent >= otpResendsPerHour {
		return ErrOtpRateLimited
	}

	code, err := generateNumericOtp()
	if err != nil {
		return err
	}

	codeHash, err := security.HashPassword(code)
	if err != nil {
		return err
	}

	// At most one active code per (email, purpose).
	if err := u.otpRepo.DeleteForEmailPurpose(ctx, email, purpose); err != nil {
		return err
	}

	if _, err := u.otpRepo.CreateOtp(ctx, &model.Otp{
		Email:     email,
		CodeHash:  codeHash,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(otpExpireMinutes * time.Minute),
	}); err != nil {
		return err
	}

	// The request log survives code replacement, so the hourly limit counts
	// every request, not just the surviving code.
	if err := u.otpRepo.LogRequest(ctx, email, purpose); err != nil {
		return err
	}

	u.dispatcher.Dispatch(mailer.OtpMessage(email, code, otpExpireMinutes))

	return nil
}

func (u *otpUsecase) VerifyOtp(ctx context.Context, email, code string, purpose model.OtpPurpose) error {
	email = NormalizeEmail(email)

	otp, err := u.otpRepo.GetLatestOtp(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrOtpNotFound
		}
		return err
	}

	if time.Now().After(otp.ExpiresAt) {
		if err := u.otpRepo.DeleteOtp(ctx, otp.ID); err != nil {
			u.logger.Error().Err(err).Msg("failed to delete expired otp")
		}
		return ErrOtpExpired
	}

	match, err := security.VerifyPassword(code, otp.CodeHash)
	if err != nil {
		return err
	}
	if !match {
		attempts, err := u.otpRepo.IncrementAttempts(ctx, otp.ID)
		if err != nil {
			return err
		}
		if attempts >= otpMaxAttempts {
			if err := u.otpRepo.DeleteOtp(ctx, otp.ID); err != nil {
				u.logger.Error().Err(err).Msg("failed to delete exhausted otp")
			}
			return ErrOtpTooManyAttempts
		}
		return ErrOtpInvalid
	}

	return u.otpRepo.DeleteOtp(ctx, otp.ID)
}

// generateNumericOtp returns a random six-digit code.
func generateNumericOtp() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpUpperBoundSpan))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%06d", n.Int64()+otpLowerBound), nil
}
