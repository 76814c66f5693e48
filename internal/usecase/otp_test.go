package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/security"
)

func newOtpFixture() (OtpUsecase, *fakeOtpRepo, *fakeDispatcher) {
	repo := newFakeOtpRepo()
	dispatcher := &fakeDispatcher{}
	logger := zerolog.Nop()
	return NewOtpUsecase(repo, dispatcher, &logger), repo, dispatcher
}

func seedOtp(t *testing.T, repo *fakeOtpRepo, email, code string, purpose model.OtpPurpose, expiresAt time.Time) {
	t.Helper()
	hash, err := security.HashPassword(code)
	require.NoError(t, err)
	_, err = repo.CreateOtp(context.Background(), &model.Otp{
		Email:     email,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
}

func TestRequestOtp_StoresHashAndDispatchesMail(t *testing.T) {
	uc, repo, dispatcher := newOtpFixture()

	err := uc.RequestOtp(context.Background(), "User@Example.com", model.OtpPurposeSignup)
	require.NoError(t, err)

	otp, err := repo.GetLatestOtp(context.Background(), "user@example.com", model.OtpPurposeSignup)
	require.NoError(t, err)
	assert.NotEmpty(t, otp.CodeHash)
	assert.True(t, otp.ExpiresAt.After(time.Now()))

	sent := dispatcher.byKind(model.EmailKindOtp)
	require.Len(t, sent, 1)
	assert.Equal(t, "user@example.com", sent[0].To)
	// The plaintext code travels only in the email, never to the store.
	assert.NotContains(t, sent[0].Text, otp.CodeHash)
}

func TestRequestOtp_ReplacesPriorCodes(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()

	require.NoError(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup))
	require.NoError(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup))

	// Only the newest code for the (email, purpose) pair survives.
	assert.Equal(t, 1, repo.count())
}

func TestRequestOtp_RateLimited(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup))
	}

	err := uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpRateLimited)

	// The request history is kept apart from the codes themselves, so
	// replacing a code must not reset the hourly count.
	assert.Equal(t, 1, repo.count())
}

func TestRequestOtp_RateLimitScopedToEmailAndPurpose(t *testing.T) {
	uc, _, _ := newOtpFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup))
	}
	require.ErrorIs(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeSignup), ErrOtpRateLimited)

	// Other purposes and other addresses keep their own budgets.
	assert.NoError(t, uc.RequestOtp(ctx, "a@example.com", model.OtpPurposeReset))
	assert.NoError(t, uc.RequestOtp(ctx, "b@example.com", model.OtpPurposeSignup))
}

func TestVerifyOtp_SuccessConsumesCode(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()
	seedOtp(t, repo, "a@example.com", "123456", model.OtpPurposeSignup, time.Now().Add(10*time.Minute))

	require.NoError(t, uc.VerifyOtp(ctx, "a@example.com", "123456", model.OtpPurposeSignup))

	// Consumed: a second verification finds nothing.
	err := uc.VerifyOtp(ctx, "a@example.com", "123456", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpNotFound)
}

func TestVerifyOtp_Missing(t *testing.T) {
	uc, _, _ := newOtpFixture()

	err := uc.VerifyOtp(context.Background(), "a@example.com", "123456", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpNotFound)
}

func TestVerifyOtp_ExpiredDeletesRecord(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()
	seedOtp(t, repo, "a@example.com", "123456", model.OtpPurposeSignup, time.Now().Add(-time.Minute))

	err := uc.VerifyOtp(ctx, "a@example.com", "123456", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpExpired)
	assert.Equal(t, 0, repo.count())
}

func TestVerifyOtp_WrongCodeThenAttemptCap(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()
	seedOtp(t, repo, "a@example.com", "123456", model.OtpPurposeSignup, time.Now().Add(10*time.Minute))

	for i := 0; i < 4; i++ {
		err := uc.VerifyOtp(ctx, "a@example.com", "000000", model.OtpPurposeSignup)
		assert.ErrorIs(t, err, ErrOtpInvalid)
	}

	// Fifth failure exhausts the code.
	err := uc.VerifyOtp(ctx, "a@example.com", "000000", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpTooManyAttempts)

	// The correct code no longer works either.
	err = uc.VerifyOtp(ctx, "a@example.com", "123456", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrOtpNotFound)
}

func TestVerifyOtp_PurposesAreIndependent(t *testing.T) {
	uc, repo, _ := newOtpFixture()
	ctx := context.Background()
	seedOtp(t, repo, "a@example.com", "123456", model.OtpPurposeSignup, time.Now().Add(10*time.Minute))

	err := uc.VerifyOtp(ctx, "a@example.com", "123456", model.OtpPurposeReset)
	assert.ErrorIs(t, err, ErrOtpNotFound)
}
