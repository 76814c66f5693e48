package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tasktrackerhq/task-tracker-api/internal/auth"
	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/repository"
	"github.com/tasktrackerhq/task-tracker-api/internal/security"
)

var (
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenRevoked        = errors.New("refresh token revoked")
)

// Tokens bundles a freshly issued access and refresh token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is the outcome of an operation that establishes a session.
type AuthResult struct {
	User *model.User
	Tokens
}

// AuthUsecase defines the business logic for account and session
// operations. OTP verification itself lives in OtpUsecase; CompleteSignup
// and ResetPassword run after the code has been consumed.
type AuthUsecase interface {
	CompleteSignup(ctx context.Context, name, email, password string) (*AuthResult, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
	Login(ctx context.Context, email, password string) (*AuthResult, error)

	// Refresh redeems a refresh token exactly once, rotating the stored jti
	// and returning a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// Logout revokes the presented refresh token, best-effort.
	Logout(ctx context.Context, refreshToken string)

	GetUser(ctx context.Context, id string) (*model.User, error)
}

type authUsecase struct {
	userRepo    repository.UserRepository
	refreshRepo repository.RefreshTokenRepository
	tokens      *auth.TokenService
	dispatcher  MailDispatcher
	logger      *zerolog.Logger
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	refreshRepo repository.RefreshTokenRepository,
	tokens *auth.TokenService,
	dispatcher MailDispatcher,
	logger *zerolog.Logger,
) AuthUsecase {
	return &authUsecase{
		userRepo:    userRepo,
		refreshRepo: refreshRepo,
		tokens:      tokens,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *authUsecase) CompleteSignup(ctx context.Context, name, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: passwordHash,
		Verified:     true,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	tokens, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	// Welcome mail failure never rolls back account creation.
	u.dispatcher.Dispatch(mailer.WelcomeMessage(user.Email, user.Name))

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

func (u *authUsecase) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = NormalizeEmail(email)

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := u.userRepo.UpdatePasswordHash(ctx, user.ID.Hex(), passwordHash); err != nil {
		return err
	}

	return nil
}

func (u *authUsecase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if ok, err := security.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	// Concurrent sessions are permitted; existing jtis stay valid.
	tokens, err := u.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Tokens: *tokens}, nil
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := u.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidRefreshToken
	}

	// Strict rotate-on-use: the conditional delete picks exactly one winner
	// when two refresh attempts race on the same jti.
	consumed, err := u.refreshRepo.ConsumeToken(ctx, claims.ID, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrTokenRevoked
	}

	return u.mintTokenPair(ctx, claims.Subject, claims.Email)
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) {
	claims, err := u.tokens.VerifyRefreshToken(refreshToken)
	if err != nil || claims.ID == "" {
		return
	}

	if err := u.refreshRepo.DeleteByJTI(ctx, claims.ID); err != nil {
		u.logger.Error().Err(err).Msg("failed to delete refresh token on logout")
	}
}

func (u *authUsecase) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := u.userRepo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (u *authUsecase) issueSession(ctx context.Context, user *model.User) (*Tokens, error) {
	return u.mintTokenPair(ctx, user.ID.Hex(), user.Email)
}

func (u *authUsecase) mintTokenPair(ctx context.Context, userID, email string) (*Tokens, error) {
	jti := uuid.NewString()

	refreshToken, err := u.tokens.SignRefreshToken(userID, email, jti)
	if err != nil {
		return nil, err
	}

	ownerID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, err
	}

	if _, err := u.refreshRepo.CreateToken(ctx, &model.RefreshToken{
		JTI:       jti,
		UserID:    ownerID,
		ExpiresAt: time.Now().Add(u.tokens.RefreshTTL()),
	}); err != nil {
		return nil, err
	}

	accessToken, err := u.tokens.SignAccessToken(userID, email)
	if err != nil {
		return nil, err
	}

	return &Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
