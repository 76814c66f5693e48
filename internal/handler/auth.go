package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/usecase"
)

const refreshCookieName = "tt_refresh"

// refreshCookiePath scopes the refresh cookie to the auth routes only.
const refreshCookiePath = "/api/auth"

type sendOtpRequest struct {
	Email   string `json:"email"   validate:"required,email"`
	Purpose string `json:"purpose" validate:"required,oneof=signup reset"`
}

type verifyOtpRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Otp      string `json:"otp"      validate:"required,len=6"`
	Purpose  string `json:"purpose"  validate:"required,oneof=signup reset"`
	Name     string `json:"name"     validate:"omitempty,max=128"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserDTO(user *model.User) userDTO {
	return userDTO{ID: user.ID.Hex(), Name: user.Name, Email: user.Email}
}

// AuthHandler serves the account and session routes.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	otpUsecase  usecase.OtpUsecase
	validator   *RequestValidator
	logger      *zerolog.Logger
	production  bool
	cookieTTL   int
}

// NewAuthHandler creates a new instance of AuthHandler. cookieTTL is the
// refresh cookie lifetime in seconds.
func NewAuthHandler(
	authUsecase usecase.AuthUsecase,
	otpUsecase usecase.OtpUsecase,
	validator *RequestValidator,
	logger *zerolog.Logger,
	production bool,
	cookieTTL int,
) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		otpUsecase:  otpUsecase,
		validator:   validator,
		logger:      logger,
		production:  production,
		cookieTTL:   cookieTTL,
	}
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   h.cookieTTL,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	})
}

// refreshTokenFrom prefers the request body and falls back to the cookie.
func refreshTokenFrom(r *http.Request, body refreshRequest) string {
	if body.RefreshToken != "" {
		return body.RefreshToken
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SendOtp handles POST /api/auth/send-otp. The response never reveals
// whether an account exists for the address.
func (h *AuthHandler) SendOtp(w http.ResponseWriter, r *http.Request) {
	var req sendOtpRequest
	if !h.validator.decodeValid(w, r, &req) {
		return
	}

	err := h.otpUsecase.RequestOtp(r.Context(), req.Email, model.OtpPurpose(req.Purpose))
	if err != nil {
		if errors.Is(err, usecase.ErrOtpRateLimited) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
			return
		}
		h.logger.Error().Err(err).Msg("failed to send otp")
		writeServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Verification code sent"})
}

// VerifyOtp handles POST /api/auth/verify-otp. For signup it creates the
// account and opens a session; for reset it replaces the password.
func (h *AuthHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if !h.validator.decodeValid(w, r, &req) {
		return
	}

	purpose := model.OtpPurpose(req.Purpose)
	if err := h.otpUsecase.VerifyOtp(r.Context(), req.Email, req.Otp, purpose); err != nil {
		h.writeOtpError(w, err)
		return
	}

	switch purpose {
	case model.OtpPurposeSignup:
		result, err := h.authUsecase.CompleteSignup(r.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, usecase.ErrUserAlreadyExists) {
				writeError(w, http.StatusConflict, "User already exists")
				return
			}
			h.logger.Error().Err(err).Msg("failed to complete signup")
			writeServerError(w)
			return
		}

		h.setRefreshCookie(w, result.RefreshToken)
		writeJSON(w, http.StatusCreated, map[string]any{
			"ok":          true,
			"accessToken": result.AccessToken,
			"user":        toUserDTO(result.User),
		})

	case model.OtpPurposeReset:
		err := h.authUsecase.ResetPassword(r.Context(), req.Email, req.Password)
		if err != nil {
			// An unknown account looks identical to a wrong code, so the
			// endpoint cannot be used to probe for registered addresses.
			if errors.Is(err, usecase.ErrUserNotFound) {
				writeError(w, http.StatusBadRequest, "Invalid or expired code")
				return
			}
			h.logger.Error().Err(err).Msg("failed to reset password")
			writeServerError(w)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Password updated"})
	}
}

func (h *AuthHandler) writeOtpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrOtpNotFound),
		errors.Is(err, usecase.ErrOtpExpired),
		errors.Is(err, usecase.ErrOtpInvalid):
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
	case errors.Is(err, usecase.ErrOtpTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
	default:
		h.logger.Error().Err(err).Msg("failed to verify otp")
		writeServerError(w)
	}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.validator.decodeValid(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error().Err(err).Msg("failed to login")
		writeServerError(w)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"accessToken": result.AccessToken,
		"user":        toUserDTO(result.User),
	})
}

// Refresh handles POST /api/auth/refresh. The token may arrive in the body
// or the cookie; rotation is single-use.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	// The body is optional; the cookie alone is enough.
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := refreshTokenFrom(r, req)
	if token == "" {
		writeError(w, http.StatusBadRequest, "refreshToken required")
		return
	}

	tokens, err := h.authUsecase.Refresh(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidRefreshToken):
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		case errors.Is(err, usecase.ErrTokenRevoked):
			writeError(w, http.StatusUnauthorized, "Refresh token revoked")
		default:
			h.logger.Error().Err(err).Msg("failed to refresh session")
			writeServerError(w)
		}
		return
	}

	h.setRefreshCookie(w, tokens.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "accessToken": tokens.AccessToken})
}

// Logout handles POST /api/auth/logout. Always succeeds from the client's
// perspective, even if the server-side session was already gone.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if token := refreshTokenFrom(r, req); token != "" {
		h.authUsecase.Logout(r.Context(), token)
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Logged out"})
}

// Me handles GET /api/auth/me behind RequireAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user": toUserDTO(user)})
}
