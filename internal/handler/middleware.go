package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/tasktrackerhq/task-tracker-api/internal/auth"
	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/usecase"
)

type contextKey string

const userContextKey contextKey = "user"

// RequireAuth verifies the bearer access token and loads the authenticated
// user into the request context. Missing or bad tokens get a 401; so does a
// valid token whose account no longer exists.
func RequireAuth(tokens *auth.TokenService, users usecase.AuthUsecase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.VerifyAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := users.GetUser(r.Context(), claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user placed by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok
}
