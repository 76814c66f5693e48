package handler

import (
	"net/http"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// newOtpLimiter builds a per-IP limiter for the OTP endpoints. This is a
// coarse per-source throttle; the real per-account budget lives in the OTP
// store.
func newOtpLimiter(perSecond float64) *limiter.Limiter {
	lmt := tollbooth.NewLimiter(perSecond, nil)
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	return lmt
}

func rateLimit(lmt *limiter.Limiter, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if httpErr := tollbooth.LimitByRequest(lmt, w, r); httpErr != nil {
				writeError(w, http.StatusTooManyRequests, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter assembles the HTTP routes. requireAuth guards the task routes
// and /api/auth/me.
func NewRouter(
	authHandler *AuthHandler,
	taskHandler *TaskHandler,
	requireAuth func(http.Handler) http.Handler,
	corsOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Server running"})
	})

	sendOtpLimiter := newOtpLimiter(1)
	verifyOtpLimiter := newOtpLimiter(2)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(rateLimit(sendOtpLimiter, "Too many requests, try again later")).
			Post("/send-otp", authHandler.SendOtp)
		r.With(rateLimit(verifyOtpLimiter, "Too many attempts, try again later")).
			Post("/verify-otp", authHandler.VerifyOtp)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", taskHandler.Create)
		r.Get("/", taskHandler.List)
		r.Get("/export", taskHandler.Export)
		r.Get("/{id}", taskHandler.Get)
		r.Put("/{id}", taskHandler.Update)
		r.Delete("/{id}", taskHandler.Delete)
	})

	return r
}
