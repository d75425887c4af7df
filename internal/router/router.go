package router

import (
	"net/http"
	"time"

	"github.com/mailflow/mailflow/internal/auth"
	"github.com/mailflow/mailflow/internal/handler"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, log *logger.Logger, tokenSvc *auth.TokenService) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Mailflow API v1","version":"0.1.0"}`))
	})

	// Public authentication routes (rate limited)
	loginRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  5,
		Window: 15 * time.Minute,
		KeyFn:  middleware.IPKey,
	})
	registerRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  3,
		Window: 1 * time.Hour,
		KeyFn:  middleware.IPKey,
	})

	mux.Handle("POST /api/v1/auth/register", registerRateLimit(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/v1/auth/login", loginRateLimit(http.HandlerFunc(h.Login)))

	// Protected routes (require auth)
	authMw := mw.Auth(tokenSvc)

	mux.Handle("POST /api/v1/auth/logout", authMw(http.HandlerFunc(h.Logout)))
	mux.Handle("GET /api/v1/users/me", authMw(http.HandlerFunc(h.GetCurrentUser)))

	// Send job routes. Job starts are rate limited on the user's IP; the
	// single job slot itself rejects overlap regardless.
	jobStartRateLimit := mw.RateLimit(middleware.RateLimitConfig{
		Limit:  10,
		Window: 1 * time.Hour,
		KeyFn:  middleware.IPKey,
	})
	mux.Handle("POST /api/v1/jobs", authMw(jobStartRateLimit(http.HandlerFunc(h.StartJob))))
	mux.Handle("POST /api/v1/jobs/stop", authMw(http.HandlerFunc(h.StopJob)))
	mux.Handle("GET /api/v1/jobs/status", authMw(http.HandlerFunc(h.JobStatus)))
	mux.Handle("GET /api/v1/jobs/log", authMw(http.HandlerFunc(h.JobLog)))
	mux.Handle("GET /api/v1/jobs/report", authMw(http.HandlerFunc(h.JobReport)))
	mux.Handle("GET /api/v1/logs", authMw(http.HandlerFunc(h.LogHistory)))

	// Apply global middleware (order: request ID -> recover -> timing ->
	// logging). Request ID runs first so the recover handler can tag panics
	// with it; timing runs before the logger, which reads the start time.
	var root http.Handler = mux
	root = mw.Logger(root)
	root = mw.Timing(root)
	root = mw.Recover(root)
	root = mw.RequestID(root)

	return root
}
