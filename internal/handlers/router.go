package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/config"
	localMiddleware "github.com/jobinpjoseph707/word-game-multiplayer/internal/middleware"
)

// RouterOptions allows customization of router setup for tests
type RouterOptions struct {
	DisableRateLimiting  bool
	DisableRequestLogger bool
	CustomMiddleware     []func(http.Handler) http.Handler
	// RequestTimeout bounds API requests; streams are not bounded
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// SetupRouter creates the application router with all routes and middleware
func SetupRouter(h *Handler, cfg *config.ServerConfig, opts *RouterOptions) *chi.Mux {
	if opts == nil {
		opts = &RouterOptions{}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if !opts.DisableRequestLogger {
		r.Use(localMiddleware.RequestLogger(opts.Logger))
	}
	r.Use(middleware.Recoverer)

	r.Use(localMiddleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))
	r.Use(localMiddleware.SecurityHeaders())

	if !opts.DisableRateLimiting {
		rateLimiter := localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
	}

	for _, mw := range opts.CustomMiddleware {
		r.Use(mw)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/api/rooms", func(r chi.Router) {
			r.Post("/", h.CreateRoom)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.GetRoom)
				r.Post("/join", h.JoinRoom)
				r.Post("/settings", h.UpdateSettings)
				r.Post("/start", h.StartGame)
				r.Post("/clue", h.SubmitClue)
				r.Post("/vote", h.SubmitVote)
				r.Post("/restart", h.Restart)
				r.Post("/leave", h.LeaveRoom)
				r.Post("/heartbeat", h.Heartbeat)
			})
		})
		r.Get("/room/{code}/qr", h.JoinQR)
	})

	r.Get("/sse/rooms/{code}", ValidateSSERequest(h.StreamRoom))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/health/ready", h.Ready)

	return r
}

// Ready runs every readiness check and answers 503 if any of them fails
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.opts.Ready))
	for name := range h.opts.Ready {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := readyResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.opts.Ready[name](ctx); err != nil {
			h.logger.Warn().Err(err).Str("check", name).Msg("not ready")
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
