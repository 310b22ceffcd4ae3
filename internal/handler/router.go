/*
Package handler provides the HTTP handlers and routing setup for the session server.

This file defines the main Router, applying middleware like logging, CORS, and
IP-based rate limiting before delegating requests to specific handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"partydeck/internal/pkg/auth/jwt"
	"partydeck/internal/pkg/limiter"
	"partydeck/internal/pkg/logx"
	"partydeck/internal/pkg/resp"
)

const (
	// RegisterRate and RegisterBurst bound how fast one IP may attempt
	// registration.
	RegisterRate  = 0.2
	RegisterBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes the registration rate limiter, configures CORS, and applies
// global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	registerLimiter := limiter.NewIPRateLimiter(rate.Limit(RegisterRate), RegisterBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":         "ok",
			"service":        "Partydeck Server",
			"connectedUsers": deps.Registry.Count(),
			"sweepFailures":  deps.Registry.SweepFailureCount(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		rateLimitedRegister := registerLimiter.Middleware(HandleRegister(deps))
		api.Post("/register", http.HandlerFunc(rateLimitedRegister.ServeHTTP))

		api.Get("/poll", HandlePoll(deps))
		api.Post("/chat", HandleChat(deps))
		api.Post("/logout", HandleLogout(deps))
		api.Get("/users", HandleListUsers(deps))
		api.Post("/kick", HandleKick(deps))
		api.Post("/ban", HandleBan(deps))
	})

	r.With(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret)).
		Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}
