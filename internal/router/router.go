// Package router wires the HTTP routes, middleware, and handler dependencies.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chatwave/backend/internal/config"
	"github.com/chatwave/backend/internal/db"
	"github.com/chatwave/backend/internal/handlers"
	"github.com/chatwave/backend/internal/hub"
	"github.com/chatwave/backend/internal/middleware"
	"github.com/chatwave/backend/internal/services"
)

func New(cfg *config.Config, queries *db.Queries) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	realIP := middleware.NewRealIPMiddleware(cfg.TrustedProxies)
	r.Use(realIP.Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.AccessTokenDuration)
	chatHub := hub.New()

	// Handlers
	authHandler := handlers.NewAuthHandler(queries, authService)
	userHandler := handlers.NewUserHandler(queries)
	channelHandler := handlers.NewChannelHandler(queries, chatHub)
	messageHandler := handlers.NewMessageHandler(queries)
	chatHandler := handlers.NewChatHandler(chatHub, queries, authService)

	// Rate limiter for credential endpoints
	authRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Registration and login (rate limited, no auth)
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Use(middleware.UpdateRequestContextMiddleware)

			r.Get("/users/me", userHandler.Me)

			r.Route("/channels", func(r chi.Router) {
				r.Post("/", channelHandler.Create)
				r.Get("/", channelHandler.List)

				r.Route("/{channelID}", func(r chi.Router) {
					r.Get("/", channelHandler.Get)
					r.Post("/join", channelHandler.Join)
					r.Post("/leave", channelHandler.Leave)
					r.Get("/presence", channelHandler.Presence)
					r.Get("/messages", messageHandler.List)
				})
			})
		})
	})

	// Websocket endpoint; the token travels in the query string because
	// browser websocket clients cannot set headers.
	r.Get("/ws/{channelID}", chatHandler.Serve)

	return r
}
