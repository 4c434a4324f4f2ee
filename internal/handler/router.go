package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// RouterConfig holds what the router needs beyond the services.
type RouterConfig struct {
	JWTSecret         string
	SessionTTL        time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	Checks            map[string]Check
}

// NewRouter wires every endpoint of the API.
func NewRouter(cfg RouterConfig, registry *service.Registry, log *logger.Logger) http.Handler {
	conversationSvc := service.NewConversationService(registry, log)
	messageSvc := service.NewMessageService(registry, conversationSvc, log)
	shopSvc := service.NewShopService(registry, log)

	healthHandler := NewHealthHandler(cfg.Checks)
	sessionHandler := NewSessionHandler(cfg.JWTSecret, cfg.SessionTTL, log)
	conversationHandler := NewConversationHandler(conversationSvc, log)
	messageHandler := NewMessageHandler(messageSvc, log)
	streamHandler := NewStreamHandler(messageSvc, log)
	shopHandler := NewShopHandler(shopSvc, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/sessions", sessionHandler.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/chat/messages", messageHandler.Send)
			r.Get("/stream", streamHandler.Stream)

			// Conversations
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Post("/", conversationHandler.Create)
				r.Delete("/", conversationHandler.Clear)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Put("/", conversationHandler.Update)
					r.Delete("/", conversationHandler.Delete)
					r.Post("/select", conversationHandler.Select)
					r.Get("/journal", messageHandler.Journal)
				})
			})

			// Wishlist
			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", shopHandler.Wishlist)
				r.Post("/toggle", shopHandler.ToggleWishlist)
				r.Post("/sync", shopHandler.SyncWishlist)
				r.Delete("/{sku}", shopHandler.RemoveFromWishlist)
			})

			// Cart
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", shopHandler.Cart)
				r.Put("/items/{uid}", shopHandler.UpdateCartItem)
				r.Delete("/items/{uid}", shopHandler.RemoveCartItem)
			})

			// Auth
			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", shopHandler.Login)
				r.Post("/logout", shopHandler.Logout)
				r.Get("/me", shopHandler.Me)
			})
		})
	})

	return r
}
