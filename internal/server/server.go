package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dukerupert/shelflife/internal/handler"
	"github.com/dukerupert/shelflife/internal/middleware"
	"github.com/dukerupert/shelflife/internal/notify"
	"github.com/dukerupert/shelflife/internal/repository"
	"github.com/dukerupert/shelflife/internal/store"
	ws "github.com/dukerupert/shelflife/internal/websocket"
)

// Wake ingest is unauthenticated, so each client address gets a small budget.
const (
	wakeLimit  = 30
	wakeWindow = time.Minute
)

// Deps are the long-lived components the HTTP surface is built on.
type Deps struct {
	Items  *repository.Items
	Lists  *repository.Lists
	Photos *repository.Photos

	Hub       *ws.Hub
	Router    *notify.Router
	PushStore *store.PushStore

	Zone           string
	VAPIDPublicKey string
	AllowedOrigins []string
}

type Server struct {
	hub            *ws.Hub
	router         *notify.Router
	listH          *handler.ListHandler
	itemH          *handler.ItemHandler
	photoH         *handler.PhotoHandler
	pushH          *handler.PushHandler
	rateLimiter    *middleware.RateLimiter
	allowedOrigins []string
	logger         *slog.Logger
}

func New(d Deps, logger *slog.Logger) *Server {
	return &Server{
		hub:            d.Hub,
		router:         d.Router,
		listH:          handler.NewListHandler(d.Lists, logger.With("component", "lists_handler")),
		itemH:          handler.NewItemHandler(d.Items, logger.With("component", "items_handler")),
		photoH:         handler.NewPhotoHandler(d.Photos, d.Items, logger.With("component", "photos_handler")),
		pushH:          handler.NewPushHandler(d.PushStore, d.VAPIDPublicKey, d.Zone, logger.With("component", "push_handler")),
		rateLimiter:    middleware.NewRateLimiter(wakeLimit, wakeWindow),
		allowedOrigins: d.AllowedOrigins,
		logger:         logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Lists
	mux.HandleFunc("GET /lists", s.listH.List)
	mux.HandleFunc("POST /lists", s.listH.Create)
	mux.HandleFunc("GET /lists/{id}", s.listH.Get)
	mux.HandleFunc("PUT /lists/{id}", s.listH.Rename)
	mux.HandleFunc("DELETE /lists/{id}", s.listH.Delete)

	// Items
	mux.HandleFunc("GET /items", s.itemH.List)
	mux.HandleFunc("POST /items", s.itemH.Create)
	mux.HandleFunc("GET /items/{id}", s.itemH.Get)
	mux.HandleFunc("PUT /items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /items/{id}", s.itemH.Delete)
	mux.HandleFunc("POST /items/{id}/move", s.itemH.Move)

	// Photos
	mux.HandleFunc("GET /items/{id}/photos", s.photoH.List)
	mux.HandleFunc("POST /items/{id}/photos", s.photoH.Upload)
	mux.HandleFunc("GET /items/{id}/photos/{photo_id}", s.photoH.Get)
	mux.HandleFunc("GET /items/{id}/photos/{photo_id}/thumbnail", s.photoH.Thumbnail)
	mux.HandleFunc("DELETE /items/{id}/photos/{photo_id}", s.photoH.Delete)

	// Device registration for wake pushes
	mux.HandleFunc("POST /push/subscriptions", s.pushH.Subscribe)
	mux.HandleFunc("GET /push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /push/subscriptions", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /push/vapid-key", s.pushH.VAPIDKey)

	// Remote change notifications from other devices
	mux.Handle("POST /wake", s.rateLimited(s.router))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.allowedOrigins))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return otelhttp.NewHandler(logged, "shelflife")
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}
