package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/npezzotti/chat-relay/internal/analytics"
	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/config"
	"github.com/npezzotti/chat-relay/internal/database"
)

const requestTimeout = 10 * time.Second

// AdminApp is the authenticated HTTP control plane over the store.
// Every successful mutation publishes the matching invalidation and
// live-push event; responses never wait for subscribers.
type AdminApp struct {
	log       *log.Logger
	db        database.RelayRepository
	cache     cache.RelayCache
	analytics *analytics.Service
	mux       *http.Server

	signingKey  []byte
	tokenExpiry time.Duration

	rateLimitRequests int
	rateLimitWindow   time.Duration
}

func NewAdminApp(mux *http.ServeMux, logger *log.Logger, db database.RelayRepository,
	c cache.RelayCache, an *analytics.Service, wsHandler http.Handler, cfg *config.Config) *AdminApp {

	s := &AdminApp{
		log:               logger,
		db:                db,
		cache:             c,
		analytics:         an,
		signingKey:        cfg.SecretKey,
		tokenExpiry:       time.Duration(cfg.TokenExpireMinutes) * time.Minute,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   time.Duration(cfg.RateLimitWindowSec) * time.Second,
	}

	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("POST /api/auth/refresh", s.authMiddleware(s.refresh))
	mux.HandleFunc("GET /api/auth/me", s.authMiddleware(s.me))

	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("PUT /api/rooms/{id}", s.authMiddleware(s.updateRoom))
	mux.HandleFunc("DELETE /api/rooms/{id}", s.authMiddleware(s.deleteRoom))
	mux.HandleFunc("GET /api/rooms/{id}/permissions", s.authMiddleware(s.getPermissions))
	mux.HandleFunc("PUT /api/rooms/{id}/permissions", s.authMiddleware(s.updatePermissions))
	mux.HandleFunc("GET /api/rooms/{id}/channels", s.authMiddleware(s.listRoomChannels))
	mux.HandleFunc("POST /api/rooms/{id}/channels", s.authMiddleware(s.registerChannel))
	mux.HandleFunc("DELETE /api/rooms/{id}/channels/{guild_id}/{channel_id}", s.authMiddleware(s.unregisterChannel))
	mux.HandleFunc("GET /api/rooms/{id}/messages", s.authMiddleware(s.listRoomMessages))

	mux.HandleFunc("GET /api/servers", s.authMiddleware(s.listServers))
	mux.HandleFunc("GET /api/servers/bans", s.authMiddleware(s.listBans))
	mux.HandleFunc("POST /api/servers/bans", s.authMiddleware(s.banGuild))
	mux.HandleFunc("DELETE /api/servers/bans/{guild_id}", s.authMiddleware(s.unbanGuild))
	mux.HandleFunc("POST /api/servers/bulk/refresh-cache", s.authMiddleware(s.refreshCache))
	mux.HandleFunc("GET /api/servers/{guild_id}", s.authMiddleware(s.getServer))
	mux.HandleFunc("GET /api/servers/{guild_id}/channels", s.authMiddleware(s.listServerChannels))
	mux.HandleFunc("GET /api/servers/{guild_id}/stats", s.authMiddleware(s.serverStats))
	mux.HandleFunc("GET /api/servers/{guild_id}/activity", s.authMiddleware(s.serverActivity))

	mux.HandleFunc("GET /api/analytics/live", s.authMiddleware(s.analyticsLive))
	mux.HandleFunc("GET /api/analytics/messages", s.authMiddleware(s.analyticsMessages))
	mux.HandleFunc("GET /api/analytics/rooms/{id}/stats", s.authMiddleware(s.analyticsRoomStats))
	mux.HandleFunc("GET /api/analytics/health", s.authMiddleware(s.analyticsHealth))
	mux.HandleFunc("GET /api/analytics/trends", s.authMiddleware(s.analyticsTrends))
	mux.HandleFunc("GET /api/analytics/export/messages", s.authMiddleware(s.exportMessages))

	mux.HandleFunc("GET /api/status", s.status)
	mux.HandleFunc("GET /api/info", s.authMiddleware(s.info))

	if wsHandler != nil {
		mux.Handle("GET /ws", wsHandler)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mux = srv
	return s
}

func (s *AdminApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// publish is the fire-and-forget side-effect channel of every write.
func (s *AdminApp) publish(ctx context.Context, topic string, payload any) {
	if err := s.cache.Publish(ctx, topic, payload); err != nil {
		s.log.Printf("publish %s: %v", topic, err)
	}
}

func (s *AdminApp) Start() error {
	s.log.Printf("starting admin server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *AdminApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
