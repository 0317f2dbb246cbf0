// Package server assembles the popup-studio HTTP server: widget store API,
// template catalog, browser editor, notifications, audit and auth.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/bridge"
	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/config"
	"github.com/ziadkadry99/popup-studio/internal/db"
	"github.com/ziadkadry99/popup-studio/internal/logging"
	"github.com/ziadkadry99/popup-studio/internal/notifications"
	"github.com/ziadkadry99/popup-studio/internal/studio"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

// Config holds server configuration.
type Config struct {
	Port            int
	AllowAll        bool // allow all CORS origins (dev mode)
	PreviewDebounce time.Duration
	RateLimit       config.RateLimitConfig
	// AuditRetention is how long audit entries are kept. Zero keeps them forever.
	AuditRetention time.Duration
}

// Server is the popup-studio HTTP server.
type Server struct {
	cfg        Config
	db         *db.DB
	registry   *catalog.Registry
	jwt        *auth.JWTManager
	users      *auth.UserStore
	audit      *audit.Store
	notifs     *notifications.Store
	hub        *notifications.Hub
	widgets    *widgetstore.Service
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over database. The registry must already be locked.
func New(cfg Config, database *db.DB, reg *catalog.Registry, jwtm *auth.JWTManager) *Server {
	s := &Server{
		cfg:      cfg,
		db:       database,
		registry: reg,
		jwt:      jwtm,
		users:    auth.NewUserStore(database),
		audit:    audit.NewStore(database),
		notifs:   notifications.NewStore(database),
		hub:      notifications.NewHub(),
	}
	s.widgets = widgetstore.NewService(
		widgetstore.NewStore(database),
		s.audit,
		notifications.NewDispatcher(s.notifs, s.hub),
		reg,
	)

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Websockets are long-lived; only plain API calls get a deadline.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		catalog.RegisterRoutes(r, s.registry)
		widgetstore.RegisterRoutes(r, s.widgets, s.jwt, s.cfg.RateLimit)
		auth.RegisterRoutes(r, s.users, s.jwt, s.audit)
		audit.RegisterRoutes(r, s.audit, s.jwt.Authenticate, auth.RequireRole(auth.RoleAdmin))
	})
	notifications.RegisterRoutes(r, s.notifs, s.hub, s.jwt.Authenticate, auth.RequireRole(auth.RoleAdmin))

	studio.New(s.registry, bridge.NewLocal(s.widgets, s.jwt), s.cfg.PreviewDebounce).RegisterRoutes(r)

	return r
}

// requestLogger logs one line per request through the shared logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logging.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Widgets returns the widget service.
func (s *Server) Widgets() *widgetstore.Service { return s.widgets }

// Users returns the user store.
func (s *Server) Users() *auth.UserStore { return s.users }

// Hub returns the live notification hub.
func (s *Server) Hub() *notifications.Hub { return s.hub }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logging.Info().Str("addr", addr).Int("templates", s.registry.Count()).Msg("popup-studio server listening")
	return s.httpServer.ListenAndServe()
}

// PruneAudit deletes audit entries older than the retention period, measured
// back from now.
func (s *Server) PruneAudit(ctx context.Context, now time.Time) (int64, error) {
	if s.cfg.AuditRetention <= 0 {
		return 0, nil
	}
	n, err := s.audit.DeleteBefore(ctx, now.Add(-s.cfg.AuditRetention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Info().Int64("deleted", n).Dur("retention", s.cfg.AuditRetention).Msg("pruned audit trail")
	}
	return n, nil
}

// RunAuditRetention prunes the audit trail now and then daily until ctx is done.
func (s *Server) RunAuditRetention(ctx context.Context) {
	if s.cfg.AuditRetention <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if _, err := s.PruneAudit(ctx, time.Now()); err != nil {
			logging.Warn().Err(err).Msg("pruning audit trail")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
