// server.go - HTTP server wiring: routes, middleware and lifecycle.
package server

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server owns the HTTP surface and the components behind it.
type Server struct {
	cfg  *Config
	log  *zap.Logger
	db   *sql.DB
	hub  *Hub
	life *Lifecycle

	blobs      BlobStore
	store      FileStore
	httpServer *http.Server

	janitorCancel context.CancelFunc
}

// New assembles the router. The store, blob store and hub arrive already
// constructed so tests can swap in doubles.
func New(cfg *Config, log *zap.Logger, db *sql.DB, store FileStore, blobs BlobStore) *Server {
	hub := NewHub(log)
	audit := NewAuditor(db, log)
	s := &Server{
		cfg:   cfg,
		log:   log,
		db:    db,
		hub:   hub,
		blobs: blobs,
		store: store,
		life:  NewLifecycle(store, blobs, hub, audit, log, cfg),
	}

	auth := AuthConfig{JWTSecret: cfg.JWTSecret}
	uploadLimit := newRateLimiter(cfg.UploadRate, cfg.UploadRateWindow)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(loggingMiddleware(log))

	// Probes and metrics stay unauthenticated.
	r.Get("/health", s.healthHandler())
	r.Get("/ready", s.readyHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.requireAuth)

		r.With(uploadLimit.middleware).Post("/upload", s.uploadHandler())
		r.Get("/files", s.listFilesHandler())
		r.Get("/print/{fileID}", s.printHandler())
		r.Post("/delete/{fileID}", s.deleteHandler())
		r.Get("/history", s.historyHandler())
		r.Post("/clear-history", s.clearHistoryHandler())
		r.Post("/status/update/{fileID}", s.statusUpdateHandler())
		r.Get("/status/history/{fileID}", s.statusSnapshotHandler())
		r.Get("/events/stream", s.streamHandler())
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: /events/stream connections are long-lived.
	}
	return s
}

// Handler exposes the router for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	if s.cfg.RetentionMaxAge > 0 && s.cfg.RetentionInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.janitorCancel = cancel
		j := &janitor{
			store:    s.store,
			blobs:    s.blobs,
			log:      s.log,
			interval: s.cfg.RetentionInterval,
			maxAge:   s.cfg.RetentionMaxAge,
		}
		go j.run(ctx)
	}

	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting new requests and waits for in-flight ones.
// Open event streams never drain on their own, so once the grace period
// expires the remaining connections are force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.janitorCancel != nil {
		s.janitorCancel()
	}
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		_ = s.httpServer.Close()
	}
	return err
}
