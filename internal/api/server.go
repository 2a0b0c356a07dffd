// Package api implements the hosted sync server: board registry, device
// auth, event push/pull, and the realtime websocket fanout.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/marcus/kanban/internal/realtime"
	"github.com/marcus/kanban/internal/serverdb"
)

// Server is the sync server. It owns the control-plane store, the
// per-board event log pool, and the websocket hub.
type Server struct {
	config   *Config
	http     *http.Server
	store    *serverdb.ServerDB
	pool     *BoardDBPool
	hub      *realtime.Hub
	wsSecret []byte
	cancel   context.CancelFunc
}

// NewServer creates a server with all routes and middleware wired up.
func NewServer(cfg *Config) (*Server, error) {
	store, err := serverdb.Open(cfg.ServerDBPath)
	if err != nil {
		return nil, fmt.Errorf("open server db: %w", err)
	}

	s := &Server{
		config:   cfg,
		store:    store,
		pool:     NewBoardDBPool(cfg.BoardDataDir),
		hub:      realtime.NewHub(),
		wsSecret: cfg.WSSecret,
	}

	handler := chain(s.routes(),
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		loggingMiddleware,
		maxBytesMiddleware(10<<20),
	)

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		})
		handler = c.Handler(handler)
	}

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// routes builds the ServeMux with method patterns.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Device auth flow
	mux.HandleFunc("POST /v1/auth/login/start", s.handleLoginStart)
	mux.HandleFunc("POST /v1/auth/login/poll", s.handleLoginPoll)
	mux.HandleFunc("GET /auth/verify", s.handleVerifyPage)
	mux.HandleFunc("POST /auth/verify", s.handleVerifySubmit)

	// Board registry
	mux.HandleFunc("POST /v1/boards", s.requireAuth(s.handleCreateBoard))
	mux.HandleFunc("GET /v1/boards", s.requireAuth(s.handleListBoards))
	mux.HandleFunc("GET /v1/boards/{id}", s.requireBoardAuth(serverdb.RoleReader, s.handleGetBoard))
	mux.HandleFunc("PATCH /v1/boards/{id}", s.requireBoardAuth(serverdb.RoleOwner, s.handleUpdateBoard))
	mux.HandleFunc("DELETE /v1/boards/{id}", s.requireBoardAuth(serverdb.RoleOwner, s.handleDeleteBoard))

	// Membership
	mux.HandleFunc("POST /v1/boards/{id}/members", s.requireBoardAuth(serverdb.RoleOwner, s.handleAddMember))
	mux.HandleFunc("GET /v1/boards/{id}/members", s.requireBoardAuth(serverdb.RoleReader, s.handleListMembers))
	mux.HandleFunc("PATCH /v1/boards/{id}/members/{userID}", s.requireBoardAuth(serverdb.RoleOwner, s.handleUpdateMember))
	mux.HandleFunc("DELETE /v1/boards/{id}/members/{userID}", s.requireBoardAuth(serverdb.RoleOwner, s.handleRemoveMember))

	// Event sync
	mux.HandleFunc("POST /v1/boards/{id}/sync/push", s.requireBoardAuth(serverdb.RoleWriter, s.handleSyncPush))
	mux.HandleFunc("GET /v1/boards/{id}/sync/pull", s.requireBoardAuth(serverdb.RoleReader, s.handleSyncPull))
	mux.HandleFunc("GET /v1/boards/{id}/sync/status", s.requireBoardAuth(serverdb.RoleReader, s.handleSyncStatus))

	// Realtime
	mux.HandleFunc("POST /v1/boards/{id}/ws/token", s.requireBoardAuth(serverdb.RoleReader, s.handleWSToken))
	mux.HandleFunc("GET /v1/boards/{id}/ws", s.handleWS)

	return mux
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler returns the server's root HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// RunHub runs the websocket hub until ctx is cancelled. Start does this
// itself; callers serving the handler directly (tests) use this.
func (s *Server) RunHub(ctx context.Context) {
	s.hub.Run(ctx)
}

// Start begins listening in the background and starts the hub and the
// auth-request cleanup loop. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.hub.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.store.CleanupExpiredAuthRequests(); err != nil {
					slog.Warn("cleanup auth requests", "err", err)
				} else if n > 0 {
					slog.Info("expired auth requests", "count", n)
				}
			}
		}
	}()

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http serve", "err", err)
		}
	}()

	slog.Info("sync server listening", "addr", ln.Addr().String())
	return nil
}

// Shutdown stops the server gracefully, draining in-flight requests and
// closing every open database.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	err := s.http.Shutdown(ctx)

	s.pool.CloseAll()
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
