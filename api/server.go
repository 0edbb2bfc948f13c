// Package api provides the HTTP REST API of the history chatbot backend.
//
// Endpoints:
//
//	POST /chat                                      chat with the historian bot
//	GET  /status                                    service and database status
//	GET  /health                                    liveness probe
//	GET    /api/chat/historicos                     list saved conversations
//	PUT    /api/chat/historicos/{id}                rename a conversation
//	PUT    /api/chat/historicos/session/{sessionId} rename by thread id
//	DELETE /api/chat/historicos/{id}                delete a conversation
//	POST   /api/chat/historicos/{id}/gerar-titulo   suggest a title via the model
//	GET|PUT /api/user/preferences                   per-user system instruction (x-user-id)
//	POST    /api/auth/simple-login                  name/email login
//	GET  /api/admin/stats                           admin statistics (x-admin-secret)
//	GET  /api/admin/dashboard                       admin dashboard (x-admin-secret)
//	GET|POST /api/admin/system-instruction          global instruction (x-admin-secret)
//	POST /api/log-connection                        frontend connection telemetry
//	POST /api/ranking/registrar-acesso-bot          bot access counter
//	GET  /api/ranking/visualizar                    bot access ranking
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, CORS, logging)
//   - status.go: status and liveness endpoints
//   - chat.go: chat endpoint
//   - history.go: conversation management endpoints
//   - user.go: login and per-user preferences
//   - admin.go: secret-guarded admin endpoints
//   - telemetry.go: connection log and ranking endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/MariDenig/chatBot-hist/internal/config"
	"github.com/MariDenig/chatBot-hist/internal/log"
	"github.com/MariDenig/chatBot-hist/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 30 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because chat responses wait on the model.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 2 * time.Minute
)

// Server is the HTTP server for the chatbot REST API.
type Server struct {
	mux         *http.ServeMux
	corsOrigins []string
	logger      log.Logger

	// Handlers
	status    *StatusHandler
	chat      *ChatHandler
	history   *HistoryHandler
	user      *UserHandler
	admin     *AdminHandler
	telemetry *TelemetryHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, st store.Storage, replier Replier, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:         mux,
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
		status:      NewStatusHandler(st, cfg.GeminiAPIKey != "", cfg.OpenWeatherAPIKey != "", logger),
		chat:        NewChatHandler(replier, st, logger),
		history:     NewHistoryHandler(st, replier, logger),
		user:        NewUserHandler(st, logger),
		admin:       NewAdminHandler(st, cfg.AdminSecret, logger),
		telemetry:   NewTelemetryHandler(st, logger),
	}

	// Register all routes
	s.status.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.history.RegisterRoutes(mux)
	s.user.RegisterRoutes(mux)
	s.admin.RegisterRoutes(mux)
	s.telemetry.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → CORS → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), corsMiddleware(s.corsOrigins), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
