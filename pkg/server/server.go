// Package server exposes the monitor over HTTP: failure lookups and polls,
// per-owner stats, step updates and message re-dispatch, plus an SSE stream
// of what the server did.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bascanada/forklift-ops/pkg/config"
	"github.com/bascanada/forklift-ops/pkg/dispatch"
	"github.com/bascanada/forklift-ops/pkg/forklift"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

const shutdownTimeout = 5 * time.Second

// Monitor is the read and update side of the pipeline. *forklift.Service
// implements it.
type Monitor interface {
	Get(ctx context.Context, id string) (*forklift.LogRecord, bool)
	Lookup(ctx context.Context, id string) (*forklift.LogRecord, error)
	Poll(ctx context.Context, service string, role ty.Opt[string], size int) ([]forklift.LogRecord, error)
	Stats(ctx context.Context) (forklift.Stats, error)
	Update(ctx context.Context, index, id, step string)
	Ping(ctx context.Context) bool
	SetDefaultSize(size int)
}

// Dispatcher hands messages to a sink. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Submit(ctx context.Context, kind dispatch.Kind, msg dispatch.Message) error
}

// Server represents the API server instance.
type Server struct {
	router      *http.ServeMux
	httpServer  *http.Server
	logger      *slog.Logger
	port        string
	host        string
	monitor     Monitor
	dispatcher  Dispatcher
	eventBroker *EventBroker
	openapiSpec []byte

	loadConfig func(path string) (*config.Config, error)
}

func NewServer(host, port string, monitor Monitor, dispatcher Dispatcher, logger *slog.Logger, openapiSpec []byte) *Server {
	router := http.NewServeMux()
	s := &Server{
		router:      router,
		logger:      logger,
		port:        port,
		host:        host,
		monitor:     monitor,
		dispatcher:  dispatcher,
		eventBroker: NewEventBroker(logger),
		openapiSpec: openapiSpec,
		loadConfig:  config.Load,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.healthHandler)
	s.router.HandleFunc("GET /logs/{id}", s.getLogHandler)
	s.router.HandleFunc("POST /logs/{index}/{id}/step", s.updateStepHandler)
	s.router.HandleFunc("GET /poll/{service}", s.pollHandler)
	s.router.HandleFunc("GET /stats", s.statsHandler)
	s.router.HandleFunc("POST /dispatch/{sink}", s.dispatchHandler)
	s.router.HandleFunc("GET /events", s.eventsHandler)
	s.router.HandleFunc("GET /openapi.yaml", s.openapiHandler)
}

// Handler is the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.chainMiddleware(s.router, s.recoveryMiddleware, s.corsMiddleware, s.requestIDMiddleware, s.loggingMiddleware)
}

// Events is the broker feeding GET /events.
func (s *Server) Events() *EventBroker {
	return s.eventBroker
}

// ReloadConfig reads the config at path again and applies what can change
// at runtime, the default poll size.
func (s *Server) ReloadConfig(_ context.Context, path string) error {
	cfg, err := s.loadConfig(path)
	if err != nil {
		return err
	}
	s.monitor.SetDefaultSize(cfg.Poll.DefaultSize)
	s.logger.Info("applied reloaded config", "pollSize", cfg.Poll.DefaultSize)
	return nil
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM is received.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, s.port)

	// listen first so port 0 resolves before we log it
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", listener.Addr().String())
		serverErrors <- s.httpServer.Serve(listener)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", "err", err)
			return s.httpServer.Close()
		}
		s.logger.Info("server shutdown gracefully")
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("stopping server")
	return s.httpServer.Shutdown(ctx)
}
