// Package httpapi exposes the daemon's HTTP and SSE control surface, bound
// to loopback, grounded on the teacher's internal/gateway/server.go
// ServeMux-plus-graceful-shutdown shape but without its WebSocket/RPC layer,
// which spec's Non-goals exclude.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/agentsd/internal/bus"
	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/persona"
	"github.com/nextlevelbuilder/agentsd/internal/scheduler"
	"github.com/nextlevelbuilder/agentsd/internal/sessionstore"
	"github.com/nextlevelbuilder/agentsd/internal/workflow"
)

// Version is the daemon's reported build version.
var Version = "dev"

// Server is the HTTP/SSE control surface described in spec.md §6.
type Server struct {
	Host string
	Port int

	Scheduler    *scheduler.Scheduler
	Channels     *channelstore.Store
	Sessions     *sessionstore.Store
	Resolver     *persona.Resolver
	PersonasRoot string
	Workflows    func() []*workflow.Workflow
	TriggerFunc  func(name string, inputs map[string]string) (runID string, ok bool)
	Reload       func() error
	Bus          bus.EventPublisher
	StartedAt    time.Time
	Logger       *slog.Logger

	httpServer *http.Server
	mux        *http.ServeMux
}

// New constructs a Server with StartedAt set to the construction time.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Host: "127.0.0.1", Port: 3141, Logger: logger, StartedAt: time.Now()}
}

func (s *Server) buildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/trigger/", s.handleTrigger)
	mux.HandleFunc("/workflows", s.handleWorkflows)
	mux.HandleFunc("/personas", s.handlePersonas)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/reload", s.handleReload)
	mux.HandleFunc("/channels-stream", s.handleChannelsStream)
	mux.HandleFunc("/channels/", s.handleChannelSubpath)
	mux.HandleFunc("/channels", s.handleChannels)

	s.mux = mux
	return mux
}

// Start begins serving until ctx is cancelled, at which point it shuts down
// gracefully. It blocks until the server has stopped.
func (s *Server) Start(ctx context.Context) error {
	mux := s.buildMux()
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	s.Logger.Info("httpapi: listening", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

// Close shuts the server down immediately, outside the Start/ctx lifecycle
// (used by the supervisor's explicit stop path).
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
