// Package statusserver serves the mirrored state read-only to collaborators.
// Snapshots are served as JSON, lifecycle events are streamed over a
// websocket. The server speaks HTTP/1.1 and HTTP/2 cleartext.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/retroenv/procmirror/internal/state"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// SnapshotSource returns the latest published snapshot.
type SnapshotSource interface {
	Snapshot() *state.Snapshot
}

// Server is the status server.
type Server struct {
	logger *log.Logger
	source SnapshotSource
	hub    *hub

	upgrader websocket.Upgrader
}

// New creates a status server for the snapshot source.
func New(logger *log.Logger, source SnapshotSource) *Server {
	return &Server{
		logger: logger,
		source: source,
		hub:    newHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP handler of all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /events", s.handleEvents)
	return h2c.NewHandler(mux, &http2.Server{})
}

// Publish sends the event to all connected event subscribers. It never
// blocks, slow subscribers lose events.
func (s *Server) Publish(name string, at time.Time) {
	s.hub.broadcast(eventMessage{Event: name, Time: at})
}

// Subscribers returns the number of connected event subscribers.
func (s *Server) Subscribers() int {
	return s.hub.len()
}

// ListenAndServe serves on the address until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on the listener until the context is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Status server shutdown failed", log.Err(err))
		}
	}()

	s.logger.Info("Status server listening", log.String("address", listener.Addr().String()))
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return fmt.Errorf("serving status: %w", err)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.source.Snapshot()
	if snapshot == nil {
		http.Error(w, "no snapshot published", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Debug("Writing snapshot failed", log.Err(err))
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an error status
		s.logger.Debug("Websocket upgrade failed", log.Err(err))
		return
	}
	s.hub.serve(conn)
}
