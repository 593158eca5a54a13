// Package server ties the user directory, session registry, and router into a
// single Server that owns them for the lifetime of the process.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server owns the shared state used by every connection. Nothing here is a
// package-level singleton; tests build as many Servers as they need.
type Server struct {
	cfg       Config
	log       *slog.Logger
	directory *UserDirectory
	sessions  *SessionRegistry
	router    *Router
	upgrader  websocket.Upgrader

	connsMu sync.Mutex
	conns   map[*Connection]struct{}
	wg      sync.WaitGroup
	closing bool
}

// New creates a Server with an empty directory and registry.
func New(cfg *Config, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	sessions := NewSessionRegistry(log)
	origins := newOriginPolicy(sanitized.AllowedOrigins, log)

	return &Server{
		cfg:       sanitized,
		log:       log,
		directory: NewUserDirectory(log),
		sessions:  sessions,
		router:    NewRouter(sessions, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		conns: make(map[*Connection]struct{}),
	}
}

// Directory returns the server's user directory.
func (s *Server) Directory() *UserDirectory {
	return s.directory
}

// Sessions returns the server's session registry.
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// handle runs an upgraded connection in a tracked goroutine.
func (s *Server) handle(conn *websocket.Conn, addr string) {
	c := newConnection(conn, s, addr, uuid.NewString())

	s.connsMu.Lock()
	if s.closing {
		s.connsMu.Unlock()
		c.writeCloseReason(websocket.CloseGoingAway, "server shutting down")
		c.closeConnection()
		return
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.connsMu.Unlock()

	go func() {
		defer func() {
			s.connsMu.Lock()
			delete(s.conns, c)
			s.connsMu.Unlock()
			s.wg.Done()
		}()
		c.serve()
	}()
}

// activate inserts the connection's session unless the server is shutting
// down. Holding connsMu keeps it ordered with Shutdown.
func (s *Server) activate(c *Connection) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	if s.closing {
		return false
	}
	c.active.Store(true)
	s.sessions.Insert(c.session)
	return true
}

// Shutdown closes every session, which sends each logged-in peer a close
// frame, then closes any connection still waiting on its handshake. It waits
// for all connection goroutines or until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down all client connections...")

	s.connsMu.Lock()
	s.closing = true
	// Logged-in peers are closed by their write pumps once CloseAll runs
	for c := range s.conns {
		if !c.active.Load() {
			_ = c.conn.Close()
		}
	}
	s.connsMu.Unlock()

	s.sessions.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Connection shutdown completed successfully")
		return nil
	case <-ctx.Done():
		s.log.Warn("Connection shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
