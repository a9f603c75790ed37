// Package fastagi runs the TCP listener Asterisk connects to for each
// inbound call, one connection per call.
package fastagi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/voicegate/voicegate/internal/agi"
)

// HandlerFunc runs one call over an initialized session. It must not
// be shared between calls.
type HandlerFunc func(ctx context.Context, session *agi.Session)

// Server accepts AGI connections and hands each one to the handler on
// its own goroutine.
type Server struct {
	addr    string
	handler HandlerFunc
	logger  *slog.Logger

	ln     net.Listener
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string, handler HandlerFunc, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logger.With("component", "fastagi"),
	}
}

// Start begins accepting connections. It returns once the listener is
// bound; accepted calls run until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("agi listener started", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the bound listener address, for tests and logs.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// ActiveCallCount returns how many calls are being handled right now.
func (s *Server) ActiveCallCount() int {
	return int(s.active.Load())
}

// Stop closes the listener and waits for in-flight calls to finish or
// the context to expire.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln != nil {
		s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for calls to drain: %w", ctx.Err())
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.active.Add(1)
	defer s.active.Add(-1)

	logger := s.logger.With("remote", conn.RemoteAddr().String())

	session := agi.NewSession(conn, logger)
	if err := session.Initialize(); err != nil {
		logger.Error("agi handshake failed", "error", err)
		return
	}

	s.handler(ctx, session)
}
