package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"getpoetry/internal/config"
	"getpoetry/internal/metrics"
)

// Behavior describes how a listener serves its poem.
type Behavior struct {
	Poem []byte
	// NumBytes is written per tick; <= 0 writes the whole poem at once.
	NumBytes int
	// Delay separates two writes; <= 0 writes without pausing.
	Delay time.Duration
	// Hang keeps the connection open after the poem instead of closing it.
	Hang bool
	// ReusePort sets SO_REUSEPORT so several processes can share the port.
	ReusePort bool
}

// BehaviorFor builds a Behavior from a listener config and its poem text.
func BehaviorFor(l config.Listener, poem []byte) Behavior {
	return Behavior{
		Poem:      poem,
		NumBytes:  l.NumBytes,
		Delay:     l.Delay,
		Hang:      l.Hang,
		ReusePort: l.ReusePort,
	}
}

// HealthReporter receives a listener's serving status. *Admin implements it.
type HealthReporter interface {
	SetServing(service string, serving bool)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Server) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth reports the listener as serving once it accepts connections
// and as not serving once Stop begins.
func WithHealth(h HealthReporter) Option {
	return func(s *Server) { s.health = h }
}

// Server is a slow poetry server: every accepted connection receives the
// poem in small chunks, after which the connection is closed (or left open
// when Hang is set).
type Server struct {
	addr     string
	behavior Behavior
	logger   *slog.Logger
	metrics  *metrics.Server
	health   HealthReporter

	ln    net.Listener
	label string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates a server for addr. Port 0 picks a free port.
func New(addr string, b Behavior, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:     addr,
		behavior: b,
		logger:   slog.New(slog.DiscardHandler),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	if s.behavior.ReusePort {
		lc.Control = reusePort
	}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.label = strconv.Itoa(s.Port())

	s.logger.Info("server.listening", "addr", ln.Addr().String(),
		"bytes", len(s.behavior.Poem), "num_bytes", s.behavior.NumBytes,
		"delay", s.behavior.Delay, "hang", s.behavior.Hang)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Port returns the bound port. Only valid after Start.
func (s *Server) Port() int {
	if tcp, ok := s.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Stop closes the listener and every open connection, then waits for the
// serving goroutines to exit.
func (s *Server) Stop() {
	s.cancel()
	if s.ln != nil {
		s.report(false)
		s.ln.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("server.stopped", "addr", s.addr)
}

// report runs under mu so a late SERVING can never follow Stop's NOT_SERVING.
func (s *Server) report(serving bool) {
	if s.health == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if serving && s.ctx.Err() != nil {
		return
	}
	s.health.SetServing(ListenerService(s.Port()), serving)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	s.report(true)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("server.accept_failed", "addr", s.addr, "error", err)
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()

	peer := conn.RemoteAddr().String()
	s.logger.Info("server.accepted", "addr", s.label, "peer", peer)
	s.metrics.Opened(s.label)

	aborted := false
	defer func() {
		conn.Close()
		s.track(conn, false)
		s.metrics.Closed(s.label, aborted)
		s.logger.Debug("server.closed", "addr", s.label, "peer", peer, "aborted", aborted)
	}()

	// The client never writes; a read returning means it went away.
	gone := make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn)
		close(gone)
	}()

	if err := s.writePoem(conn, gone); err != nil {
		aborted = true
		s.logger.Info("server.client_dropped", "addr", s.label, "peer", peer, "error", err)
		return
	}

	if s.behavior.Hang {
		select {
		case <-s.ctx.Done():
		case <-gone:
			aborted = true
		}
	}
}

var errClientGone = errors.New("client closed the connection")

func (s *Server) writePoem(conn net.Conn, gone <-chan struct{}) error {
	poem := s.behavior.Poem
	chunk := s.behavior.NumBytes
	if chunk <= 0 || s.behavior.Delay <= 0 {
		chunk = len(poem)
	}

	var ticker *time.Ticker
	if s.behavior.Delay > 0 {
		ticker = time.NewTicker(s.behavior.Delay)
		defer ticker.Stop()
	}

	for off := 0; off < len(poem); {
		end := min(off+chunk, len(poem))
		n, err := conn.Write(poem[off:end])
		s.metrics.Sent(s.label, n)
		if err != nil {
			return err
		}
		off = end
		if off >= len(poem) || ticker == nil {
			continue
		}

		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-gone:
			return errClientGone
		case <-ticker.C:
		}
	}
	return nil
}
