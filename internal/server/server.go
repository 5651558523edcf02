// Package server runs the TCP front end of the game. All game state lives on a
// single event loop goroutine; sockets, credential lookups and AI timers only
// feed it through channels and the work queue.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/elimination/internal/accounts"
	"github.com/vovakirdan/elimination/internal/metrics"
	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/workqueue"
)

// DefaultPollInterval bounds how long the loop waits for network activity
// before it checks the work queue again.
const DefaultPollInterval = 10 * time.Millisecond

// Config holds server settings.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string

	PollInterval time.Duration
	WriteTimeout time.Duration

	Game multiplayer.Config
}

// DefaultConfig returns the standard listen address and game settings.
func DefaultConfig() Config {
	return Config{
		Addr:         "0.0.0.0:20678",
		PollInterval: DefaultPollInterval,
		WriteTimeout: 5 * time.Second,
		Game:         multiplayer.DefaultConfig(),
	}
}

// Authenticator resolves login requests off the event loop.
type Authenticator interface {
	LoginAsync(name, passwordHash string, done func(accounts.Result)) error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records connection, login and room metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithResultSaver records every closed room.
func WithResultSaver(rs multiplayer.ResultSaver) Option {
	return func(s *Server) { s.matchOpts = append(s.matchOpts, multiplayer.WithResultSaver(rs)) }
}

// WithMatchOptions passes options through to the matchmaker.
func WithMatchOptions(opts ...multiplayer.Option) Option {
	return func(s *Server) { s.matchOpts = append(s.matchOpts, opts...) }
}

// Server accepts game clients and runs the event loop.
type Server struct {
	cfg       Config
	auth      Authenticator
	logger    *log.Logger
	metrics   *metrics.Metrics
	matchOpts []multiplayer.Option

	queue *workqueue.Queue
	mm    *multiplayer.Matchmaker

	// Owned by the loop goroutine.
	conns map[multiplayer.ConnID]*Conn
	ready []multiplayer.ConnID

	nextID     atomic.Uint64
	events     chan netEvent
	done       chan struct{}
	acceptDone chan struct{}
	wg         sync.WaitGroup // socket readers
}

var _ multiplayer.Sender = (*Server)(nil)

// New builds a server. Nothing listens until Run or Serve is called.
func New(cfg Config, auth Authenticator, opts ...Option) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		cfg:        cfg,
		auth:       auth,
		conns:      make(map[multiplayer.ConnID]*Conn),
		events:     make(chan netEvent, 256),
		done:       make(chan struct{}),
		acceptDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}

	s.queue = workqueue.New(workqueue.WithPanicHandler(func(v any) {
		s.logger.Error("queued action panicked", "panic", v)
	}))

	mmOpts := []multiplayer.Option{multiplayer.WithLogger(s.logger.WithPrefix("match"))}
	if s.metrics != nil {
		mmOpts = append(mmOpts, multiplayer.WithObserver(s.metrics))
	}
	mmOpts = append(mmOpts, s.matchOpts...)
	s.mm = multiplayer.NewMatchmaker(cfg.Game, s, s.queue, mmOpts...)
	return s
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: cannot listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the event loop on ln until ctx is cancelled or the listener
// fails. Serve closes ln. A Server can only serve once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("listening", "address", ln.Addr().String())

	go s.acceptLoop(ln)

	err := s.loop(ctx)

	s.shutdown(ln)
	return err
}

func (s *Server) loop(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for {
		s.queue.Drain(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// Connections with buffered bytes are readable right now, so only
		// wait when there are none.
		if len(s.ready) > 0 {
			if err := s.drainEvents(); err != nil {
				return err
			}
		} else {
			timer.Reset(s.cfg.PollInterval)
			select {
			case <-ctx.Done():
				return nil
			case ev := <-s.events:
				if err := s.handleEvent(ev); err != nil {
					return err
				}
				if err := s.drainEvents(); err != nil {
					return err
				}
			case <-s.queue.Wake():
			case <-timer.C:
			}
		}

		s.receivePass()
	}
}

// drainEvents handles whatever else already arrived without blocking.
func (s *Server) drainEvents() error {
	for {
		select {
		case ev := <-s.events:
			if err := s.handleEvent(ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *Server) handleEvent(ev netEvent) error {
	switch ev.kind {
	case eventAccepted:
		s.register(ev.id, ev.conn)
	case eventData:
		if c, ok := s.conns[ev.id]; ok {
			c.inbox.Write(ev.data)
			s.markReady(c)
		}
	case eventClosed:
		if c, ok := s.conns[ev.id]; ok {
			c.eof = true
			c.readErr = ev.err
			s.markReady(c)
		}
	case eventListenFailed:
		return fmt.Errorf("server: accept: %w", ev.err)
	}
	return nil
}

// receivePass gives every ready connection one parse attempt. Connections
// with bytes left over stay ready for the next pass.
func (s *Server) receivePass() {
	ready := s.ready
	s.ready = nil

	for _, id := range ready {
		c, ok := s.conns[id]
		if !ok {
			continue
		}
		c.queued = false

		cmd, err := c.parser.TryReceive(&c.inbox)
		if err != nil {
			s.metrics.ProtocolError()
			c.logger.Error("protocol error", "error", err)
			s.dispose(id, "protocol error")
			continue
		}
		if cmd != nil {
			s.dispatch(c, cmd)
		}

		if s.conns[id] != c {
			continue
		}
		switch {
		case c.inbox.Len() > 0:
			s.markReady(c)
		case c.eof:
			s.dispose(id, closeReason(c.readErr))
		}
	}
}

func (s *Server) markReady(c *Conn) {
	if c.queued {
		return
	}
	c.queued = true
	s.ready = append(s.ready, c.id)
}

func (s *Server) shutdown(ln net.Listener) {
	dropped := s.queue.Close()
	s.mm.Shutdown()

	ln.Close()
	close(s.done)
	<-s.acceptDone
	s.discardEvents()
	for id := range s.conns {
		s.dispose(id, "shutdown")
	}
	s.wg.Wait()

	s.logger.Info("server stopped", "dropped_actions", dropped)
}

// discardEvents empties the event channel, closing sockets that were accepted
// but never registered.
func (s *Server) discardEvents() {
	for {
		select {
		case ev := <-s.events:
			if ev.kind == eventAccepted {
				ev.conn.Close()
			}
		default:
			return
		}
	}
}

func closeReason(err error) string {
	if err == nil || errors.Is(err, io.EOF) {
		return "peer closed"
	}
	return err.Error()
}
