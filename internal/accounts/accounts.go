// Package accounts implements login and implicit registration against the
// in-memory user table. Lookups run on a bounded worker pool so callers on
// the event loop never wait for them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/panjf2000/ants/v2"

	"github.com/vovakirdan/elimination/internal/protocol"
	"github.com/vovakirdan/elimination/internal/storage"
)

// DefaultRegisterLatency simulates the cost of persisting a new account.
const DefaultRegisterLatency = 10 * time.Millisecond

// Identity is an authenticated user.
type Identity struct {
	Name string
}

// Result is the outcome of a login attempt. Identity is nil unless Code is
// StatusOK or StatusCreated.
type Result struct {
	Code     int
	Identity *Identity
}

// OK reports whether the login succeeded.
func (r Result) OK() bool {
	return r.Identity != nil
}

// UserStore is the subset of storage.Store the service needs.
type UserStore interface {
	UserByName(ctx context.Context, name string) (*storage.User, error)
	CreateUser(ctx context.Context, name, passwordHash string) (*storage.User, error)
}

// Config tunes the service.
type Config struct {
	Workers         int
	Backlog         int // logins allowed to wait for a free worker
	RegisterLatency time.Duration
	Timeout         time.Duration // per lookup
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		Backlog:         1024,
		RegisterLatency: DefaultRegisterLatency,
		Timeout:         5 * time.Second,
	}
}

// Service authenticates users.
type Service struct {
	cfg    Config
	users  UserStore
	pool   *ants.Pool
	logger *log.Logger
}

// New creates a service backed by users. A nil logger discards output.
func New(cfg Config, users UserStore, logger *log.Logger) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultConfig().Backlog
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	pool, err := ants.NewPool(cfg.Workers, ants.WithMaxBlockingTasks(cfg.Backlog))
	if err != nil {
		return nil, fmt.Errorf("accounts: cannot create worker pool: %w", err)
	}
	return &Service{cfg: cfg, users: users, pool: pool, logger: logger}, nil
}

// Login checks credentials, registering unknown names on the fly.
//
//   - empty name or password: 400
//   - known name, matching password: 200
//   - known name, other password: 401
//   - unknown name: registered, 201
//   - lost a race registering the same new name: 400
func (s *Service) Login(ctx context.Context, name, passwordHash string) Result {
	if name == "" || passwordHash == "" {
		return Result{Code: protocol.StatusBadRequest}
	}

	u, err := s.users.UserByName(ctx, name)
	if err != nil {
		s.logger.Error("user lookup failed", "user", name, "error", err)
		return Result{Code: protocol.StatusBadRequest}
	}
	if u != nil {
		if u.PasswordHash != passwordHash {
			return Result{Code: protocol.StatusUnauthorized}
		}
		return Result{Code: protocol.StatusOK, Identity: &Identity{Name: u.Name}}
	}

	if s.cfg.RegisterLatency > 0 {
		select {
		case <-time.After(s.cfg.RegisterLatency):
		case <-ctx.Done():
			return Result{Code: protocol.StatusBadRequest}
		}
	}

	if _, err := s.users.CreateUser(ctx, name, passwordHash); err != nil {
		if !errors.Is(err, storage.ErrUserExists) {
			s.logger.Error("user registration failed", "user", name, "error", err)
		}
		return Result{Code: protocol.StatusBadRequest}
	}
	s.logger.Info("user registered", "user", name)
	return Result{Code: protocol.StatusCreated, Identity: &Identity{Name: name}}
}

// LoginAsync runs Login on the worker pool and hands the result to done on
// a background goroutine. It never waits for a free worker. done must not
// touch event-loop state; it should only post the result back. When the
// backlog is full done receives StatusBadRequest. An error means the service
// is closed and done will not be called.
func (s *Service) LoginAsync(name, passwordHash string, done func(Result)) error {
	if s.pool.IsClosed() {
		return fmt.Errorf("accounts: cannot schedule login: %w", ants.ErrPoolClosed)
	}
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		done(s.Login(ctx, name, passwordHash))
	}
	go func() {
		if err := s.pool.Submit(job); err != nil {
			s.logger.Warn("login rejected", "user", name, "error", err)
			done(Result{Code: protocol.StatusBadRequest})
		}
	}()
	return nil
}

// Running returns the number of lookups in flight.
func (s *Service) Running() int {
	return s.pool.Running()
}

// Close stops accepting work. Lookups already running finish on their own.
func (s *Service) Close() {
	s.pool.Release()
}
