// Package config provides YAML-based configuration for the elimination server.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// ServerConfig contains all configuration for the server.
type ServerConfig struct {
	Listen   ListenConfig   `yaml:"listen"`
	Game     GameConfig     `yaml:"game"`
	Accounts AccountsConfig `yaml:"accounts"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ListenConfig defines the TCP endpoint and event loop timing.
type ListenConfig struct {
	Address      string        `yaml:"address"`
	Port         int           `yaml:"port"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Addr returns host:port for net.Listen.
func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Address, strconv.Itoa(l.Port))
}

// GameConfig defines board generation and AI pacing.
type GameConfig struct {
	BoardWidth  int           `yaml:"board_width"`
	BoardHeight int           `yaml:"board_height"`
	Categories  int           `yaml:"categories"`
	AIInterval  time.Duration `yaml:"ai_interval"`
}

// AccountsConfig defines the credential lookup pool.
type AccountsConfig struct {
	Workers         int           `yaml:"workers"`
	Backlog         int           `yaml:"backlog"`
	RegisterLatency time.Duration `yaml:"register_latency"`
	LookupTimeout   time.Duration `yaml:"lookup_timeout"`
}

// LogConfig defines logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig defines the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Validate checks that the configuration can be used to start a server.
func (c ServerConfig) Validate() error {
	switch {
	case c.Listen.Port < 0 || c.Listen.Port > 65535:
		return fmt.Errorf("%w: listen.port %d out of range", ErrInvalid, c.Listen.Port)
	case c.Listen.PollInterval <= 0:
		return fmt.Errorf("%w: listen.poll_interval must be positive", ErrInvalid)
	case c.Game.BoardWidth <= 0 || c.Game.BoardHeight <= 0:
		return fmt.Errorf("%w: board size %dx%d", ErrInvalid, c.Game.BoardWidth, c.Game.BoardHeight)
	case c.Game.BoardWidth*c.Game.BoardHeight*2 > 8000:
		// Two hex digits per cell must fit in one GameStart packet.
		return fmt.Errorf("%w: board %dx%d too large for one packet", ErrInvalid, c.Game.BoardWidth, c.Game.BoardHeight)
	case c.Game.Categories < 1 || c.Game.Categories > 10:
		return fmt.Errorf("%w: game.categories %d not in 1..10", ErrInvalid, c.Game.Categories)
	case c.Game.AIInterval <= 0:
		return fmt.Errorf("%w: game.ai_interval must be positive", ErrInvalid)
	case c.Accounts.Workers <= 0:
		return fmt.Errorf("%w: accounts.workers must be positive", ErrInvalid)
	case c.Accounts.Backlog <= 0:
		return fmt.Errorf("%w: accounts.backlog must be positive", ErrInvalid)
	case c.Accounts.RegisterLatency < 0:
		return fmt.Errorf("%w: accounts.register_latency is negative", ErrInvalid)
	case c.Metrics.Enabled && c.Metrics.Address == "":
		return fmt.Errorf("%w: metrics.address is required when metrics are enabled", ErrInvalid)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}
