package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the built-in configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen: ListenConfig{
			Address:      "0.0.0.0",
			Port:         20678,
			PollInterval: 10 * time.Millisecond,
		},
		Game: GameConfig{
			BoardWidth:  10,
			BoardHeight: 10,
			Categories:  5,
			AIInterval:  time.Second,
		},
		Accounts: AccountsConfig{
			Workers:         4,
			Backlog:         1024,
			RegisterLatency: 10 * time.Millisecond,
			LookupTimeout:   5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
		},
	}
}
