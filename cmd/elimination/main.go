// elimination is a two-player "eliminate connected pieces" game server.
//
// Usage:
//
//	elimination serve        - Start the game server
//	elimination bot          - Connect a scripted player to a server
//	elimination version      - Print the version
//
// Global flags:
//
//	--log-level <level>  - debug, info, warn or error (default: from config, else info)
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "elimination",
	Short: "Elimination - a two-player connected-pieces game server",
	Long: `Elimination pairs players over TCP and gives each an identical board of
colored pieces. Clicking a group of three or more connected pieces of the
same color removes it and scores points; the pieces above fall down to fill
the gap. When neither player can move, the higher score wins.

Available commands:
  serve    - Start the game server
  bot      - Connect a scripted player
  version  - Print the version

Examples:
  elimination serve
  elimination serve -p 3000 --metrics 127.0.0.1:9090
  elimination bot --ai --show`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the root logger. An explicit --log-level wins over level.
func newLogger(prefix, level string) (*log.Logger, error) {
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	if level == "" {
		return logger, nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)
	return logger, nil
}
