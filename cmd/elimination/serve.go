package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/elimination/internal/accounts"
	"github.com/vovakirdan/elimination/internal/config"
	"github.com/vovakirdan/elimination/internal/metrics"
	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/server"
	"github.com/vovakirdan/elimination/internal/storage"
)

var (
	flagAddress     string
	flagPort        int
	flagConfigPath  string
	flagMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the game server",
	Long: `Start the TCP game server.

Accounts and match history are kept in memory and are lost on exit. A user
is registered the first time they log in.

Configuration is read from --config, ~/.elimination/server.yaml or
./configs/server.yaml, falling back to built-in defaults. Flags override
the file.

Examples:
  elimination serve                          # Listen on 0.0.0.0:20678
  elimination serve -a 127.0.0.1 -p 3000     # Listen on a specific address
  elimination serve --config ./server.yaml   # Use a specific config file
  elimination serve --metrics :9090          # Expose Prometheus metrics`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagAddress, "address", "a", "0.0.0.0", "Address to listen on")
	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 20678, "Port to listen on")
	serveCmd.Flags().StringVar(&flagConfigPath, "config", "", "Path to config file")
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
}

func runServe(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger("elimination", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := serve(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func applyServeFlags(cmd *cobra.Command, cfg *config.ServerConfig) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Listen.Address = flagAddress
	}
	if flags.Changed("port") {
		cfg.Listen.Port = flagPort
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled = flagMetricsAddr != ""
		cfg.Metrics.Address = flagMetricsAddr
	}
}

func serve(cfg config.ServerConfig, logger *log.Logger) error {
	store, err := storage.Open()
	if err != nil {
		return err
	}
	defer store.Close()

	auth, err := accounts.New(accounts.Config{
		Workers:         cfg.Accounts.Workers,
		Backlog:         cfg.Accounts.Backlog,
		RegisterLatency: cfg.Accounts.RegisterLatency,
		Timeout:         cfg.Accounts.LookupTimeout,
	}, store, logger.WithPrefix("accounts"))
	if err != nil {
		return err
	}
	defer auth.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	srv := server.New(server.Config{
		Addr:         cfg.Listen.Addr(),
		PollInterval: cfg.Listen.PollInterval,
		Game: multiplayer.Config{
			BoardWidth:  cfg.Game.BoardWidth,
			BoardHeight: cfg.Game.BoardHeight,
			Categories:  cfg.Game.Categories,
			AIInterval:  cfg.Game.AIInterval,
		},
	}, auth,
		server.WithLogger(logger),
		server.WithMetrics(m),
		server.WithResultSaver(store),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if m != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		httpSrv := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		logger.Info("serving metrics", "address", cfg.Metrics.Address)

		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
