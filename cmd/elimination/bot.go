package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/elimination/internal/client"
)

var (
	flagServerAddr string
	flagBotName    string
	flagBotPass    string
	flagBotAI      bool
	flagBotDelay   time.Duration
	flagBotRounds  int
	flagBotShow    bool
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Connect a scripted player to a server",
	Long: `Log in to a game server and play automatically.

The bot readies up, keeps a copy of its board and always removes the first
group it finds, scanning columns left to right and each column top down.

Examples:
  elimination bot --ai                       # Play one round against the server AI
  elimination bot --name alice --rounds 3    # Wait for a human opponent, three rounds
  elimination bot --ai --show --delay 500ms  # Watch the board while playing`,
	Args: cobra.NoArgs,
	Run:  runBot,
}

func init() {
	botCmd.Flags().StringVar(&flagServerAddr, "server", "127.0.0.1:20678", "Server address (host:port)")
	botCmd.Flags().StringVar(&flagBotName, "name", "", "User name (random if empty)")
	botCmd.Flags().StringVar(&flagBotPass, "password", "bot", "Password")
	botCmd.Flags().BoolVar(&flagBotAI, "ai", false, "Play against the server AI")
	botCmd.Flags().DurationVar(&flagBotDelay, "delay", 200*time.Millisecond, "Pause before each click")
	botCmd.Flags().IntVar(&flagBotRounds, "rounds", 1, "Rounds to play")
	botCmd.Flags().BoolVar(&flagBotShow, "show", false, "Render the board after every change")
}

func runBot(_ *cobra.Command, _ []string) {
	logger, err := newLogger("bot", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	name := flagBotName
	if name == "" {
		name = "bot-" + uuid.NewString()[:8]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, flagServerAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	opts := []client.BotOption{client.WithBotLogger(logger)}
	if flagBotShow {
		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		opts = append(opts, client.OnUpdate(func(st client.State) {
			if interactive {
				fmt.Print("\033[H\033[2J")
			}
			fmt.Println(renderState(name, st))
		}))
	}

	bot := client.NewBot(c, client.BotConfig{
		Name:     name,
		Password: flagBotPass,
		VsAI:     flagBotAI,
		Delay:    flagBotDelay,
		Rounds:   flagBotRounds,
	}, opts...)

	results, err := bot.Run(ctx)
	for i, r := range results {
		fmt.Println(renderResult(i+1, name, r))
	}
	if err != nil {
		logger.Error("bot stopped", "error", err)
		c.Close()
		os.Exit(1)
	}
}
