package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/elimination/internal/board"
	"github.com/vovakirdan/elimination/internal/protocol"
)

// BotConfig controls an automated player.
type BotConfig struct {
	Name     string
	Password string
	VsAI     bool          // ask for the server's AI instead of another player
	Delay    time.Duration // pause before each click
	Rounds   int
}

// State is the bot's view of the round in progress.
type State struct {
	Board         *board.Board
	Opponent      string
	Score         int
	OpponentScore int
	Clicks        int
}

// RoundResult summarises one finished round.
type RoundResult struct {
	Opponent      string
	Score         int
	OpponentScore int
	Winner        string
	Loser         string
}

// Tie reports whether the round ended level.
func (r RoundResult) Tie() bool {
	return r.Winner == "" && r.Loser == ""
}

// Bot plays rounds by always clicking the first removable region it finds.
// It keeps its own copy of the board and applies its clicks locally, since
// the server only reports moves to the opponent.
type Bot struct {
	client   *Client
	cfg      BotConfig
	logger   *log.Logger
	onUpdate func(State)
}

// BotOption configures a Bot.
type BotOption func(*Bot)

// WithBotLogger sets the logger. The default discards output.
func WithBotLogger(l *log.Logger) BotOption {
	return func(b *Bot) { b.logger = l }
}

// OnUpdate is called with the bot's state after every change.
func OnUpdate(fn func(State)) BotOption {
	return func(b *Bot) { b.onUpdate = fn }
}

// NewBot creates a bot playing over c.
func NewBot(c *Client, cfg BotConfig, opts ...BotOption) *Bot {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}
	b := &Bot{client: c, cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard)
	}
	return b
}

type inbound struct {
	cmd protocol.Command
	err error
}

// Run logs in and plays the configured number of rounds. The caller closes
// the client afterwards.
func (b *Bot) Run(ctx context.Context) ([]RoundResult, error) {
	resp, err := b.client.Login(ctx, b.cfg.Name, b.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("client: login: %w", err)
	}
	if resp.Code != protocol.StatusOK && resp.Code != protocol.StatusCreated {
		return nil, fmt.Errorf("client: login rejected with code %d", resp.Code)
	}
	b.logger.Info("logged in", "user", b.cfg.Name, "code", resp.Code)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	inbox := make(chan inbound)
	go func() {
		for {
			cmd, err := b.client.Receive(ctx)
			select {
			case inbox <- inbound{cmd, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var results []RoundResult
	for range b.cfg.Rounds {
		res, err := b.playRound(ctx, inbox)
		if err != nil {
			return results, err
		}
		b.logger.Info("round over", "score", res.Score, "opponent", res.Opponent,
			"opponent_score", res.OpponentScore, "winner", res.Winner)
		results = append(results, res)
	}
	return results, nil
}

func (b *Bot) playRound(ctx context.Context, inbox <-chan inbound) (RoundResult, error) {
	if err := b.client.Prepare(true, b.cfg.VsAI); err != nil {
		return RoundResult{}, err
	}

	var st State
	started := false
	for !started {
		msg, err := next(ctx, inbox)
		if err != nil {
			return RoundResult{}, err
		}
		start, ok := msg.(protocol.GameStart)
		if !ok {
			continue
		}
		bd, err := board.Parse(start.Pieces, start.BoardWidth, start.BoardHeight)
		if err != nil {
			return RoundResult{}, fmt.Errorf("client: bad board in GameStart: %w", err)
		}
		st = State{Board: bd, Opponent: opponentOf(start, b.cfg.Name)}
		started = true
	}
	b.notify(st)

	timer := time.NewTimer(b.cfg.Delay)
	defer timer.Stop()
	stuck := false

	for {
		var tick <-chan time.Time
		if !stuck {
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			return RoundResult{}, ctx.Err()

		case in := <-inbox:
			if in.err != nil {
				return RoundResult{}, in.err
			}
			switch v := in.cmd.(type) {
			case protocol.GamePieceClick:
				st.OpponentScore = v.TotalScore
				b.notify(st)
			case protocol.GameOver:
				return RoundResult{
					Opponent:      st.Opponent,
					Score:         st.Score,
					OpponentScore: st.OpponentScore,
					Winner:        v.Winner,
					Loser:         v.Loser,
				}, nil
			}

		case <-tick:
			pos, ok := st.Board.FindAnyEliminable()
			if !ok {
				stuck = true
				continue
			}
			if err := b.client.Click(pos.X, pos.Y); err != nil {
				return RoundResult{}, err
			}
			region := st.Board.ConnectedRegion(pos.X, pos.Y)
			st.Board.RemoveAndCollapse(region)
			st.Score += board.Score(len(region))
			st.Clicks++
			b.notify(st)
			timer.Reset(b.cfg.Delay)
		}
	}
}

func (b *Bot) notify(st State) {
	if b.onUpdate != nil {
		b.onUpdate(st)
	}
}

func next(ctx context.Context, inbox <-chan inbound) (protocol.Command, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case in := <-inbox:
		if in.err != nil {
			if errors.Is(in.err, ErrClosed) {
				return nil, fmt.Errorf("client: server closed the connection: %w", in.err)
			}
			return nil, in.err
		}
		return in.cmd, nil
	}
}

func opponentOf(start protocol.GameStart, self string) string {
	if start.PlayerA == self {
		return start.PlayerB
	}
	return start.PlayerA
}
