package server_test

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/elimination/internal/accounts"
	"github.com/vovakirdan/elimination/internal/board"
	"github.com/vovakirdan/elimination/internal/client"
	"github.com/vovakirdan/elimination/internal/metrics"
	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/protocol"
	"github.com/vovakirdan/elimination/internal/server"
	"github.com/vovakirdan/elimination/internal/storage"
)

const testTimeout = 10 * time.Second

type harness struct {
	addr  string
	store *storage.Store
}

func startServer(t *testing.T, opts ...server.Option) *harness {
	t.Helper()
	return startServerWith(t, func(*server.Config) {}, opts...)
}

func startServerWith(t *testing.T, configure func(*server.Config), opts ...server.Option) *harness {
	t.Helper()

	store, err := storage.Open()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	acfg := accounts.DefaultConfig()
	acfg.RegisterLatency = time.Millisecond
	auth, err := accounts.New(acfg, store, nil)
	require.NoError(t, err)
	t.Cleanup(auth.Close)

	cfg := server.DefaultConfig()
	cfg.PollInterval = 2 * time.Millisecond
	cfg.Game.AIInterval = 5 * time.Millisecond
	configure(&cfg)

	opts = append([]server.Option{
		server.WithLogger(log.New(testWriter{t})),
		server.WithResultSaver(store),
	}, opts...)
	srv := server.New(cfg, auth, opts...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(testTimeout):
			t.Error("server did not stop")
		}
	})

	return &harness{addr: ln.Addr().String(), store: store}
}

func (h *harness) dial(t *testing.T) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	c, err := client.Dial(ctx, h.addr)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (h *harness) login(t *testing.T, name string) *client.Client {
	t.Helper()
	c := h.dial(t)
	resp, err := c.Login(testCtx(t), name, "pw")
	require.NoError(t, err)
	require.Contains(t, []int{protocol.StatusOK, protocol.StatusCreated}, resp.Code)
	return c
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// receive returns the next command of type T, skipping others.
func receive[T protocol.Command](t *testing.T, c *client.Client) T {
	t.Helper()
	ctx := testCtx(t)
	for {
		cmd, err := c.Receive(ctx)
		require.NoError(t, err)
		if v, ok := cmd.(T); ok {
			return v
		}
	}
}

func requireClosed(t *testing.T, c *client.Client) {
	t.Helper()
	ctx := testCtx(t)
	for {
		_, err := c.Receive(ctx)
		if err != nil {
			require.NotErrorIs(t, err, context.DeadlineExceeded, "connection was not closed")
			return
		}
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestServerLogin(t *testing.T) {
	h := startServer(t)

	c := h.dial(t)
	resp, err := c.Login(testCtx(t), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, protocol.LoginResponse{UserName: "alice", Code: protocol.StatusCreated}, resp)

	again := h.dial(t)
	resp, err = again.Login(testCtx(t), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Code)

	wrong := h.dial(t)
	resp, err = wrong.Login(testCtx(t), "alice", "guess")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusUnauthorized, resp.Code)
	requireClosed(t, wrong)

	empty := h.dial(t)
	resp, err = empty.Login(testCtx(t), "", "pw")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBadRequest, resp.Code)
	requireClosed(t, empty)

	n, err := h.store.UserCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServerLoginSplitAcrossWrites(t *testing.T) {
	h := startServer(t)

	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	c := client.New(conn)
	defer c.Close()

	pkt, err := protocol.Encode(protocol.LoginRequest{UserName: "slow", Password: protocol.HashPassword("pw")})
	require.NoError(t, err)
	for i := range pkt {
		_, err := conn.Write(pkt[i : i+1])
		require.NoError(t, err)
		if i%7 == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	resp := receive[protocol.LoginResponse](t, c)
	assert.Equal(t, protocol.StatusCreated, resp.Code)
}

func TestServerPipelinedCommands(t *testing.T) {
	h := startServer(t)

	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	c := client.New(conn)
	defer c.Close()

	login, err := protocol.Encode(protocol.LoginRequest{UserName: "eager", Password: "x"})
	require.NoError(t, err)
	_, err = conn.Write(login)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusCreated, receive[protocol.LoginResponse](t, c).Code)

	// Two commands in one write are handled one per pass, in order.
	prepare, err := protocol.Encode(protocol.GamePrepare{Ready: true, BattleAI: true})
	require.NoError(t, err)
	_, err = conn.Write(append(prepare, prepare...))
	require.NoError(t, err)

	start := receive[protocol.GameStart](t, c)
	assert.Equal(t, "eager", start.PlayerA)
	// The second prepare arrived while playing, which closes the connection.
	requireClosed(t, c)
}

func TestServerPipelinedCommandsSkipPollWait(t *testing.T) {
	h := startServerWith(t, func(cfg *server.Config) {
		cfg.PollInterval = 2 * time.Second
		cfg.Game.AIInterval = time.Hour
	})

	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	c := client.New(conn)
	defer c.Close()

	login, err := protocol.Encode(protocol.LoginRequest{UserName: "quick", Password: "x"})
	require.NoError(t, err)
	_, err = conn.Write(login)
	require.NoError(t, err)
	require.Equal(t, protocol.StatusCreated, receive[protocol.LoginResponse](t, c).Code)

	prepare, err := protocol.Encode(protocol.GamePrepare{Ready: true, BattleAI: true})
	require.NoError(t, err)
	unready, err := protocol.Encode(protocol.GamePrepare{Ready: false})
	require.NoError(t, err)

	// Three commands in one write: the second prepare is rejected because the
	// player is already in a room. None of them may wait for the poll timer.
	start := time.Now()
	_, err = conn.Write(append(append(unready, prepare...), prepare...))
	require.NoError(t, err)

	receive[protocol.GameStart](t, c)
	requireClosed(t, c)
	assert.Less(t, time.Since(start), time.Second, "buffered commands waited for the poll interval")
}

func TestServerRejectsCommandBeforeLogin(t *testing.T) {
	h := startServer(t)
	c := h.dial(t)
	require.NoError(t, c.Prepare(true, true))
	requireClosed(t, c)
}

func TestServerRejectsBadHeader(t *testing.T) {
	tests := []struct {
		name   string
		typ    uint32
		length uint32
	}{
		{"unknown type", 99, 2},
		{"zero length", uint32(protocol.TypeLoginRequest), 0},
		{"oversized", uint32(protocol.TypeLoginRequest), protocol.BufferSize},
	}
	h := startServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := net.Dial("tcp", h.addr)
			require.NoError(t, err)
			c := client.New(conn)
			defer c.Close()

			hdr := make([]byte, protocol.HeaderSize)
			binary.BigEndian.PutUint32(hdr[0:4], tt.typ)
			binary.BigEndian.PutUint32(hdr[4:8], tt.length)
			_, err = conn.Write(hdr)
			require.NoError(t, err)
			requireClosed(t, c)
		})
	}
}

func TestServerAIMatch(t *testing.T) {
	m := metrics.New()
	h := startServer(t, server.WithMetrics(m))
	c := h.dial(t)

	var (
		mu    sync.Mutex
		first *board.Board
	)
	bot := client.NewBot(c, client.BotConfig{Name: "solo", Password: "pw", VsAI: true}, client.OnUpdate(func(st client.State) {
		mu.Lock()
		defer mu.Unlock()
		if first == nil {
			first = st.Board.Clone()
		}
	}))

	results, err := bot.Run(testCtx(t))
	require.NoError(t, err)
	require.Len(t, results, 1)

	mu.Lock()
	require.NotNil(t, first)
	assert.Equal(t, 10, first.W)
	assert.Equal(t, 10, first.H)
	mu.Unlock()

	res := results[0]
	assert.Equal(t, "", res.Opponent)
	switch {
	case res.Score > res.OpponentScore:
		assert.Equal(t, "solo", res.Winner)
		assert.Equal(t, "", res.Loser)
	case res.Score < res.OpponentScore:
		assert.Equal(t, "", res.Winner)
		assert.Equal(t, "solo", res.Loser)
	default:
		assert.True(t, res.Tie())
	}

	require.Eventually(t, func() bool {
		matches, err := h.store.PlayerMatches(context.Background(), "solo", 10)
		return err == nil && len(matches) == 1
	}, testTimeout, 5*time.Millisecond)
	matches, err := h.store.PlayerMatches(context.Background(), "solo", 10)
	require.NoError(t, err)
	assert.True(t, matches[0].VsAI)
	assert.Equal(t, multiplayer.EndCompleted, matches[0].EndReason)
	assert.Equal(t, res.Score, matches[0].ScoreA)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var closed float64
	for _, f := range families {
		if f.GetName() == "elimination_rooms_closed_total" {
			for _, metric := range f.GetMetric() {
				closed += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, closed)
}

func TestServerHumanMatch(t *testing.T) {
	h := startServer(t)
	alice := h.dial(t)
	bob := h.dial(t)

	type outcome struct {
		results []client.RoundResult
		err     error
	}
	play := func(c *client.Client, name string, out chan<- outcome) {
		bot := client.NewBot(c, client.BotConfig{Name: name, Password: "pw", Rounds: 2})
		res, err := bot.Run(testCtx(t))
		out <- outcome{res, err}
	}

	outA, outB := make(chan outcome, 1), make(chan outcome, 1)
	go play(alice, "alice", outA)
	go play(bob, "bob", outB)
	a, b := <-outA, <-outB
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	require.Len(t, a.results, 2)
	require.Len(t, b.results, 2)

	// Identical boards and an identical strategy tie every round.
	for i := range 2 {
		assert.Equal(t, "bob", a.results[i].Opponent)
		assert.Equal(t, "alice", b.results[i].Opponent)
		assert.Equal(t, a.results[i].Score, b.results[i].Score)
		assert.Equal(t, a.results[i].Score, a.results[i].OpponentScore)
		assert.True(t, a.results[i].Tie())
		assert.True(t, b.results[i].Tie())
	}
}

func TestServerDisconnectMidRound(t *testing.T) {
	h := startServer(t)
	alice := h.login(t, "alice")
	bob := h.login(t, "bob")

	require.NoError(t, alice.Prepare(true, false))
	require.NoError(t, bob.Prepare(true, false))
	receive[protocol.GameStart](t, alice)
	receive[protocol.GameStart](t, bob)

	require.NoError(t, bob.Close())

	over := receive[protocol.GameOver](t, alice)
	assert.Equal(t, protocol.GameOver{Winner: "alice", Loser: "bob"}, over)

	// Alice is back to NotReady and can start a new round.
	require.NoError(t, alice.Prepare(true, true))
	start := receive[protocol.GameStart](t, alice)
	assert.Equal(t, "alice", start.PlayerA)
	assert.Equal(t, "", start.PlayerB)
}

func TestServerStops(t *testing.T) {
	store, err := storage.Open()
	require.NoError(t, err)
	defer store.Close()
	auth, err := accounts.New(accounts.DefaultConfig(), store, nil)
	require.NoError(t, err)
	defer auth.Close()

	srv := server.New(server.DefaultConfig(), auth)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Serve() did not return after cancel")
	}

	// The listener is closed with the server.
	_, err = net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	assert.Error(t, err)
	var opErr *net.OpError
	assert.True(t, errors.As(err, &opErr))
}
