package multiplayer

import (
	"io"
	"math/rand"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/log"

	"github.com/vovakirdan/elimination/internal/board"
	"github.com/vovakirdan/elimination/internal/protocol"
)

// Config holds the game parameters used for new rooms.
type Config struct {
	BoardWidth  int
	BoardHeight int
	Categories  int           // distinct piece categories on a fresh board
	AIInterval  time.Duration // delay between AI moves
}

// DefaultConfig returns the classic 10x10, five-category setup.
func DefaultConfig() Config {
	return Config{
		BoardWidth:  10,
		BoardHeight: 10,
		Categories:  5,
		AIInterval:  time.Second,
	}
}

// BoardFactory produces the layout for a new room.
type BoardFactory func() *board.Board

// Option configures a Matchmaker.
type Option func(*Matchmaker)

// WithClock replaces the wall clock, mainly so tests can drive the AI timer.
func WithClock(clk clock.Clock) Option {
	return func(m *Matchmaker) { m.clock = clk }
}

// WithRand seeds board generation.
func WithRand(rng *rand.Rand) Option {
	return func(m *Matchmaker) { m.rng = rng }
}

// WithBoardFactory overrides random board generation.
func WithBoardFactory(f BoardFactory) Option {
	return func(m *Matchmaker) { m.newBoard = f }
}

// WithResultSaver records every closed room.
func WithResultSaver(s ResultSaver) Option {
	return func(m *Matchmaker) { m.saver = s }
}

// WithObserver reports room lifecycle events.
func WithObserver(o Observer) Option {
	return func(m *Matchmaker) { m.observer = o }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(m *Matchmaker) { m.logger = l }
}

type player struct {
	id    ConnID
	name  string
	state PlayerState
	room  MatchID
}

// Matchmaker tracks logged-in players, pairs those who are ready and owns
// every room. It must only be used from the event loop goroutine.
type Matchmaker struct {
	cfg      Config
	sender   Sender
	poster   Poster
	clock    clock.Clock
	rng      *rand.Rand
	newBoard BoardFactory
	saver    ResultSaver
	observer Observer
	logger   *log.Logger

	players map[ConnID]*player
	pool    []ConnID // players outside rooms, in arrival order
	rooms   map[MatchID]*Room
}

// NewMatchmaker creates a matchmaker that sends commands through sender and
// schedules AI moves through poster.
func NewMatchmaker(cfg Config, sender Sender, poster Poster, opts ...Option) *Matchmaker {
	m := &Matchmaker{
		cfg:     cfg,
		sender:  sender,
		poster:  poster,
		players: make(map[ConnID]*player),
		rooms:   make(map[MatchID]*Room),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.newBoard == nil {
		m.newBoard = func() *board.Board {
			return board.Random(m.rng, m.cfg.BoardWidth, m.cfg.BoardHeight, m.cfg.Categories)
		}
	}
	return m
}

// Join registers a freshly logged-in connection as NotReady.
func (m *Matchmaker) Join(id ConnID, name string) error {
	if id == NoConn {
		return ErrNotLoggedIn
	}
	if _, ok := m.players[id]; ok {
		return ErrAlreadyJoined
	}
	m.players[id] = &player{id: id, name: name, state: NotReady}
	m.pool = append(m.pool, id)
	m.logger.Debug("player joined", "conn", id, "user", name)
	return nil
}

// Prepare applies a GamePrepare from id.
//
// Un-readying only changes state. Readying for the AI opens a room at once
// and never enters the waiting pool. Readying for a human pairs with the
// earliest other waiting player, or waits.
func (m *Matchmaker) Prepare(id ConnID, ready, battleAI bool) error {
	p, ok := m.players[id]
	if !ok {
		return ErrNotLoggedIn
	}
	if p.state == Playing {
		return ErrAlreadyInRoom
	}

	if !ready {
		p.state = NotReady
		return nil
	}
	p.state = Waiting

	if battleAI {
		m.removeFromPool(id)
		m.openRoom(p, nil)
		return nil
	}

	for _, otherID := range m.pool {
		if otherID == id {
			continue
		}
		other := m.players[otherID]
		if other.state != Waiting {
			continue
		}
		m.removeFromPool(id)
		m.removeFromPool(otherID)
		m.openRoom(p, other)
		return nil
	}
	return nil
}

// Click applies a GamePieceClick from id to its own board.
func (m *Matchmaker) Click(id ConnID, x, y int) error {
	p, ok := m.players[id]
	if !ok {
		return ErrNotLoggedIn
	}
	r, ok := m.rooms[p.room]
	if !ok {
		return ErrNotInRoom
	}
	side, _ := r.sideOf(id)
	m.applyClick(r, side, x, y)
	return nil
}

// Leave forgets a connection. If it was playing, the room is torn down and a
// human opponent wins by forfeit and returns to NotReady.
func (m *Matchmaker) Leave(id ConnID) {
	p, ok := m.players[id]
	if !ok {
		return
	}
	delete(m.players, id)
	m.removeFromPool(id)

	r, ok := m.rooms[p.room]
	if !ok {
		return
	}
	side, _ := r.sideOf(id)
	if opp := r.sides[1-side]; !opp.IsAI() {
		m.deliver([]envelope{{to: opp.Conn, cmd: protocol.GameOver{Winner: opp.Name, Loser: p.name}}})
	}
	m.closeRoom(r, EndDisconnect)
}

// Shutdown closes every room and stops all AI timers.
func (m *Matchmaker) Shutdown() {
	for _, r := range m.rooms {
		m.closeRoom(r, EndShutdown)
	}
}

// State returns the readiness of a connection.
func (m *Matchmaker) State(id ConnID) (PlayerState, bool) {
	p, ok := m.players[id]
	if !ok {
		return NotReady, false
	}
	return p.state, true
}

// RoomOf returns a snapshot of the room id is playing in.
func (m *Matchmaker) RoomOf(id ConnID) (Snapshot, bool) {
	p, ok := m.players[id]
	if !ok {
		return Snapshot{}, false
	}
	r, ok := m.rooms[p.room]
	if !ok {
		return Snapshot{}, false
	}
	return r.Snapshot(), true
}

// RoomCount returns the number of open rooms.
func (m *Matchmaker) RoomCount() int {
	return len(m.rooms)
}

// Waiting returns the connections currently in the pool with state Waiting,
// in arrival order.
func (m *Matchmaker) Waiting() []ConnID {
	var ids []ConnID
	for _, id := range m.pool {
		if m.players[id].state == Waiting {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Matchmaker) removeFromPool(id ConnID) {
	m.pool = slices.DeleteFunc(m.pool, func(other ConnID) bool { return other == id })
}

// openRoom pairs a with b, or with the AI when b is nil.
func (m *Matchmaker) openRoom(a, b *player) {
	pa := participant{conn: a.id, name: a.name}
	pb := participant{conn: NoConn}
	if b != nil {
		pb = participant{conn: b.id, name: b.name}
	}

	r := newRoom(NewMatchID(), m.newBoard(), pa, pb)
	m.rooms[r.id] = r
	for _, p := range []*player{a, b} {
		if p != nil {
			p.state = Playing
			p.room = r.id
		}
	}

	m.logger.Info("room opened", "match", r.id, "playerA", pa.name, "playerB", pb.name, "ai", b == nil)
	if m.observer != nil {
		m.observer.RoomOpened(b == nil)
	}

	m.deliver(r.start(m.clock.Now()))
	if r.HasAI() && !r.sides[sideB].Over() {
		m.startAI(r)
	}
	m.settle(r)
}

func (m *Matchmaker) applyClick(r *Room, side, x, y int) bool {
	out, ok := r.click(side, x, y)
	if !ok {
		return false
	}
	m.deliver(out)
	m.settle(r)
	return true
}

// settle stops the AI once it is out of moves and ends the round when both
// sides are over.
func (m *Matchmaker) settle(r *Room) {
	if r.HasAI() && r.sides[sideB].Over() && r.stopAI != nil {
		r.stopAI()
		r.stopAI = nil
	}
	if r.finished() {
		m.deliver(r.gameOver())
		m.closeRoom(r, EndCompleted)
	}
}

// startAI runs a ticker that posts AI moves to the event loop. The ticker
// goroutine only ever calls Post.
func (m *Matchmaker) startAI(r *Room) {
	ticker := m.clock.Ticker(m.cfg.AIInterval)
	done := make(chan struct{})
	id := r.id

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !m.poster.Post(func() { m.aiMove(id) }) {
					return
				}
			}
		}
	}()

	r.stopAI = func() { close(done) }
}

// aiMove plays one AI turn. The room may already be gone.
func (m *Matchmaker) aiMove(id MatchID) {
	r, ok := m.rooms[id]
	if !ok || r.state != RoomInProgress {
		return
	}
	ai := r.sides[sideB]
	if ai.Over() {
		m.settle(r)
		return
	}
	pos, found := ai.Board.FindAnyEliminable()
	if !found {
		ai.State = SessionOver
		m.settle(r)
		return
	}
	m.applyClick(r, sideB, pos.X, pos.Y)
}

func (m *Matchmaker) closeRoom(r *Room, reason string) {
	now := m.clock.Now()
	res := r.result(reason, now)
	r.close()
	delete(m.rooms, r.id)

	for _, id := range r.humans() {
		if p, ok := m.players[id]; ok {
			p.state = NotReady
			p.room = ""
			m.pool = append(m.pool, id)
		}
	}

	m.logger.Info("room closed", "match", r.id, "reason", reason,
		"scoreA", res.ScoreA, "scoreB", res.ScoreB, "winner", res.Winner)
	if m.observer != nil {
		m.observer.RoomClosed(r.HasAI(), reason)
	}
	if m.saver != nil {
		if err := m.saver.SaveMatchResult(res); err != nil {
			m.logger.Error("cannot save match result", "match", r.id, "error", err)
		}
	}
}

func (m *Matchmaker) deliver(out []envelope) {
	for _, e := range out {
		if err := m.sender.Send(e.to, e.cmd); err != nil {
			m.logger.Warn("send failed", "conn", e.to, "cmd", e.cmd.Type(), "error", err)
		}
	}
}
