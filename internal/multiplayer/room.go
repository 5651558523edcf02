package multiplayer

import (
	"math"
	"time"

	"github.com/vovakirdan/elimination/internal/board"
	"github.com/vovakirdan/elimination/internal/protocol"
)

const (
	sideA = 0
	sideB = 1
)

// BoardSession is one player's copy of the puzzle within a room.
type BoardSession struct {
	Board *board.Board
	Conn  ConnID
	Name  string
	Score int
	State SessionState
}

// IsAI reports whether the server plays this side.
func (s *BoardSession) IsAI() bool {
	return s.Conn == NoConn
}

// Over reports whether this side has no moves left.
func (s *BoardSession) Over() bool {
	return s.State == SessionOver
}

// envelope is a command addressed to a human participant.
type envelope struct {
	to  ConnID
	cmd protocol.Command
}

// Room plays one round between two board sessions. Side A is always human;
// side B is human or the AI. Both sides start from clones of the same layout.
//
// Room methods are pure state transitions: they return the commands to send
// and leave delivery to the Matchmaker.
type Room struct {
	id        MatchID
	state     RoomState
	sides     [2]*BoardSession
	startedAt time.Time
	stopAI    func()
}

type participant struct {
	conn ConnID
	name string
}

func newRoom(id MatchID, layout *board.Board, a, b participant) *Room {
	r := &Room{id: id, state: RoomStarting}
	r.sides[sideA] = &BoardSession{Board: layout.Clone(), Conn: a.conn, Name: a.name}
	r.sides[sideB] = &BoardSession{Board: layout.Clone(), Conn: b.conn, Name: b.name}
	return r
}

// ID returns the match identifier.
func (r *Room) ID() MatchID { return r.id }

// State returns the lifecycle state.
func (r *Room) State() RoomState { return r.state }

// HasAI reports whether side B is played by the server.
func (r *Room) HasAI() bool { return r.sides[sideB].IsAI() }

// sideOf returns the side owned by conn.
func (r *Room) sideOf(conn ConnID) (int, bool) {
	if conn == NoConn {
		return 0, false
	}
	for i, s := range r.sides {
		if s.Conn == conn {
			return i, true
		}
	}
	return 0, false
}

// humans returns the connections of the human participants.
func (r *Room) humans() []ConnID {
	ids := make([]ConnID, 0, 2)
	for _, s := range r.sides {
		if !s.IsAI() {
			ids = append(ids, s.Conn)
		}
	}
	return ids
}

// start moves the room into play and returns the GameStart announcements.
// A side that cannot move at all is over from the outset.
func (r *Room) start(now time.Time) []envelope {
	r.state = RoomInProgress
	r.startedAt = now

	a, b := r.sides[sideA], r.sides[sideB]
	gs := protocol.GameStart{
		BoardWidth:  a.Board.W,
		BoardHeight: a.Board.H,
		Pieces:      a.Board.Serialize(),
		PlayerA:     a.Name,
		PlayerB:     b.Name,
	}
	for _, s := range r.sides {
		if _, ok := s.Board.FindAnyEliminable(); !ok {
			s.State = SessionOver
		}
	}

	out := make([]envelope, 0, 2)
	for _, id := range r.humans() {
		out = append(out, envelope{to: id, cmd: gs})
	}
	return out
}

// click eliminates the region at (x, y) on the given side's board.
// It reports whether anything was removed. Clicks on an over side, on an
// empty cell or on a region below the minimum size change nothing.
func (r *Room) click(side, x, y int) ([]envelope, bool) {
	me := r.sides[side]
	if r.state != RoomInProgress || me.Over() {
		return nil, false
	}
	region := me.Board.ConnectedRegion(x, y)
	if len(region) < board.MinRegion {
		return nil, false
	}

	me.Board.RemoveAndCollapse(region)
	gained := board.Score(len(region))
	if gained > math.MaxInt-me.Score {
		me.Score = math.MaxInt
	} else {
		me.Score += gained
	}

	var out []envelope
	if opp := r.sides[1-side]; !opp.IsAI() {
		out = append(out, envelope{to: opp.Conn, cmd: protocol.GamePieceClick{
			Player:     me.Name,
			X:          x,
			Y:          y,
			ThisScore:  gained,
			TotalScore: me.Score,
		}})
	}

	if _, ok := me.Board.FindAnyEliminable(); !ok {
		me.State = SessionOver
	}
	return out, true
}

// finished reports whether both sides are over.
func (r *Room) finished() bool {
	return r.sides[sideA].Over() && r.sides[sideB].Over()
}

// outcome compares scores. Both names are empty on a tie.
func (r *Room) outcome() (winner, loser string) {
	a, b := r.sides[sideA], r.sides[sideB]
	switch {
	case a.Score > b.Score:
		return a.Name, b.Name
	case b.Score > a.Score:
		return b.Name, a.Name
	default:
		return "", ""
	}
}

// gameOver returns the GameOver broadcast for a finished round.
func (r *Room) gameOver() []envelope {
	winner, loser := r.outcome()
	cmd := protocol.GameOver{Winner: winner, Loser: loser}
	var out []envelope
	for _, id := range r.humans() {
		out = append(out, envelope{to: id, cmd: cmd})
	}
	return out
}

// close stops the AI timer and marks the room closed. Safe to call twice.
func (r *Room) close() {
	if r.stopAI != nil {
		r.stopAI()
		r.stopAI = nil
	}
	r.state = RoomClosed
}

func (r *Room) result(reason string, now time.Time) MatchResult {
	a, b := r.sides[sideA], r.sides[sideB]
	res := MatchResult{
		MatchID:   r.id,
		PlayerA:   a.Name,
		PlayerB:   b.Name,
		ScoreA:    a.Score,
		ScoreB:    b.Score,
		VsAI:      b.IsAI(),
		EndReason: reason,
		Duration:  now.Sub(r.startedAt),
	}
	if reason == EndCompleted {
		res.Winner, _ = r.outcome()
	}
	return res
}

// Snapshot is a read-only view of a room, for logs and tests.
type Snapshot struct {
	ID      MatchID
	State   RoomState
	PlayerA string
	PlayerB string
	ScoreA  int
	ScoreB  int
	OverA   bool
	OverB   bool
	BoardA  *board.Board
	BoardB  *board.Board
}

// Snapshot copies the room's current state.
func (r *Room) Snapshot() Snapshot {
	a, b := r.sides[sideA], r.sides[sideB]
	return Snapshot{
		ID:      r.id,
		State:   r.state,
		PlayerA: a.Name,
		PlayerB: b.Name,
		ScoreA:  a.Score,
		ScoreB:  b.Score,
		OverA:   a.Over(),
		OverB:   b.Over(),
		BoardA:  a.Board.Clone(),
		BoardB:  b.Board.Clone(),
	}
}
