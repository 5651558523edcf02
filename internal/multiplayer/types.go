// Package multiplayer holds the game-side state of the server: the readiness
// pool, pairing, and the rooms in which two boards are played out.
//
// Nothing in this package is safe for concurrent use. The server's event loop
// is its only caller; timers and other goroutines reach it through a Poster.
package multiplayer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/elimination/internal/protocol"
)

// ConnID identifies a connection. It is assigned by the server.
type ConnID uint64

// NoConn marks a board session that is played by the server's AI.
const NoConn ConnID = 0

// MatchID uniquely identifies a room.
type MatchID string

// NewMatchID returns a fresh random match identifier.
func NewMatchID() MatchID {
	return MatchID(uuid.NewString())
}

// PlayerState is a logged-in player's readiness outside of a room.
type PlayerState int

const (
	NotReady PlayerState = iota
	Waiting
	Playing
)

func (s PlayerState) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// SessionState tracks one side of a room. Over is terminal.
type SessionState int

const (
	SessionActive SessionState = iota
	SessionOver
)

// RoomState is the lifecycle of a room.
type RoomState int

const (
	RoomStarting RoomState = iota
	RoomInProgress
	RoomClosed
)

func (s RoomState) String() string {
	switch s {
	case RoomStarting:
		return "starting"
	case RoomInProgress:
		return "in_progress"
	case RoomClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// End reasons recorded with a match result.
const (
	EndCompleted  = "completed"
	EndDisconnect = "disconnect"
	EndShutdown   = "shutdown"
)

var (
	ErrNotLoggedIn   = errors.New("multiplayer: connection has not joined")
	ErrAlreadyJoined = errors.New("multiplayer: connection already joined")
	ErrNotInRoom     = errors.New("multiplayer: player is not in a room")
	ErrAlreadyInRoom = errors.New("multiplayer: player is already in a room")
)

// Sender delivers a command to a connection. Implementations must not call
// back into the Matchmaker; a failed connection is torn down later by the
// event loop.
type Sender interface {
	Send(id ConnID, cmd protocol.Command) error
}

// Poster schedules a closure on the event loop. The AI timer uses it so it
// never touches room state from its own goroutine.
type Poster interface {
	Post(fn func()) bool
}

// ResultSaver records finished rooms. Implemented by storage.Store.
type ResultSaver interface {
	SaveMatchResult(result MatchResult) error
}

// MatchResult is the outcome of a room.
type MatchResult struct {
	MatchID   MatchID
	PlayerA   string
	PlayerB   string // empty for the AI
	ScoreA    int
	ScoreB    int
	Winner    string // empty on a tie, when the AI wins, or when the round did not complete
	VsAI      bool
	EndReason string
	Duration  time.Duration
}

// Observer is notified about room lifecycle events. Used for metrics.
type Observer interface {
	RoomOpened(vsAI bool)
	RoomClosed(vsAI bool, reason string)
}
