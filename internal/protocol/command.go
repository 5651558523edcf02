// Package protocol defines the command catalog exchanged between game clients
// and the server, and the length-prefixed framing that carries it over TCP.
//
// Every packet is an 8-byte header followed by a UTF-8 JSON body:
//
//	+----------------+------------------+---------------------+
//	| type (4B, BE)  | length (4B, BE)  | JSON (length bytes) |
//	+----------------+------------------+---------------------+
//
// The type is the command's position in the catalog below and must never be
// renumbered: deployed clients rely on it.
package protocol

import "fmt"

// CommandType is the wire tag of a command.
type CommandType uint32

const (
	TypeLoginRequest CommandType = iota
	TypeLoginResponse
	TypeGamePrepare
	TypeGameStart
	TypeGamePieceClick
	TypeGameOver

	typeCount
)

// String returns the command name for the tag.
func (t CommandType) String() string {
	switch t {
	case TypeLoginRequest:
		return "LoginRequest"
	case TypeLoginResponse:
		return "LoginResponse"
	case TypeGamePrepare:
		return "GamePrepare"
	case TypeGameStart:
		return "GameStart"
	case TypeGamePieceClick:
		return "GamePieceClick"
	case TypeGameOver:
		return "GameOver"
	default:
		return fmt.Sprintf("CommandType(%d)", uint32(t))
	}
}

// Valid reports whether t belongs to the catalog.
func (t CommandType) Valid() bool {
	return t < typeCount
}

// Command is any message in the catalog.
type Command interface {
	Type() CommandType
}

// Login status codes carried by LoginResponse.Code.
const (
	StatusOK           = 200 // existing user, password matched
	StatusCreated      = 201 // new user registered
	StatusBadRequest   = 400
	StatusUnauthorized = 401
)

// LoginRequest is the first command a client sends.
// Password is the hex MD5 digest of the user's password, see HashPassword.
type LoginRequest struct {
	UserName string `json:"UserName"`
	Password string `json:"Password"`
}

// LoginResponse answers a LoginRequest with one of the Status codes.
type LoginResponse struct {
	UserName string `json:"UserName"`
	Code     int    `json:"Code"`
}

// GamePrepare toggles the sender's readiness. BattleAI asks for a match
// against the server instead of another player.
type GamePrepare struct {
	Ready    bool `json:"Ready"`
	BattleAI bool `json:"BattleAI"`
}

// GameStart announces a new round. Pieces is the board encoded by board.Serialize.
// PlayerB is empty when the opponent is the AI.
type GameStart struct {
	BoardWidth  int    `json:"BoardWidth"`
	BoardHeight int    `json:"BoardHeight"`
	Pieces      string `json:"Pieces"`
	PlayerA     string `json:"PlayerA"`
	PlayerB     string `json:"PlayerB"`
}

// GamePieceClick is sent by a client to eliminate the region at (X, Y), and by
// the server to tell a player what the opponent just did. Scores are only
// meaningful in the server's copy.
type GamePieceClick struct {
	Player     string `json:"Player"`
	X          int    `json:"X"`
	Y          int    `json:"Y"`
	ThisScore  int    `json:"ThisScore"`
	TotalScore int    `json:"TotalScore"`
}

// GameOver ends a round. Both names are empty on a tie.
type GameOver struct {
	Winner string `json:"Winner"`
	Loser  string `json:"Loser"`
}

func (LoginRequest) Type() CommandType   { return TypeLoginRequest }
func (LoginResponse) Type() CommandType  { return TypeLoginResponse }
func (GamePrepare) Type() CommandType    { return TypeGamePrepare }
func (GameStart) Type() CommandType      { return TypeGameStart }
func (GamePieceClick) Type() CommandType { return TypeGamePieceClick }
func (GameOver) Type() CommandType       { return TypeGameOver }
