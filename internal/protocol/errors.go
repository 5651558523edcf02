package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol matches every *ProtocolError via errors.Is.
	ErrProtocol = errors.New("protocol: malformed stream")

	// ErrUnknownCommand is wrapped when a packet carries a type outside the catalog.
	ErrUnknownCommand = errors.New("protocol: unknown command type")

	// ErrBadLength is wrapped when a header announces an empty or oversized body.
	ErrBadLength = errors.New("protocol: invalid payload length")

	// ErrTooLarge is returned when encoding a command whose body does not fit a packet.
	ErrTooLarge = errors.New("protocol: payload too large")
)

// ProtocolError reports bytes from a peer that cannot be a valid packet.
// The connection that produced it must be dropped.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProtocol) match any ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}
