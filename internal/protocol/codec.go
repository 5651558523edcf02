package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// HeaderSize is the length of the type and length fields.
	HeaderSize = 8

	// BufferSize bounds a whole packet, header included.
	BufferSize = 8 * 1024

	// MaxPayload is the largest JSON body a packet may carry.
	MaxPayload = BufferSize - HeaderSize
)

// Encode returns the full packet for cmd.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil || !cmd.Type().Valid() {
		return nil, fmt.Errorf("protocol: cannot encode %T", cmd)
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("protocol: cannot marshal %s: %w", cmd.Type(), err)
	}
	if len(body) > MaxPayload {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, cmd.Type(), len(body))
	}

	pkt := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(pkt[0:4], uint32(cmd.Type()))
	binary.BigEndian.PutUint32(pkt[4:8], uint32(len(body)))
	copy(pkt[HeaderSize:], body)
	return pkt, nil
}

// WriteCommand encodes cmd and writes the packet to w in a single call.
func WriteCommand(w io.Writer, cmd Command) error {
	pkt, err := Encode(cmd)
	if err != nil {
		return err
	}
	if _, err := w.Write(pkt); err != nil {
		return fmt.Errorf("protocol: write %s: %w", cmd.Type(), err)
	}
	return nil
}

// Decode unmarshals a JSON body for the given command type.
func Decode(t CommandType, payload []byte) (Command, error) {
	var (
		cmd Command
		err error
	)
	switch t {
	case TypeLoginRequest:
		var c LoginRequest
		err = json.Unmarshal(payload, &c)
		cmd = c
	case TypeLoginResponse:
		var c LoginResponse
		err = json.Unmarshal(payload, &c)
		cmd = c
	case TypeGamePrepare:
		var c GamePrepare
		err = json.Unmarshal(payload, &c)
		cmd = c
	case TypeGameStart:
		var c GameStart
		err = json.Unmarshal(payload, &c)
		cmd = c
	case TypeGamePieceClick:
		var c GamePieceClick
		err = json.Unmarshal(payload, &c)
		cmd = c
	case TypeGameOver:
		var c GameOver
		err = json.Unmarshal(payload, &c)
		cmd = c
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("type %d", uint32(t)), Err: ErrUnknownCommand}
	}
	if err != nil {
		return nil, &ProtocolError{Reason: "bad " + t.String() + " payload", Err: err}
	}
	return cmd, nil
}
