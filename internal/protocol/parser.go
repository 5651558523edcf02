package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Parser reassembles packets from a byte stream that may deliver them in
// arbitrary fragments. It never reads past the end of the current packet, so
// bytes belonging to the next packet stay in the source.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	buf [BufferSize]byte
	n   int
}

// TryReceive reads what it needs from src and returns the next complete command.
// It returns (nil, nil) when the packet is still incomplete; the partial state
// is kept for the next call. A src that reports io.EOF simply has nothing more
// to offer right now. Any other read error is returned as is, and malformed
// input yields a *ProtocolError after which the Parser is reset.
func (p *Parser) TryReceive(src io.Reader) (Command, error) {
	if p.n < HeaderSize {
		if err := p.fill(src, HeaderSize); err != nil {
			return nil, err
		}
		if p.n < HeaderSize {
			return nil, nil
		}
	}

	t, length, err := p.header()
	if err != nil {
		p.Reset()
		return nil, err
	}

	total := HeaderSize + length
	if err := p.fill(src, total); err != nil {
		return nil, err
	}
	if p.n < total {
		return nil, nil
	}

	cmd, err := Decode(t, p.buf[HeaderSize:total])
	p.Reset()
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// Buffered returns how many bytes of the current packet have been read.
func (p *Parser) Buffered() int {
	return p.n
}

// Reset discards any partial packet.
func (p *Parser) Reset() {
	p.n = 0
}

func (p *Parser) header() (CommandType, int, error) {
	t := CommandType(binary.BigEndian.Uint32(p.buf[0:4]))
	if !t.Valid() {
		return 0, 0, &ProtocolError{Reason: fmt.Sprintf("type %d", uint32(t)), Err: ErrUnknownCommand}
	}
	length := binary.BigEndian.Uint32(p.buf[4:8])
	if length == 0 || length > MaxPayload {
		return 0, 0, &ProtocolError{Reason: fmt.Sprintf("%s length %d", t, length), Err: ErrBadLength}
	}
	return t, int(length), nil
}

// fill reads until the buffer holds want bytes or src runs dry.
func (p *Parser) fill(src io.Reader, want int) error {
	for p.n < want {
		n, err := src.Read(p.buf[p.n:want])
		p.n += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}
