package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"testing"
)

// chunkReader hands out at most `size` bytes per Read and reports io.EOF
// once its data runs out, like an inbox that is temporarily empty.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(len(p), r.size, len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func mustEncode(t *testing.T, cmd Command) []byte {
	t.Helper()
	pkt, err := Encode(cmd)
	if err != nil {
		t.Fatalf("Encode(%T) failed: %v", cmd, err)
	}
	return pkt
}

func header(typ, length uint32) []byte {
	h := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(h[0:4], typ)
	binary.BigEndian.PutUint32(h[4:8], length)
	return h
}

func TestParserRoundTrip(t *testing.T) {
	for _, want := range allCommands {
		t.Run(want.Type().String(), func(t *testing.T) {
			var p Parser
			got, err := p.TryReceive(bytes.NewReader(mustEncode(t, want)))
			if err != nil {
				t.Fatalf("TryReceive() failed: %v", err)
			}
			if got != want {
				t.Errorf("TryReceive() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestParserByteAtATime(t *testing.T) {
	pkt := mustEncode(t, allCommands[3])
	var p Parser
	var inbox bytes.Buffer

	for i, b := range pkt {
		inbox.WriteByte(b)
		cmd, err := p.TryReceive(&inbox)
		if err != nil {
			t.Fatalf("byte %d: TryReceive() failed: %v", i, err)
		}
		last := i == len(pkt)-1
		if cmd != nil && !last {
			t.Fatalf("byte %d: got a command before the packet was complete", i)
		}
		if last && cmd != allCommands[3] {
			t.Fatalf("TryReceive() = %+v, want %+v", cmd, allCommands[3])
		}
	}
	if p.Buffered() != 0 {
		t.Errorf("Buffered() = %d after a complete packet", p.Buffered())
	}
}

func TestParserArbitrarySplits(t *testing.T) {
	var stream []byte
	for _, cmd := range allCommands {
		stream = append(stream, mustEncode(t, cmd)...)
	}

	rng := rand.New(rand.NewSource(5))
	for trial := range 100 {
		var p Parser
		var inbox bytes.Buffer
		var got []Command

		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(min(len(rest), 64))
			inbox.Write(rest[:n])
			rest = rest[n:]
			for {
				cmd, err := p.TryReceive(&inbox)
				if err != nil {
					t.Fatalf("trial %d: TryReceive() failed: %v", trial, err)
				}
				if cmd == nil {
					break
				}
				got = append(got, cmd)
			}
		}

		if len(got) != len(allCommands) {
			t.Fatalf("trial %d: decoded %d commands, want %d", trial, len(got), len(allCommands))
		}
		for i := range got {
			if got[i] != allCommands[i] {
				t.Errorf("trial %d: command %d = %+v, want %+v", trial, i, got[i], allCommands[i])
			}
		}
	}
}

func TestParserDoesNotOverRead(t *testing.T) {
	first := mustEncode(t, allCommands[0])
	second := mustEncode(t, allCommands[5])
	src := bytes.NewReader(append(first, second...))

	var p Parser
	cmd, err := p.TryReceive(src)
	if err != nil || cmd != allCommands[0] {
		t.Fatalf("first TryReceive() = %+v, %v", cmd, err)
	}
	if src.Len() != len(second) {
		t.Fatalf("parser consumed %d bytes of the next packet", len(second)-src.Len())
	}
	cmd, err = p.TryReceive(src)
	if err != nil || cmd != allCommands[5] {
		t.Fatalf("second TryReceive() = %+v, %v", cmd, err)
	}
}

func TestParserSmallReads(t *testing.T) {
	var p Parser
	src := &chunkReader{data: mustEncode(t, allCommands[4]), size: 3}
	var cmd Command
	var err error
	for range 100 {
		cmd, err = p.TryReceive(src)
		if err != nil || cmd != nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("TryReceive() failed: %v", err)
	}
	if cmd != allCommands[4] {
		t.Errorf("TryReceive() = %+v, want %+v", cmd, allCommands[4])
	}
}

func TestParserEmptySource(t *testing.T) {
	var p Parser
	cmd, err := p.TryReceive(&bytes.Buffer{})
	if cmd != nil || err != nil {
		t.Errorf("TryReceive(empty) = %v, %v; want nil, nil", cmd, err)
	}
}

func TestParserRejectsBadHeaders(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"unknown type", header(6, 2), ErrUnknownCommand},
		{"huge type", header(0xffffffff, 2), ErrUnknownCommand},
		{"zero length", header(0, 0), ErrBadLength},
		{"length over buffer", header(0, MaxPayload+1), ErrBadLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			_, err := p.TryReceive(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("TryReceive() error = %v, want ErrProtocol", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TryReceive() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParserAcceptsMaxLength(t *testing.T) {
	// A header announcing exactly MaxPayload bytes is legal; the body is
	// still pending so nothing is returned yet.
	var p Parser
	cmd, err := p.TryReceive(bytes.NewReader(header(0, MaxPayload)))
	if err != nil || cmd != nil {
		t.Errorf("TryReceive() = %v, %v; want nil, nil", cmd, err)
	}
}

func TestParserMalformedBody(t *testing.T) {
	body := []byte(`{"Ready":tru}`)
	data := append(header(uint32(TypeGamePrepare), uint32(len(body))), body...)

	var p Parser
	_, err := p.TryReceive(bytes.NewReader(data))
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("TryReceive() error = %v, want ErrProtocol", err)
	}
	if p.Buffered() != 0 {
		t.Errorf("Buffered() = %d after an error, want 0", p.Buffered())
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestParserTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	var p Parser
	_, err := p.TryReceive(failingReader{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("TryReceive() error = %v, want %v", err, boom)
	}
	if errors.Is(err, ErrProtocol) {
		t.Error("transport error reported as a protocol error")
	}
}
