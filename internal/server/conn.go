package server

import (
	"bytes"
	"errors"
	"net"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/protocol"
)

const readChunk = 4096

type eventKind int

const (
	eventAccepted eventKind = iota
	eventData
	eventClosed
	eventListenFailed
)

// netEvent is what the acceptor and socket readers hand to the loop.
type netEvent struct {
	kind eventKind
	id   multiplayer.ConnID
	conn net.Conn
	data []byte
	err  error
}

// Conn is one client socket as seen by the loop. Bytes read by the socket's
// reader goroutine collect in inbox until the parser consumes them.
type Conn struct {
	id     multiplayer.ConnID
	conn   net.Conn
	logger *log.Logger

	parser protocol.Parser
	inbox  bytes.Buffer

	name      string // set once login succeeds
	loggingIn bool
	eof       bool
	readErr   error
	queued    bool
}

// LoggedIn reports whether the connection has an identity.
func (c *Conn) LoggedIn() bool {
	return c.name != ""
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)
	for {
		nc, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.emit(netEvent{kind: eventListenFailed, err: err})
			}
			return
		}

		id := multiplayer.ConnID(s.nextID.Add(1))
		if !s.emit(netEvent{kind: eventAccepted, id: id, conn: nc}) {
			nc.Close()
			return
		}
		s.wg.Add(1)
		go s.readLoop(id, nc)
	}
}

// readLoop copies socket bytes to the loop until the socket fails or closes.
func (s *Server) readLoop(id multiplayer.ConnID, nc net.Conn) {
	defer s.wg.Done()
	buf := make([]byte, readChunk)
	for {
		n, err := nc.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !s.emit(netEvent{kind: eventData, id: id, data: data}) {
				return
			}
		}
		if err != nil {
			s.emit(netEvent{kind: eventClosed, id: id, err: err})
			return
		}
	}
}

// emit delivers ev unless the server is shutting down.
func (s *Server) emit(ev netEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) register(id multiplayer.ConnID, nc net.Conn) {
	c := &Conn{
		id:     id,
		conn:   nc,
		logger: s.logger.With("conn", uint64(id), "remote", nc.RemoteAddr().String()),
	}
	s.conns[id] = c
	s.metrics.ConnOpened()
	c.logger.Info("connection accepted")
}

// dispose closes a connection and removes every trace of it. Calling it for
// an unknown id is a no-op.
func (s *Server) dispose(id multiplayer.ConnID, reason string) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	delete(s.conns, id)
	c.conn.Close()
	if c.LoggedIn() {
		s.mm.Leave(id)
	}
	s.metrics.ConnClosed()
	c.logger.Info("connection closed", "user", c.name, "reason", reason)
}
