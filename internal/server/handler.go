package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/elimination/internal/accounts"
	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/protocol"
)

// ErrUnknownConn is returned by Send for connections that are already gone.
var ErrUnknownConn = errors.New("server: unknown connection")

// dispatch routes one decoded command from c.
func (s *Server) dispatch(c *Conn, cmd protocol.Command) {
	s.metrics.Command(cmd.Type())

	if !c.LoggedIn() {
		req, ok := cmd.(protocol.LoginRequest)
		if !ok {
			c.logger.Error("command before login", "cmd", cmd.Type())
			s.dispose(c.id, "not logged in")
			return
		}
		if c.loggingIn {
			c.logger.Debug("login already pending, ignoring request")
			return
		}
		s.beginLogin(c, req)
		return
	}

	var err error
	switch v := cmd.(type) {
	case protocol.LoginRequest:
		c.logger.Warn("already logged in, ignoring request", "user", c.name)
	case protocol.GamePrepare:
		err = s.mm.Prepare(c.id, v.Ready, v.BattleAI)
	case protocol.GamePieceClick:
		err = s.mm.Click(c.id, v.X, v.Y)
	default:
		err = fmt.Errorf("unexpected %s from client", cmd.Type())
	}
	if err != nil {
		c.logger.Error("rejected command", "user", c.name, "cmd", cmd.Type(), "error", err)
		s.dispose(c.id, err.Error())
	}
}

func (s *Server) beginLogin(c *Conn, req protocol.LoginRequest) {
	c.loggingIn = true
	id, name := c.id, req.UserName
	err := s.auth.LoginAsync(req.UserName, req.Password, func(res accounts.Result) {
		s.queue.Post(func() { s.finishLogin(id, name, res) })
	})
	if err != nil {
		c.logger.Error("cannot start login", "user", name, "error", err)
		s.dispose(id, "login unavailable")
	}
}

// finishLogin runs on the loop once the credential lookup is done. The
// connection may have gone away in the meantime.
func (s *Server) finishLogin(id multiplayer.ConnID, name string, res accounts.Result) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	c.loggingIn = false
	s.metrics.Login(res.Code)

	if err := s.Send(id, protocol.LoginResponse{UserName: name, Code: res.Code}); err != nil {
		return
	}
	if !res.OK() {
		c.logger.Info("login failed", "user", name, "code", res.Code)
		s.dispose(id, "login failed")
		return
	}

	c.name = res.Identity.Name
	if err := s.mm.Join(id, c.name); err != nil {
		c.logger.Error("cannot join matchmaker", "user", c.name, "error", err)
		s.dispose(id, err.Error())
		return
	}
	c.logger.Info("logged in", "user", c.name, "code", res.Code)
}

// Send writes cmd to a connection. It is only called from the loop. A failed
// write schedules the connection's disposal on the work queue; the room being
// updated by the caller stays intact until the caller returns.
func (s *Server) Send(id multiplayer.ConnID, cmd protocol.Command) error {
	c, ok := s.conns[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownConn, id)
	}

	err := c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err == nil {
		err = protocol.WriteCommand(c.conn, cmd)
	}
	if err != nil {
		s.scheduleDispose(id, err)
		return err
	}
	return nil
}

func (s *Server) scheduleDispose(id multiplayer.ConnID, err error) {
	s.queue.Post(func() { s.dispose(id, "send failed: "+err.Error()) })
}
