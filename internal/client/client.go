// Package client speaks the game protocol from the player's side. It backs
// the bot command and the server's end-to-end tests.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/elimination/internal/protocol"
)

// ErrClosed is returned by Receive once the server has closed the connection.
var ErrClosed = errors.New("client: connection closed by server")

// Client is a connection to a game server. Receive may run concurrently with
// the send methods, but not with itself.
type Client struct {
	conn   net.Conn
	reader io.Reader
	parser protocol.Parser

	writeMu sync.Mutex
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, reader: eofReader{conn}}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes one command.
func (c *Client) Send(cmd protocol.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteCommand(c.conn, cmd)
}

// Login sends credentials and waits for the server's answer. The password is
// hashed the way the server expects.
func (c *Client) Login(ctx context.Context, name, password string) (protocol.LoginResponse, error) {
	req := protocol.LoginRequest{UserName: name, Password: protocol.HashPassword(password)}
	if err := c.Send(req); err != nil {
		return protocol.LoginResponse{}, err
	}
	for {
		cmd, err := c.Receive(ctx)
		if err != nil {
			return protocol.LoginResponse{}, err
		}
		if resp, ok := cmd.(protocol.LoginResponse); ok {
			return resp, nil
		}
	}
}

// Prepare tells the server whether the player is ready for a round.
func (c *Client) Prepare(ready, battleAI bool) error {
	return c.Send(protocol.GamePrepare{Ready: ready, BattleAI: battleAI})
}

// Click eliminates the region at (x, y) on the player's board.
func (c *Client) Click(x, y int) error {
	return c.Send(protocol.GamePieceClick{X: x, Y: y})
}

// Receive blocks until the next command arrives, ctx is done or the
// connection fails.
func (c *Client) Receive(ctx context.Context) (protocol.Command, error) {
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		cmd, err := c.parser.TryReceive(c.reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if cmd != nil {
			return cmd, nil
		}
	}
}

// eofReader turns the peer's EOF into ErrClosed. The parser reads io.EOF as
// "no data yet", which on a blocking socket would spin forever.
type eofReader struct {
	r io.Reader
}

func (e eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		err = ErrClosed
	}
	return n, err
}
