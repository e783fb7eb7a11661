package tcp

import (
	"net"
	"time"
)

// Client is the transport the session loop talks to. Read blocks until data
// arrives, the read timeout elapses or the peer disconnects. Unread hands
// bytes back, so the next Read returns them first: the parser's leftover
// after one request becomes the starting buffer of the next.
type Client interface {
	Read() ([]byte, error)
	Unread([]byte)
	Write([]byte) error
	Remote() net.Addr
	Encrypted() bool
	SetReadTimeout(timeout time.Duration)
	Close() error
}

type client struct {
	conn      net.Conn
	buff      []byte
	pending   []byte
	timeout   time.Duration
	encrypted bool
}

func NewClient(conn net.Conn, encrypted bool, buff []byte) Client {
	return &client{
		conn:      conn,
		buff:      buff,
		encrypted: encrypted,
	}
}

func (c *client) Read() ([]byte, error) {
	if len(c.pending) > 0 {
		pending := c.pending
		c.pending = nil

		return pending, nil
	}

	deadline := time.Time{}
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)

	return c.buff[:n], err
}

func (c *client) Unread(b []byte) {
	c.pending = b
}

func (c *client) Write(b []byte) error {
	_, err := c.conn.Write(b)

	return err
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Encrypted() bool {
	return c.encrypted
}

// SetReadTimeout arms the next Read with the given budget. Non-positive
// disables the deadline.
func (c *client) SetReadTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *client) Close() error {
	return c.conn.Close()
}
