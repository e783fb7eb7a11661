// Package dummy provides in-memory tcp.Client implementations for tests.
package dummy

import (
	"io"
	"net"
	"time"
)

// Client serves the given chunks one Read at a time, collects everything
// written into it and then reports a configurable terminal error, io.EOF by
// default. It mimics a peer that sent its data and went silent.
type Client struct {
	pending   []byte
	chunks    [][]byte
	pointer   int
	finalErr  error
	written   []byte
	remote    net.Addr
	encrypted bool
	closed    bool
}

func NewClient(chunks ...[]byte) *Client {
	return &Client{
		chunks:   chunks,
		finalErr: io.EOF,
		remote: &net.TCPAddr{
			IP:   net.IPv4(127, 0, 0, 1),
			Port: 41830,
		},
	}
}

// FinishWith replaces io.EOF as the error returned once all chunks are
// served. Handy for simulating read timeouts.
func (c *Client) FinishWith(err error) *Client {
	c.finalErr = err
	return c
}

func (c *Client) SetRemote(addr net.Addr) *Client {
	c.remote = addr
	return c
}

func (c *Client) MarkEncrypted() *Client {
	c.encrypted = true
	return c
}

func (c *Client) Read() ([]byte, error) {
	if c.closed {
		return nil, io.EOF
	}

	if len(c.pending) > 0 {
		pending := c.pending
		c.pending = nil

		return pending, nil
	}

	if c.pointer >= len(c.chunks) {
		return nil, c.finalErr
	}

	chunk := c.chunks[c.pointer]
	c.pointer++

	return chunk, nil
}

func (c *Client) Unread(b []byte) {
	c.pending = b
}

func (c *Client) Write(b []byte) error {
	c.written = append(c.written, b...)
	return nil
}

// Written returns everything the server has sent so far.
func (c *Client) Written() []byte {
	return c.written
}

func (c *Client) Remote() net.Addr {
	return c.remote
}

func (c *Client) Encrypted() bool {
	return c.encrypted
}

func (c *Client) SetReadTimeout(time.Duration) {}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

func (c *Client) Closed() bool {
	return c.closed
}
