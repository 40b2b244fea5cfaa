// Package ipc carries commands and events between the controller and the
// renderer over one loopback TCP connection.
package ipc

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// DefaultAddr is where the renderer listens.
const DefaultAddr = "127.0.0.1:19847"

// writeTimeout bounds a single framed write so a wedged peer cannot block senders.
const writeTimeout = 5 * time.Second

// ErrNotConnected is returned by senders when no peer is attached; the message is dropped.
var ErrNotConnected = errors.New("ipc: not connected")

// Conn is one framed connection. Writes are serialized; Receive must only be
// called from a single goroutine.
type Conn struct {
	nc        net.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewConn(nc net.Conn) *Conn { return &Conn{nc: nc} }

// Send writes one frame.
func (c *Conn) Send(m proto.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return proto.WriteMessage(c.nc, m)
}

func (c *Conn) SendCommand(cmd proto.Command) error {
	m, err := proto.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.Send(m)
}

func (c *Conn) SendEvent(e proto.Event) error {
	m, err := proto.EncodeEvent(e)
	if err != nil {
		return err
	}
	return c.Send(m)
}

// Receive blocks for the next frame. ok is false when the peer went away.
func (c *Conn) Receive() (proto.Message, bool, error) {
	return proto.ReadMessage(c.nc)
}

// Close shuts the socket once; later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.nc.Close() })
	return c.closeErr
}

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// isExpectedClose reports errors produced by our own Close or an orderly peer shutdown.
func isExpectedClose(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
