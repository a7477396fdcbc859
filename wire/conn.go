package wire

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bjaus/fixgate"
)

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Conn writes encoded frames to w. It reports logged on until a write fails
// or Close is called.
type Conn struct {
	mu       sync.Mutex
	w        io.Writer
	timeout  time.Duration
	loggedOn atomic.Bool
}

var _ fixgate.Connection = (*Conn)(nil)

// NewConn returns a logged on Conn. When w has a write deadline (a net.Conn)
// and timeout is positive, every write is bounded by it.
func NewConn(w io.Writer, timeout time.Duration) *Conn {
	c := &Conn{w: w, timeout: timeout}
	c.loggedOn.Store(true)
	return c
}

// LoggedOn implements fixgate.Connection.
func (c *Conn) LoggedOn() bool { return c.loggedOn.Load() }

// Send writes out.Raw. A failed write closes the connection.
func (c *Conn) Send(_ context.Context, out *fixgate.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.LoggedOn() {
		return fmt.Errorf("send %s: connection closed", out.Session)
	}
	if d, ok := c.w.(deadliner); ok && c.timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			c.close()
			return fmt.Errorf("send %s: %w", out.Session, err)
		}
	}
	if _, err := c.w.Write(out.Raw); err != nil {
		c.close()
		return fmt.Errorf("send %s: %w", out.Session, err)
	}
	return nil
}

// Close marks the connection down and closes w if it is an io.Closer.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Conn) close() error {
	if !c.loggedOn.Swap(false) {
		return nil
	}
	if cl, ok := c.w.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
