package quickfixconn

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/quickfixgo/quickfix"

	"github.com/bjaus/fixgate"
)

// SendFunc hands a message to the engine. quickfix.SendToTarget is the
// default.
type SendFunc func(m quickfix.Messagable, id quickfix.SessionID) error

// Conn is the fixgate.Connection of one engine session. It reports logged on
// between the engine's OnLogon and OnLogout callbacks.
type Conn struct {
	id       quickfix.SessionID
	send     SendFunc
	timeout  time.Duration
	loggedOn atomic.Bool
}

var _ fixgate.Connection = (*Conn)(nil)

func newConn(id quickfix.SessionID, send SendFunc, timeout time.Duration) *Conn {
	return &Conn{id: id, send: send, timeout: timeout}
}

// LoggedOn implements fixgate.Connection.
func (c *Conn) LoggedOn() bool { return c.loggedOn.Load() }

// Send converts the outbound message and queues it on the engine session. A
// message the engine cannot represent is reported as a *fixgate.RejectError
// so the session stays up.
func (c *Conn) Send(ctx context.Context, out *fixgate.Outbound) error {
	if !c.LoggedOn() {
		return fmt.Errorf("send to %s: engine session not logged on", SessionID(c.id))
	}
	msg, err := Convert(out.Message)
	if err != nil {
		return &fixgate.RejectError{Reason: err.Error()}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	errc := make(chan error, 1)
	go func() {
		errc <- c.send(msg, c.id)
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("send to %s: %w", SessionID(c.id), err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", SessionID(c.id), ctx.Err())
	}
}
