// Package quickfixconn runs fixgate sessions on the quickfixgo engine.
//
// The Application mirrors engine session events into a fixgate.Router:
//
//	OnCreate          Register with a new Conn
//	inbound Logon     BeginLogon
//	outbound Logon    SetNextSeqNum to the seq after the Logon
//	OnLogon           Activate
//	outbound Logout   BeginLogout
//	OnLogout          Disconnect
//	inbound messages  Received
//
// Each Conn converts the router's stamped message into a quickfix.Message and
// queues it with quickfix.SendToTarget. The engine owns MsgSeqNum and
// SendingTime on the wire and persists messages in its store.
package quickfixconn

import (
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"github.com/bjaus/fixgate"
)

const (
	msgTypeReject         = "3"
	msgTypeLogout         = "5"
	msgTypeLogon          = "A"
	msgTypeBusinessReject = "j"
)

// Option configures an Application.
type Option func(*Application)

// WithSendTimeout bounds every Conn.Send. Zero means no bound.
func WithSendTimeout(d time.Duration) Option {
	return func(a *Application) {
		a.timeout = d
	}
}

// WithSender replaces quickfix.SendToTarget.
func WithSender(fn SendFunc) Option {
	return func(a *Application) {
		a.send = fn
	}
}

// Application implements quickfix.Application on top of a fixgate.Router.
type Application struct {
	router  *fixgate.Router
	logger  *zap.Logger
	send    SendFunc
	timeout time.Duration

	mu    sync.Mutex
	conns map[quickfix.SessionID]*Conn
}

var _ quickfix.Application = (*Application)(nil)

// NewApplication returns an Application that registers engine sessions with
// router.
func NewApplication(router *fixgate.Router, logger *zap.Logger, opts ...Option) *Application {
	a := &Application{
		router: router,
		logger: logger,
		send:   quickfix.SendToTarget,
		conns:  make(map[quickfix.SessionID]*Conn),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Conn returns the connection created for an engine session.
func (a *Application) Conn(id quickfix.SessionID) (*Conn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[id]
	return c, ok
}

// SessionID maps an engine session id to a router session id. Sub and
// location ids are not part of the router key.
func SessionID(id quickfix.SessionID) fixgate.SessionID {
	return fixgate.SessionID{
		BeginString:  id.BeginString,
		SenderCompID: id.SenderCompID,
		TargetCompID: id.TargetCompID,
	}
}

// OnCreate implements quickfix.Application.
func (a *Application) OnCreate(id quickfix.SessionID) {
	conn := newConn(id, a.send, a.timeout)
	a.mu.Lock()
	a.conns[id] = conn
	a.mu.Unlock()

	if err := a.router.Register(SessionID(id), conn); err != nil {
		a.logger.Error("register engine session", zap.Stringer("session", SessionID(id)), zap.Error(err))
	}
}

// OnLogon implements quickfix.Application.
func (a *Application) OnLogon(id quickfix.SessionID) {
	if c, ok := a.Conn(id); ok {
		c.loggedOn.Store(true)
	}
	a.check(id, "activate", a.router.Activate(SessionID(id)))
}

// OnLogout implements quickfix.Application.
func (a *Application) OnLogout(id quickfix.SessionID) {
	if c, ok := a.Conn(id); ok {
		c.loggedOn.Store(false)
	}
	a.check(id, "disconnect", a.router.Disconnect(SessionID(id)))
}

// ToAdmin implements quickfix.Application. The engine has already stamped
// MsgSeqNum when it calls ToAdmin.
func (a *Application) ToAdmin(msg *quickfix.Message, id quickfix.SessionID) {
	sid := SessionID(id)
	switch msgType(msg) {
	case msgTypeLogon:
		seq, err := msg.Header.GetInt(tagOf(fixgate.TagMsgSeqNum))
		if err != nil {
			a.logger.Warn("logon without seq num", zap.Stringer("session", SessionID(id)), zap.Error(err))
			return
		}
		a.check(id, "sync seq num", a.router.SetNextSeqNum(sid, seq+1))
	case msgTypeLogout:
		// A Logout answering a rejected Logon goes out while LoggingOn.
		if info, ok := a.router.Session(sid); ok && info.State == fixgate.Active.String() {
			a.check(id, "begin logout", a.router.BeginLogout(sid))
		}
	}
}

// ToApp implements quickfix.Application.
func (a *Application) ToApp(_ *quickfix.Message, _ quickfix.SessionID) error {
	return nil
}

// FromAdmin implements quickfix.Application.
func (a *Application) FromAdmin(msg *quickfix.Message, id quickfix.SessionID) quickfix.MessageRejectError {
	a.received(msg, id)
	switch msgType(msg) {
	case msgTypeLogon:
		a.check(id, "begin logon", a.router.BeginLogon(SessionID(id)))
	case msgTypeReject:
		a.logReject(msg, id)
	}
	return nil
}

// FromApp implements quickfix.Application. Application messages from the
// counterparty are not processed beyond sequence tracking.
func (a *Application) FromApp(msg *quickfix.Message, id quickfix.SessionID) quickfix.MessageRejectError {
	a.received(msg, id)
	if msgType(msg) == msgTypeBusinessReject {
		a.logReject(msg, id)
	}
	return nil
}

func (a *Application) received(msg *quickfix.Message, id quickfix.SessionID) {
	seq, err := msg.Header.GetInt(tagOf(fixgate.TagMsgSeqNum))
	if err != nil {
		return
	}
	a.check(id, "record inbound seq num", a.router.Received(SessionID(id), seq))
}

func (a *Application) logReject(msg *quickfix.Message, id quickfix.SessionID) {
	text, _ := msg.Body.GetString(tagOf(fixgate.TagText))
	a.logger.Warn("counterparty rejected message",
		zap.Stringer("session", SessionID(id)),
		zap.String("msg_type", msgType(msg)),
		zap.String("text", text),
	)
}

func (a *Application) check(id quickfix.SessionID, op string, err error) {
	if err != nil {
		a.logger.Warn(op, zap.Stringer("session", SessionID(id)), zap.Error(err))
	}
}

func msgType(msg *quickfix.Message) string {
	t, _ := msg.Header.GetString(tagOf(fixgate.TagMsgType))
	return t
}
