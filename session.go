package fixgate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SessionID is the unique key of a session.
type SessionID struct {
	BeginString  string
	SenderCompID string
	TargetCompID string
}

// String renders the id as "FIX.4.4:EXEC->BANZAI".
func (id SessionID) String() string {
	return id.BeginString + ":" + id.SenderCompID + "->" + id.TargetCompID
}

// MarshalText renders the id in its String form.
func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// State is the lifecycle state of a session.
type State int32

const (
	Disconnected State = iota
	LoggingOn
	Active
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case LoggingOn:
		return "logging_on"
	case Active:
		return "active"
	case LoggingOut:
		return "logging_out"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// transitions lists the allowed edges. LoggingOn -> Disconnected covers a
// rejected or timed out logon.
var transitions = map[State][]State{
	Disconnected: {LoggingOn},
	LoggingOn:    {Active, Disconnected},
	Active:       {LoggingOut, Disconnected},
	LoggingOut:   {Disconnected},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outbound is what a Connection receives for one send.
type Outbound struct {
	Session SessionID
	SeqNum  int
	// Message is frozen; every mutator returns ErrFrozen.
	Message *Message
	// Raw is the encoded frame including BodyLength and CheckSum.
	Raw []byte
}

// Connection is the outbound transport of one session, typically backed by a
// FIX engine. Send returns nil when the counterparty transport accepted the
// message, a *RejectError for a nack, and any other error for a connection
// failure.
//
// The router never cancels the context it passes to Send; a transport that
// wants a deadline sets one itself.
type Connection interface {
	Send(ctx context.Context, out *Outbound) error
	LoggedOn() bool
}

// ConnectionFunc adapts a send function into a Connection that always
// reports logged on. Useful in tests and for in-process transports.
type ConnectionFunc func(ctx context.Context, out *Outbound) error

// Send implements the Connection interface.
func (f ConnectionFunc) Send(ctx context.Context, out *Outbound) error { return f(ctx, out) }

// LoggedOn implements the Connection interface.
func (f ConnectionFunc) LoggedOn() bool { return true }

// Session is the router-owned runtime state of one session.
type Session struct {
	id    SessionID
	conn  Connection
	state atomic.Int32

	// stateMu serializes transitions together with their hooks, so hooks see
	// the changes of one session in the order they happened.
	stateMu sync.Mutex

	// sendMu serializes header stamping, encoding, the transport call and the
	// sequence increment.
	sendMu  sync.Mutex
	nextOut int

	lastOut atomic.Int64
	lastIn  atomic.Int64
	since   atomic.Int64
}

func newSession(id SessionID, conn Connection, now time.Time) *Session {
	s := &Session{id: id, conn: conn, nextOut: 1}
	s.since.Store(now.UnixNano())
	return s
}

// ID returns the session id.
func (s *Session) ID() SessionID { return s.id }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) transition(from, to State, now time.Time) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.since.Store(now.UnixNano())
	return true
}

// SessionInfo is a point-in-time snapshot of a session.
type SessionInfo struct {
	ID         SessionID `json:"id"`
	State      string    `json:"state"`
	LoggedOn   bool      `json:"loggedOn"`
	LastSeqOut int64     `json:"lastSeqOut"`
	LastSeqIn  int64     `json:"lastSeqIn"`
	Since      time.Time `json:"since"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:         s.id,
		State:      s.State().String(),
		LoggedOn:   s.conn.LoggedOn(),
		LastSeqOut: s.lastOut.Load(),
		LastSeqIn:  s.lastIn.Load(),
		Since:      time.Unix(0, s.since.Load()).UTC(),
	}
}
