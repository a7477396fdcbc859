package fixgate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// OnStateChangeFunc is called after a session changed state. It runs outside
// the router lock but before the next transition of the same session, so it
// must not change that session's state itself.
type OnStateChangeFunc func(id SessionID, from, to State)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClock sets the source of SendingTime. Defaults to time.Now.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		r.now = now
	}
}

// WithResetOnLogon restarts outbound sequence numbers at 1 on every logon.
func WithResetOnLogon(reset bool) RouterOption {
	return func(r *Router) {
		r.resetOnLogon = reset
	}
}

// WithOnStateChange adds a hook called after every session transition.
// Multiple hooks are called in order.
//
// Example:
//
//	fixgate.WithOnStateChange(func(id fixgate.SessionID, from, to fixgate.State) {
//	    logger.Info("session state", zap.Stringer("session", id), zap.Stringer("to", to))
//	})
func WithOnStateChange(fn OnStateChangeFunc) RouterOption {
	return func(r *Router) {
		r.onStateChange = append(r.onStateChange, fn)
	}
}

// Router owns the set of sessions, resolves a destination session for a
// version and performs sends.
//
// The session set is read concurrently by Resolve and Send and changed only by
// lifecycle events (Register, BeginLogon, Activate, BeginLogout, Disconnect,
// Remove). Sends on one session are serialized; sends on different sessions
// proceed independently. No router-wide lock is held during transport I/O.
type Router struct {
	mu        sync.RWMutex
	sessions  map[SessionID]*Session
	order     []SessionID
	byVersion map[string][]SessionID

	codec         *Codec
	now           func() time.Time
	resetOnLogon  bool
	onStateChange []OnStateChangeFunc
}

// NewRouter creates a Router that encodes outgoing messages with codec.
func NewRouter(codec *Codec, opts ...RouterOption) *Router {
	if codec == nil {
		codec = NewCodec(nil)
	}
	r := &Router{
		sessions:  make(map[SessionID]*Session),
		byVersion: make(map[string][]SessionID),
		codec:     codec,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a Disconnected session. Two sessions with the same id cannot
// coexist.
func (r *Router) Register(id SessionID, conn Connection) error {
	if id.BeginString == "" || id.SenderCompID == "" || id.TargetCompID == "" {
		return fmt.Errorf("register session %q: incomplete id", id)
	}
	if conn == nil {
		return fmt.Errorf("register session %s: nil connection", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	r.sessions[id] = newSession(id, conn, r.now())
	r.order = append(r.order, id)
	r.byVersion[id.BeginString] = append(r.byVersion[id.BeginString], id)
	return nil
}

// Remove forgets a session. Sends already holding the session finish.
func (r *Router) Remove(id SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(r.sessions, id)
	r.order = slices.DeleteFunc(r.order, func(x SessionID) bool { return x == id })
	ids := slices.DeleteFunc(r.byVersion[id.BeginString], func(x SessionID) bool { return x == id })
	if len(ids) == 0 {
		delete(r.byVersion, id.BeginString)
	} else {
		r.byVersion[id.BeginString] = ids
	}
	return nil
}

// BeginLogon moves a session from Disconnected to LoggingOn.
func (r *Router) BeginLogon(id SessionID) error {
	s, err := r.setState(id, LoggingOn)
	if err != nil {
		return err
	}
	if r.resetOnLogon {
		s.sendMu.Lock()
		s.nextOut = 1
		s.sendMu.Unlock()
	}
	return nil
}

// Activate moves a session from LoggingOn to Active.
func (r *Router) Activate(id SessionID) error {
	_, err := r.setState(id, Active)
	return err
}

// BeginLogout moves a session from Active to LoggingOut.
func (r *Router) BeginLogout(id SessionID) error {
	_, err := r.setState(id, LoggingOut)
	return err
}

// Disconnect moves a session to Disconnected from any state.
func (r *Router) Disconnect(id SessionID) error {
	_, err := r.setState(id, Disconnected)
	return err
}

// setState is idempotent: moving a session to the state it is in succeeds
// without calling hooks. Transitions of one session and their hooks run one
// at a time.
func (r *Router) setState(id SessionID, to State) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	from := s.State()
	if from == to {
		return s, nil
	}
	if !canTransition(from, to) || !s.transition(from, to, r.now()) {
		return nil, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	r.callOnStateChange(id, from, to)
	return s, nil
}

func (r *Router) callOnStateChange(id SessionID, from, to State) {
	for _, fn := range r.onStateChange {
		fn(id, from, to)
	}
}

// Received records the sequence number of an inbound message.
func (r *Router) Received(id SessionID, seq int) error {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.lastIn.Store(int64(seq))
	return nil
}

// SetNextSeqNum sets the next outbound sequence number, for example after
// restoring from a message store.
func (r *Router) SetNextSeqNum(id SessionID, seq int) error {
	if seq < 1 {
		return fmt.Errorf("set next seq %s: %d is not positive", id, seq)
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.sendMu.Lock()
	s.nextOut = seq
	s.sendMu.Unlock()
	return nil
}

// Resolve returns the first session, in registration order, of the given
// version that is Active and whose connection reports logged on.
func (r *Router) Resolve(version string) (SessionID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.byVersion[version] {
		if r.sessions[id].sendable() {
			return id, nil
		}
	}
	return SessionID{}, fmt.Errorf("%w for version %q", ErrNoActiveSession, version)
}

// ResolveMatch is Resolve with an arbitrary Matcher.
func (r *Router) ResolveMatch(m Matcher) (SessionID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if m.Match(id) && r.sessions[id].sendable() {
			return id, nil
		}
	}
	return SessionID{}, ErrNoActiveSession
}

func (s *Session) sendable() bool {
	return s.State() == Active && s.conn.LoggedOn()
}

// Session returns a snapshot of one session.
func (r *Router) Session(id SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// Sessions returns snapshots of all sessions in registration order.
func (r *Router) Sessions() []SessionInfo {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.sessions[id])
	}
	r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.info())
	}
	return out
}

// Send stamps a copy of msg with the session's routing header and the next
// outbound sequence number, encodes it and hands it to the session's
// connection. It returns the sequence number used.
//
// The sequence number advances only when the connection accepts the message.
// A cancelled ctx is honored until the connection is called; after that the
// connection's outcome is always returned. A *RejectError leaves the session
// Active; any other connection error moves it to Disconnected.
func (r *Router) Send(ctx context.Context, id SessionID, msg *Message) (int, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !s.sendable() {
		return 0, fmt.Errorf("%w: %s is %s", ErrNoActiveSession, id, s.State())
	}

	out := msg.Clone()
	h := &out.Header
	h.BeginString = id.BeginString
	h.SenderCompID = id.SenderCompID
	h.TargetCompID = id.TargetCompID
	h.MsgSeqNum = s.nextOut
	h.SendingTime = r.now().UTC()

	raw, err := r.codec.EncodeMessage(out)
	if err != nil {
		return 0, err
	}
	out.freeze()

	err = s.conn.Send(context.WithoutCancel(ctx), &Outbound{
		Session: id,
		SeqNum:  h.MsgSeqNum,
		Message: out,
		Raw:     raw,
	})
	if err != nil {
		var rej *RejectError
		if !errors.As(err, &rej) {
			// The transport failed under us.
			if _, terr := r.setState(id, Disconnected); terr != nil {
				err = errors.Join(err, terr)
			}
		}
		return 0, &transportError{err: err}
	}

	seq := s.nextOut
	s.nextOut++
	s.lastOut.Store(int64(seq))
	return seq, nil
}

// transportError marks errors returned by a Connection so that they are not
// confused with errors raised before the transport was called.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
