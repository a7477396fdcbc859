package fixgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakeConn records what it is asked to send.
type fakeConn struct {
	mu       sync.Mutex
	sent     []*Outbound
	err      error
	loggedOn atomic.Bool
	inFlight atomic.Int32
	overlap  atomic.Bool
	onSend   func(ctx context.Context, out *Outbound)
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.loggedOn.Store(true)
	return c
}

func (c *fakeConn) Send(ctx context.Context, out *Outbound) error {
	if c.inFlight.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.inFlight.Add(-1)

	if c.onSend != nil {
		c.onSend(ctx, out)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, out)
	return nil
}

func (c *fakeConn) LoggedOn() bool { return c.loggedOn.Load() }

func (c *fakeConn) messages() []*Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Outbound, len(c.sent))
	copy(out, c.sent)
	return out
}

var (
	exec44 = SessionID{BeginString: "FIX.4.4", SenderCompID: "EXEC", TargetCompID: "BANZAI"}
	alt44  = SessionID{BeginString: "FIX.4.4", SenderCompID: "EXEC", TargetCompID: "CELER"}
	exec42 = SessionID{BeginString: "FIX.4.2", SenderCompID: "EXEC", TargetCompID: "BANZAI"}
)

// activate walks a registered session to Active.
func activate(t *testing.T, r *Router, id SessionID) {
	t.Helper()
	require.NoError(t, r.BeginLogon(id))
	require.NoError(t, r.Activate(id))
}

type RouterSuite struct {
	suite.Suite
	router *Router
	conn   *fakeConn
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.router = NewRouter(NewCodec(nil), WithClock(func() time.Time { return sendingTime }))
	s.conn = newFakeConn()
	s.Require().NoError(s.router.Register(exec44, s.conn))
}

func (s *RouterSuite) order() *Message {
	m := NewMessage("D")
	s.Require().NoError(m.Set(TagClOrdID, String("X1")))
	return m
}

func (s *RouterSuite) TestLifecycle() {
	info, ok := s.router.Session(exec44)
	s.Require().True(ok)
	s.Assert().Equal("disconnected", info.State)

	s.Assert().ErrorIs(s.router.Activate(exec44), ErrInvalidTransition)
	s.Assert().ErrorIs(s.router.BeginLogout(exec44), ErrInvalidTransition)

	s.Require().NoError(s.router.BeginLogon(exec44))
	s.Require().NoError(s.router.Activate(exec44))
	s.Assert().ErrorIs(s.router.BeginLogon(exec44), ErrInvalidTransition)
	s.Require().NoError(s.router.BeginLogout(exec44))
	s.Require().NoError(s.router.Disconnect(exec44))
	s.Require().NoError(s.router.Disconnect(exec44))

	info, _ = s.router.Session(exec44)
	s.Assert().Equal("disconnected", info.State)
}

func (s *RouterSuite) TestFailedLogon() {
	s.Require().NoError(s.router.BeginLogon(exec44))
	s.Require().NoError(s.router.Disconnect(exec44))
	_, err := s.router.Resolve("FIX.4.4")
	s.Assert().ErrorIs(err, ErrNoActiveSession)
}

func (s *RouterSuite) TestUnknownSession() {
	s.Assert().ErrorIs(s.router.BeginLogon(exec42), ErrUnknownSession)
	s.Assert().ErrorIs(s.router.Received(exec42, 1), ErrUnknownSession)
	s.Assert().ErrorIs(s.router.Remove(exec42), ErrUnknownSession)

	_, err := s.router.Send(context.Background(), exec42, s.order())
	s.Assert().ErrorIs(err, ErrUnknownSession)
}

func (s *RouterSuite) TestDuplicateRegistration() {
	s.Assert().ErrorIs(s.router.Register(exec44, newFakeConn()), ErrDuplicateSession)
	s.Assert().Error(s.router.Register(SessionID{BeginString: "FIX.4.4"}, newFakeConn()))
	s.Assert().Error(s.router.Register(exec42, nil))
}

func (s *RouterSuite) TestResolveByRegistrationOrder() {
	other := newFakeConn()
	s.Require().NoError(s.router.Register(alt44, other))
	activate(s.T(), s.router, alt44)

	id, err := s.router.Resolve("FIX.4.4")
	s.Require().NoError(err)
	s.Assert().Equal(alt44, id, "first registered session is not active yet")

	activate(s.T(), s.router, exec44)
	id, err = s.router.Resolve("FIX.4.4")
	s.Require().NoError(err)
	s.Assert().Equal(exec44, id)

	s.conn.loggedOn.Store(false)
	id, err = s.router.Resolve("FIX.4.4")
	s.Require().NoError(err)
	s.Assert().Equal(alt44, id, "sessions whose transport is logged out are skipped")
}

func (s *RouterSuite) TestResolveNoMatch() {
	activate(s.T(), s.router, exec44)

	_, err := s.router.Resolve("FIX.4.2")
	s.Assert().ErrorIs(err, ErrNoActiveSession)
}

func (s *RouterSuite) TestResolveMatch() {
	s.Require().NoError(s.router.Register(alt44, newFakeConn()))
	activate(s.T(), s.router, exec44)
	activate(s.T(), s.router, alt44)

	id, err := s.router.ResolveMatch(And(VersionIs("FIX.4.4"), TargetIs("CELER")))
	s.Require().NoError(err)
	s.Assert().Equal(alt44, id)

	_, err = s.router.ResolveMatch(SenderIs("NOBODY"))
	s.Assert().ErrorIs(err, ErrNoActiveSession)
}

func (s *RouterSuite) TestRemove() {
	activate(s.T(), s.router, exec44)
	s.Require().NoError(s.router.Remove(exec44))

	_, err := s.router.Resolve("FIX.4.4")
	s.Assert().ErrorIs(err, ErrNoActiveSession)
	s.Assert().Empty(s.router.Sessions())

	s.Require().NoError(s.router.Register(exec44, s.conn), "id can be reused after removal")
}

func (s *RouterSuite) TestSendStampsHeader() {
	activate(s.T(), s.router, exec44)

	seq, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(1, seq)

	sent := s.conn.messages()
	s.Require().Len(sent, 1)
	out := sent[0]
	s.Assert().Equal(exec44, out.Session)
	s.Assert().Equal(1, out.SeqNum)
	s.Assert().True(out.Message.Frozen())
	s.Assert().Equal("EXEC", out.Message.Header.SenderCompID)
	s.Assert().Equal("BANZAI", out.Message.Header.TargetCompID)

	want := frame("8=FIX.4.4", "35=D", "49=EXEC", "56=BANZAI", "34=1", "52=20240305-12:04:05.123", "11=X1")
	s.Assert().Equal(string(want), string(out.Raw))

	s.Assert().ErrorIs(out.Message.Set(TagClOrdID, String("X2")), ErrFrozen)
}

func (s *RouterSuite) TestSendDoesNotMutateCaller() {
	activate(s.T(), s.router, exec44)
	m := s.order()

	_, err := s.router.Send(context.Background(), exec44, m)
	s.Require().NoError(err)

	s.Assert().False(m.Frozen())
	s.Assert().Empty(m.Header.SenderCompID)
	s.Assert().Zero(m.Header.MsgSeqNum)
}

func (s *RouterSuite) TestSendRequiresActive() {
	_, err := s.router.Send(context.Background(), exec44, s.order())
	s.Assert().ErrorIs(err, ErrNoActiveSession)
	s.Assert().Empty(s.conn.messages())
}

func (s *RouterSuite) TestConcurrentSendsAreContiguous() {
	activate(s.T(), s.router, exec44)
	s.conn.onSend = func(context.Context, *Outbound) { time.Sleep(time.Millisecond) }

	const n = 50
	seqs := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.router.Send(context.Background(), exec44, s.order())
			if err == nil {
				seqs[i] = seq
			}
		}()
	}
	wg.Wait()

	s.Assert().False(s.conn.overlap.Load(), "sends on one session overlapped")

	seen := make(map[int]bool, n)
	for _, seq := range seqs {
		s.Assert().False(seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
	for want := 1; want <= n; want++ {
		s.Assert().True(seen[want], "missing seq %d", want)
	}

	// The transport saw them in order.
	for i, out := range s.conn.messages() {
		s.Assert().Equal(i+1, out.SeqNum)
		s.Assert().Equal(i+1, out.Message.Header.MsgSeqNum)
	}
}

func (s *RouterSuite) TestSessionsSendIndependently() {
	other := newFakeConn()
	s.Require().NoError(s.router.Register(exec42, other))
	activate(s.T(), s.router, exec44)
	activate(s.T(), s.router, exec42)

	release := make(chan struct{})
	entered := make(chan struct{})
	s.conn.onSend = func(context.Context, *Outbound) {
		close(entered)
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.router.Send(context.Background(), exec44, s.order())
	}()
	<-entered

	seq, err := s.router.Send(context.Background(), exec42, s.order())
	s.Require().NoError(err, "a blocked session must not block another")
	s.Assert().Equal(1, seq)

	_, err = s.router.Resolve("FIX.4.4")
	s.Assert().NoError(err, "resolution must not wait on transport I/O")

	close(release)
	<-done
}

func (s *RouterSuite) TestRejectKeepsSessionActive() {
	activate(s.T(), s.router, exec44)
	s.conn.err = &RejectError{Reason: "throttled"}

	_, err := s.router.Send(context.Background(), exec44, s.order())
	var rej *RejectError
	s.Require().ErrorAs(err, &rej)
	s.Assert().Equal("throttled", rej.Reason)

	info, _ := s.router.Session(exec44)
	s.Assert().Equal("active", info.State)

	s.conn.err = nil
	seq, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(1, seq, "a rejected send does not consume a sequence number")
}

func (s *RouterSuite) TestTransportFailureDisconnects() {
	var changes []State
	s.router = NewRouter(NewCodec(nil), WithOnStateChange(func(id SessionID, from, to State) {
		changes = append(changes, to)
	}))
	s.Require().NoError(s.router.Register(exec44, s.conn))
	activate(s.T(), s.router, exec44)

	boom := errors.New("broken pipe")
	s.conn.err = boom
	_, err := s.router.Send(context.Background(), exec44, s.order())
	s.Assert().ErrorIs(err, boom)

	info, _ := s.router.Session(exec44)
	s.Assert().Equal("disconnected", info.State)
	s.Assert().Equal([]State{LoggingOn, Active, Disconnected}, changes)
	s.Assert().Zero(info.LastSeqOut)
}

func (s *RouterSuite) TestCancelledBeforeSend() {
	activate(s.T(), s.router, exec44)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.router.Send(ctx, exec44, s.order())
	s.Assert().ErrorIs(err, context.Canceled)
	s.Assert().Empty(s.conn.messages())

	seq, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(1, seq)
}

func (s *RouterSuite) TestCancelAfterTransportCallIsIgnored() {
	activate(s.T(), s.router, exec44)
	ctx, cancel := context.WithCancel(context.Background())

	var transportCtxErr error
	s.conn.onSend = func(tctx context.Context, _ *Outbound) {
		cancel()
		transportCtxErr = tctx.Err()
	}

	seq, err := s.router.Send(ctx, exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(1, seq)
	s.Assert().NoError(transportCtxErr)
}

func (s *RouterSuite) TestResetOnLogon() {
	s.router = NewRouter(NewCodec(nil), WithResetOnLogon(true))
	s.Require().NoError(s.router.Register(exec44, s.conn))
	activate(s.T(), s.router, exec44)

	for range 3 {
		_, err := s.router.Send(context.Background(), exec44, s.order())
		s.Require().NoError(err)
	}
	s.Require().NoError(s.router.Disconnect(exec44))
	activate(s.T(), s.router, exec44)

	seq, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(1, seq)
}

func (s *RouterSuite) TestSetNextSeqNum() {
	activate(s.T(), s.router, exec44)
	s.Require().NoError(s.router.SetNextSeqNum(exec44, 42))
	s.Assert().Error(s.router.SetNextSeqNum(exec44, 0))

	seq, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)
	s.Assert().Equal(42, seq)
}

func (s *RouterSuite) TestReceivedAndSnapshot() {
	activate(s.T(), s.router, exec44)
	s.Require().NoError(s.router.Received(exec44, 9))
	_, err := s.router.Send(context.Background(), exec44, s.order())
	s.Require().NoError(err)

	infos := s.router.Sessions()
	s.Require().Len(infos, 1)
	s.Assert().Equal(exec44, infos[0].ID)
	s.Assert().Equal(int64(9), infos[0].LastSeqIn)
	s.Assert().Equal(int64(1), infos[0].LastSeqOut)
	s.Assert().True(infos[0].LoggedOn)
}

func TestSessionID_String(t *testing.T) {
	assert.Equal(t, "FIX.4.4:EXEC->BANZAI", exec44.String())
	assert.Equal(t, "logging_on", LoggingOn.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestStateHooksFollowTransitionOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    []State
		entered = make(chan struct{})
		release = make(chan struct{})
	)
	r := NewRouter(NewCodec(nil), WithOnStateChange(func(_ SessionID, _, to State) {
		if to == Disconnected {
			close(entered)
			<-release
		}
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	}))
	require.NoError(t, r.Register(exec44, newFakeConn()))
	activate(t, r, exec44)

	disconnected := make(chan error, 1)
	go func() { disconnected <- r.Disconnect(exec44) }()
	<-entered

	loggingOn := make(chan error, 1)
	go func() { loggingOn <- r.BeginLogon(exec44) }()

	select {
	case <-loggingOn:
		t.Fatal("BeginLogon completed while the previous transition's hook was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-disconnected)
	require.NoError(t, <-loggingOn)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{LoggingOn, Active, Disconnected, LoggingOn}, seen)
	info, _ := r.Session(exec44)
	assert.Equal(t, "logging_on", info.State)
}
