package quickfixconn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bjaus/fixgate"
	"github.com/bjaus/fixgate/templates"
)

var engineID = quickfix.SessionID{BeginString: "FIX.4.4", SenderCompID: "EXEC", TargetCompID: "BANZAI"}

func adminMessage(msgType string, seq int) *quickfix.Message {
	m := quickfix.NewMessage()
	m.Header.SetField(quickfix.Tag(fixgate.TagMsgType), quickfix.FIXString(msgType))
	m.Header.SetField(quickfix.Tag(fixgate.TagMsgSeqNum), quickfix.FIXInt(seq))
	return m
}

type capture struct {
	mu   sync.Mutex
	sent []*quickfix.Message
	err  error
}

func (c *capture) send(m quickfix.Messagable, _ quickfix.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m.ToMessage())
	return nil
}

type ApplicationSuite struct {
	suite.Suite
	router *fixgate.Router
	sender *capture
	logs   *observer.ObservedLogs
	app    *Application
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.router = fixgate.NewRouter(fixgate.NewCodec(templates.Dictionary()))
	s.sender = &capture{}
	core, logs := observer.New(zap.DebugLevel)
	s.logs = logs
	s.app = NewApplication(s.router, zap.New(core), WithSender(s.sender.send))
	s.app.OnCreate(engineID)
}

func (s *ApplicationSuite) state() string {
	info, ok := s.router.Session(SessionID(engineID))
	s.Require().True(ok)
	return info.State
}

func (s *ApplicationSuite) logon() {
	s.Require().Nil(s.app.FromAdmin(adminMessage(msgTypeLogon, 1), engineID))
	s.app.ToAdmin(adminMessage(msgTypeLogon, 1), engineID)
	s.app.OnLogon(engineID)
}

func (s *ApplicationSuite) TestOnCreateRegistersDisconnected() {
	s.Assert().Equal("disconnected", s.state())
	conn, ok := s.app.Conn(engineID)
	s.Require().True(ok)
	s.Assert().False(conn.LoggedOn())
}

func (s *ApplicationSuite) TestOnCreateTwiceLogs() {
	s.app.OnCreate(engineID)
	s.Assert().Equal(1, s.logs.FilterMessage("register engine session").Len())
}

func (s *ApplicationSuite) TestLifecycle() {
	s.Require().Nil(s.app.FromAdmin(adminMessage(msgTypeLogon, 1), engineID))
	s.Assert().Equal("logging_on", s.state())

	s.app.ToAdmin(adminMessage(msgTypeLogon, 4), engineID)
	s.app.OnLogon(engineID)
	s.Assert().Equal("active", s.state())
	conn, _ := s.app.Conn(engineID)
	s.Assert().True(conn.LoggedOn())

	m := fixgate.NewMessage("8")
	s.Require().NoError(m.Set(fixgate.TagClOrdID, fixgate.String("X1")))
	seq, err := s.router.Send(context.Background(), SessionID(engineID), m)
	s.Require().NoError(err)
	s.Assert().Equal(5, seq)
	s.Require().Len(s.sender.sent, 1)
	id, ferr := s.sender.sent[0].Body.GetString(quickfix.Tag(fixgate.TagClOrdID))
	s.Require().Nil(ferr)
	s.Assert().Equal("X1", id)

	s.app.ToAdmin(adminMessage(msgTypeLogout, 6), engineID)
	s.Assert().Equal("logging_out", s.state())
	s.app.OnLogout(engineID)
	s.Assert().Equal("disconnected", s.state())
	s.Assert().False(conn.LoggedOn())
}

func (s *ApplicationSuite) TestLogoutDuringLogonSkipsLoggingOut() {
	s.Require().Nil(s.app.FromAdmin(adminMessage(msgTypeLogon, 1), engineID))
	s.app.ToAdmin(adminMessage(msgTypeLogout, 1), engineID)
	s.Assert().Equal("logging_on", s.state())

	s.app.OnLogout(engineID)
	s.Assert().Equal("disconnected", s.state())
	s.Assert().Zero(s.logs.FilterMessage("begin logout").Len())
}

func (s *ApplicationSuite) TestInboundSeqNumTracked() {
	s.logon()
	s.Require().Nil(s.app.FromApp(adminMessage("8", 7), engineID))

	info, _ := s.router.Session(SessionID(engineID))
	s.Assert().Equal(int64(7), info.LastSeqIn)
}

func (s *ApplicationSuite) TestRejectsAreLogged() {
	s.logon()
	reject := adminMessage(msgTypeBusinessReject, 2)
	reject.Body.SetField(quickfix.Tag(fixgate.TagText), quickfix.FIXString("Unknown counterparty"))
	s.Require().Nil(s.app.FromApp(reject, engineID))

	entries := s.logs.FilterMessage("counterparty rejected message").All()
	s.Require().Len(entries, 1)
	s.Assert().Equal("Unknown counterparty", entries[0].ContextMap()["text"])
	s.Assert().Equal("j", entries[0].ContextMap()["msg_type"])
}

func (s *ApplicationSuite) TestEngineFailureDisconnectsRouterSession() {
	s.logon()
	s.sender.err = errors.New("session not found")

	_, err := s.router.Send(context.Background(), SessionID(engineID), fixgate.NewMessage("8"))
	s.Require().Error(err)
	s.Assert().Equal("disconnected", s.state())
}

func (s *ApplicationSuite) TestSendBeforeLogon() {
	conn, _ := s.app.Conn(engineID)
	err := conn.Send(context.Background(), &fixgate.Outbound{Message: fixgate.NewMessage("8")})
	s.Assert().ErrorContains(err, "not logged on")
}

func TestConnSendTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	conn := newConn(engineID, func(quickfix.Messagable, quickfix.SessionID) error {
		<-block
		return nil
	}, 10*time.Millisecond)
	conn.loggedOn.Store(true)

	m := fixgate.NewMessage("8")
	m.Header.BeginString = "FIX.4.4"
	err := conn.Send(context.Background(), &fixgate.Outbound{Message: m})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() error = %v, want deadline exceeded", err)
	}
}
