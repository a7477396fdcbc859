package fixgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type contextKey string

// factoryWithHooks implements the optional template hook interfaces.
type factoryWithHooks struct {
	onBuildCalled   bool
	onSuccessCalled bool
	onFailureCalled bool
	outcome         Outcome
	ctxValue        any
}

func (f *factoryWithHooks) New() (*Message, error) { return executionReport() }

func (f *factoryWithHooks) OnBuild(ctx context.Context) context.Context {
	f.onBuildCalled = true
	return context.WithValue(ctx, contextKey("template-hook"), "called")
}

func (f *factoryWithHooks) OnSuccess(ctx context.Context, id SessionID, seq int, d time.Duration) {
	f.onSuccessCalled = true
	f.ctxValue = ctx.Value(contextKey("template-hook"))
}

func (f *factoryWithHooks) OnFailure(ctx context.Context, o Outcome, err error, d time.Duration) {
	f.onFailureCalled = true
	f.outcome = o
}

type HooksSuite struct {
	suite.Suite
	reg     *Registry
	router  *Router
	conn    *fakeConn
	factory *factoryWithHooks
}

func TestHooksSuite(t *testing.T) {
	suite.Run(t, new(HooksSuite))
}

func (s *HooksSuite) SetupTest() {
	s.factory = &factoryWithHooks{}
	s.reg = NewRegistry()
	s.Require().NoError(s.reg.Register("FIX.4.4", "ExecutionReport", s.factory))
	s.router = NewRouter(NewCodec(nil))
	s.conn = newFakeConn()
	s.Require().NoError(s.router.Register(exec44, s.conn))
	activate(s.T(), s.router, exec44)
}

func (s *HooksSuite) dispatch(opts ...Option) Result {
	gw := NewGateway(NewCodec(nil), s.reg, s.router, opts...)
	return gw.Dispatch(context.Background(), Request{Version: "FIX.4.4", MessageType: "ExecutionReport"})
}

func (s *HooksSuite) TestCallOrderOnSuccess() {
	var calls []string

	res := s.dispatch(
		WithOnBuild(func(ctx context.Context, key TemplateKey) context.Context {
			calls = append(calls, "build:"+key.String())
			return ctx
		}),
		WithOnDispatch(func(ctx context.Context, key TemplateKey, id SessionID) {
			calls = append(calls, "dispatch:"+id.String())
		}),
		WithOnSuccess(func(ctx context.Context, key TemplateKey, id SessionID, seq int, d time.Duration) {
			calls = append(calls, "success")
		}),
		WithOnFailure(func(ctx context.Context, key TemplateKey, o Outcome, err error, d time.Duration) {
			calls = append(calls, "failure")
		}),
	)

	s.Require().Equal(Sent, res.Outcome)
	s.Assert().Equal([]string{
		"build:FIX.4.4/ExecutionReport",
		"dispatch:FIX.4.4:EXEC->BANZAI",
		"success",
	}, calls)
}

func (s *HooksSuite) TestMultipleHooksRunInOrder() {
	var calls []int
	res := s.dispatch(
		WithOnSuccess(func(context.Context, TemplateKey, SessionID, int, time.Duration) { calls = append(calls, 1) }),
		WithOnSuccess(func(context.Context, TemplateKey, SessionID, int, time.Duration) { calls = append(calls, 2) }),
	)

	s.Require().Equal(Sent, res.Outcome)
	s.Assert().Equal([]int{1, 2}, calls)
}

func (s *HooksSuite) TestContextChainsThroughBuildHooks() {
	var seen []any
	s.dispatch(
		WithOnBuild(func(ctx context.Context, _ TemplateKey) context.Context {
			return context.WithValue(ctx, contextKey("first"), 1)
		}),
		WithOnBuild(func(ctx context.Context, _ TemplateKey) context.Context {
			return context.WithValue(ctx, contextKey("second"), ctx.Value(contextKey("first")))
		}),
		WithOnDispatch(func(ctx context.Context, _ TemplateKey, _ SessionID) {
			seen = append(seen, ctx.Value(contextKey("second")), ctx.Value(contextKey("template-hook")))
		}),
	)

	s.Assert().Equal([]any{1, "called"}, seen)
}

func (s *HooksSuite) TestTemplateHooksOnSuccess() {
	res := s.dispatch()

	s.Require().Equal(Sent, res.Outcome)
	s.Assert().True(s.factory.onBuildCalled)
	s.Assert().True(s.factory.onSuccessCalled)
	s.Assert().False(s.factory.onFailureCalled)
	s.Assert().Equal("called", s.factory.ctxValue)
}

func (s *HooksSuite) TestTemplateHooksOnFailure() {
	s.conn.err = &RejectError{Reason: "nope"}
	var global Outcome

	res := s.dispatch(WithOnFailure(func(ctx context.Context, key TemplateKey, o Outcome, err error, d time.Duration) {
		global = o
	}))

	s.Assert().Equal(TransportRejected, res.Outcome)
	s.Assert().Equal(TransportRejected, global)
	s.Assert().True(s.factory.onFailureCalled)
	s.Assert().Equal(TransportRejected, s.factory.outcome)
}

func (s *HooksSuite) TestFailureHookForUnknownTemplate() {
	var got Outcome
	gw := NewGateway(NewCodec(nil), s.reg, s.router, WithOnFailure(func(ctx context.Context, key TemplateKey, o Outcome, err error, d time.Duration) {
		got = o
	}))

	gw.Dispatch(context.Background(), Request{Version: "FIX.4.2", MessageType: "ExecutionReport"})
	s.Assert().Equal(TemplateNotFound, got)
	s.Assert().False(s.factory.onFailureCalled)
}
