package fixgate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome classifies the result of a dispatch.
type Outcome string

const (
	// Sent means the transport accepted the message.
	Sent Outcome = "Sent"
	// TemplateNotFound means no template is registered for the request.
	TemplateNotFound Outcome = "TemplateNotFound"
	// SessionUnavailable means no Active session exists for the version.
	SessionUnavailable Outcome = "SessionUnavailable"
	// TransportRejected means the transport refused the message or failed
	// while sending it.
	TransportRejected Outcome = "TransportRejected"
	// InvalidRequest means an override could not be applied.
	InvalidRequest Outcome = "InvalidRequest"
	// BuildFailed means the template or a stamp produced an unusable message.
	BuildFailed Outcome = "BuildFailed"
	// Cancelled means the request context ended before the send started.
	Cancelled Outcome = "Cancelled"
)

func (o Outcome) String() string { return string(o) }

// Request asks the gateway to build and send one message.
type Request struct {
	Version     string
	MessageType string
	Overrides   Overrides
}

// Result reports what happened to a Request. Session and SeqNum are set when
// a session was resolved and the message was sent respectively.
type Result struct {
	Outcome Outcome
	Session SessionID
	SeqNum  int
	Err     error
}

// Reason returns the failure text, or "" for Sent. For TransportRejected the
// transport's own reason is returned verbatim.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	var rej *RejectError
	if errors.As(r.Err, &rej) {
		return rej.Reason
	}
	return r.Err.Error()
}

// Gateway is the boundary-facing entry point: it builds a message from the
// Registry, applies overrides and stamps, resolves a session through the
// Router and sends.
//
// Usage:
//  1. Register templates on a Registry
//  2. Register sessions on a Router (usually from transport events)
//  3. Create the gateway with NewGateway, which seals the registry
//  4. Call Dispatch per request
//
// Gateway is safe for concurrent use.
type Gateway struct {
	codec    *Codec
	registry *Registry
	router   *Router
	hooks    hooks
}

// NewGateway creates a Gateway and seals reg.
//
// Example:
//
//	gw := fixgate.NewGateway(codec, reg, router,
//	    fixgate.WithStamp(templates.TextStamp()),
//	    fixgate.WithOnFailure(func(ctx context.Context, key fixgate.TemplateKey, o fixgate.Outcome, err error, d time.Duration) {
//	        logger.Warn("dispatch failed", zap.Stringer("outcome", o), zap.Error(err))
//	    }),
//	)
func NewGateway(codec *Codec, reg *Registry, router *Router, opts ...Option) *Gateway {
	g := &Gateway{codec: codec, registry: reg, router: router}
	for _, opt := range opts {
		opt(&g.hooks)
	}
	reg.Seal()
	return g
}

// Registry returns the template registry.
func (g *Gateway) Registry() *Registry { return g.registry }

// Router returns the session router.
func (g *Gateway) Router() *Router { return g.router }

// Dispatch builds, stamps and sends one message. It never panics and never
// returns an error: every failure is reported as an Outcome.
//
// The processing flow:
//  1. Build a fresh message from the template (TemplateNotFound stops here,
//     before any session lookup)
//  2. Apply overrides, then stamps
//  3. Resolve the session for the version, fresh for every call
//  4. Send through the router
//
// Hooks are called at appropriate points throughout this flow.
func (g *Gateway) Dispatch(ctx context.Context, req Request) Result {
	start := time.Now()
	key := TemplateKey{Version: req.Version, MessageType: req.MessageType}
	factory, _ := g.registry.Factory(key)

	msg, err := g.build(key)
	if err != nil {
		if errors.Is(err, ErrUnknownTemplate) {
			return g.fail(ctx, factory, key, Result{Outcome: TemplateNotFound, Err: err}, start)
		}
		return g.fail(ctx, factory, key, Result{Outcome: BuildFailed, Err: err}, start)
	}

	// OnBuild: global, then template
	ctx = g.callOnBuild(ctx, factory, key)

	if err := g.applyOverrides(msg, req.Overrides); err != nil {
		return g.fail(ctx, factory, key, Result{Outcome: InvalidRequest, Err: err}, start)
	}
	for _, stamp := range g.hooks.stamps {
		if err := stamp(msg); err != nil {
			return g.fail(ctx, factory, key, Result{Outcome: BuildFailed, Err: fmt.Errorf("stamp: %w", err)}, start)
		}
	}

	if err := ctx.Err(); err != nil {
		return g.fail(ctx, factory, key, Result{Outcome: Cancelled, Err: err}, start)
	}

	id, err := g.router.Resolve(req.Version)
	if err != nil {
		return g.fail(ctx, factory, key, Result{Outcome: SessionUnavailable, Err: err}, start)
	}

	for _, fn := range g.hooks.onDispatch {
		fn(ctx, key, id)
	}

	seq, err := g.router.Send(ctx, id, msg)
	if err != nil {
		return g.fail(ctx, factory, key, Result{Outcome: classify(err), Session: id, Err: err}, start)
	}

	res := Result{Outcome: Sent, Session: id, SeqNum: seq}
	d := time.Since(start)
	for _, fn := range g.hooks.onSuccess {
		fn(ctx, key, id, seq, d)
	}
	if h, ok := factory.(OnSuccessHook); ok {
		h.OnSuccess(ctx, id, seq, d)
	}
	return res
}

// build runs the factory, turning a panicking factory into BuildFailed.
func (g *Gateway) build(key TemplateKey) (msg *Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			msg, err = nil, fmt.Errorf("build %s: panic: %v", key, p)
		}
	}()
	return g.registry.Build(key.Version, key.MessageType)
}

func (g *Gateway) applyOverrides(m *Message, overrides Overrides) error {
	dict := g.codec.Dictionary()
	for _, o := range overrides {
		def, ok := dict.Lookup(o.Field)
		if !ok {
			return fmt.Errorf("override %q: %w", o.Field, &FieldError{Reason: "unknown field " + o.Field})
		}
		if def.NumInGroup {
			return fmt.Errorf("override %s: %w", o.Field, &GroupScopeError{Tag: def.Tag, Owner: def.Name, OwnerDepth: 1})
		}
		v, err := g.codec.Decode(def.Tag, []byte(o.Value))
		if err != nil {
			return fmt.Errorf("override %s: %w", o.Field, err)
		}
		if def.Header {
			err = m.SetHeader(def.Tag, v)
		} else {
			err = m.Set(def.Tag, v)
		}
		if err != nil {
			return fmt.Errorf("override %s: %w", o.Field, err)
		}
	}
	return nil
}

// classify maps a Router.Send error to an outcome.
func classify(err error) Outcome {
	var terr *transportError
	switch {
	case errors.As(err, &terr):
		return TransportRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancelled
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrUnknownSession):
		return SessionUnavailable
	default:
		return BuildFailed
	}
}

func (g *Gateway) callOnBuild(ctx context.Context, factory Factory, key TemplateKey) context.Context {
	for _, fn := range g.hooks.onBuild {
		ctx = fn(ctx, key)
	}
	if h, ok := factory.(OnBuildHook); ok {
		ctx = h.OnBuild(ctx)
	}
	return ctx
}

// fail calls global and template OnFailure hooks and returns res.
func (g *Gateway) fail(ctx context.Context, factory Factory, key TemplateKey, res Result, start time.Time) Result {
	d := time.Since(start)
	for _, fn := range g.hooks.onFailure {
		fn(ctx, key, res.Outcome, res.Err, d)
	}
	if h, ok := factory.(OnFailureHook); ok {
		h.OnFailure(ctx, res.Outcome, res.Err, d)
	}
	return res
}
