package fixgate

import (
	"context"
	"time"
)

// OnBuildFunc is called after a template was built, before overrides are
// applied. Use this to enrich the context with logging fields or trace spans.
// The returned context is used for the rest of the dispatch.
type OnBuildFunc func(ctx context.Context, key TemplateKey) context.Context

// OnDispatchFunc is called just before the message is handed to the router.
type OnDispatchFunc func(ctx context.Context, key TemplateKey, session SessionID)

// OnSuccessFunc is called after the transport accepted the message.
type OnSuccessFunc func(ctx context.Context, key TemplateKey, session SessionID, seq int, duration time.Duration)

// OnFailureFunc is called for every outcome other than Sent.
type OnFailureFunc func(ctx context.Context, key TemplateKey, outcome Outcome, err error, duration time.Duration)

// StampFunc sets per-send fields on a freshly built message, after overrides.
type StampFunc func(m *Message) error

// hooks holds all configured hook functions.
type hooks struct {
	onBuild    []OnBuildFunc
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	stamps     []StampFunc
}

// Option configures a Gateway.
type Option func(*hooks)

// WithOnBuild adds a hook called after a template was built.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	fixgate.WithOnBuild(func(ctx context.Context, key fixgate.TemplateKey) context.Context {
//	    return logging.With(ctx, zap.Stringer("template", key))
//	})
func WithOnBuild(fn OnBuildFunc) Option {
	return func(h *hooks) {
		h.onBuild = append(h.onBuild, fn)
	}
}

// WithOnDispatch adds a hook called just before the send.
// Multiple hooks are called in order.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(h *hooks) {
		h.onDispatch = append(h.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a message was sent.
// Multiple hooks are called in order.
//
// Example:
//
//	fixgate.WithOnSuccess(func(ctx context.Context, key fixgate.TemplateKey, id fixgate.SessionID, seq int, d time.Duration) {
//	    latency.WithLabelValues(key.Version, key.MessageType).Observe(d.Seconds())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(h *hooks) {
		h.onSuccess = append(h.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called for every outcome other than Sent.
// Multiple hooks are called in order.
//
// Example:
//
//	fixgate.WithOnFailure(func(ctx context.Context, key fixgate.TemplateKey, o fixgate.Outcome, err error, d time.Duration) {
//	    logger.Warn("dispatch failed", zap.Stringer("outcome", o), zap.Error(err))
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(h *hooks) {
		h.onFailure = append(h.onFailure, fn)
	}
}

// WithStamp adds a function that sets per-send fields such as a fresh
// identifier. Stamps run in order after overrides; an error fails the
// dispatch with BuildFailed.
func WithStamp(fn StampFunc) Option {
	return func(h *hooks) {
		h.stamps = append(h.stamps, fn)
	}
}

// OnBuildHook is an optional interface that factories can implement to add
// template-specific context enrichment. Called after global OnBuild hooks.
type OnBuildHook interface {
	OnBuild(ctx context.Context) context.Context
}

// OnSuccessHook is an optional interface that factories can implement to add
// template-specific behavior after a send. Called after global OnSuccess hooks.
type OnSuccessHook interface {
	OnSuccess(ctx context.Context, session SessionID, seq int, duration time.Duration)
}

// OnFailureHook is an optional interface that factories can implement to add
// template-specific behavior on failure. Called after global OnFailure hooks.
type OnFailureHook interface {
	OnFailure(ctx context.Context, outcome Outcome, err error, duration time.Duration)
}
