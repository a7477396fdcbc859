package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bjaus/fixgate"
)

const (
	defaultRetryInterval = 5 * time.Second
	defaultDialTimeout   = 5 * time.Second
)

var errNotConnected = errors.New("peer not connected")

// DialFunc opens the stream to a peer.
type DialFunc func(ctx context.Context, address string) (net.Conn, error)

// PeerOption configures a Peer.
type PeerOption func(*Peer)

// WithDialer replaces the TCP dialer.
func WithDialer(fn DialFunc) PeerOption {
	return func(p *Peer) {
		p.dial = fn
	}
}

// WithRetryInterval sets the pause between reconnects.
func WithRetryInterval(d time.Duration) PeerOption {
	return func(p *Peer) {
		p.retry = d
	}
}

// WithWriteTimeout bounds every frame write.
func WithWriteTimeout(d time.Duration) PeerOption {
	return func(p *Peer) {
		p.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PeerOption {
	return func(p *Peer) {
		p.logger = l
	}
}

// WithGroupSpecs declares the repeating groups inbound frames may carry.
func WithGroupSpecs(specs ...*fixgate.GroupSpec) PeerOption {
	return func(p *Peer) {
		p.specs = append(p.specs, specs...)
	}
}

// Peer is an engine-less session over TCP. It is the session's
// fixgate.Connection and keeps the router state in step with the socket:
// Active while connected, Disconnected between reconnects.
type Peer struct {
	id      fixgate.SessionID
	address string
	router  *fixgate.Router
	codec   *fixgate.Codec
	specs   []*fixgate.GroupSpec
	logger  *zap.Logger
	dial    DialFunc
	retry   time.Duration
	timeout time.Duration

	current atomic.Pointer[Conn]
}

var _ fixgate.Connection = (*Peer)(nil)

// NewPeer returns a Peer for id at address. Run registers it with router.
func NewPeer(router *fixgate.Router, codec *fixgate.Codec, id fixgate.SessionID, address string, opts ...PeerOption) *Peer {
	d := &net.Dialer{Timeout: defaultDialTimeout}
	p := &Peer{
		id:      id,
		address: address,
		router:  router,
		codec:   codec,
		logger:  zap.NewNop(),
		retry:   defaultRetryInterval,
		dial: func(ctx context.Context, address string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", address)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.Stringer("session", id), zap.String("address", address))
	return p
}

// LoggedOn implements fixgate.Connection.
func (p *Peer) LoggedOn() bool {
	c := p.current.Load()
	return c != nil && c.LoggedOn()
}

// Send implements fixgate.Connection.
func (p *Peer) Send(ctx context.Context, out *fixgate.Outbound) error {
	c := p.current.Load()
	if c == nil {
		return fmt.Errorf("send %s: %w", p.id, errNotConnected)
	}
	return c.Send(ctx, out)
}

// Run registers the session and keeps it connected until ctx is done.
func (p *Peer) Run(ctx context.Context) error {
	if err := p.router.Register(p.id, p); err != nil {
		return err
	}
	for {
		err := p.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("peer connection lost", zap.Error(err), zap.Duration("retry_in", p.retry))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.retry):
		}
	}
}

func (p *Peer) serve(ctx context.Context) error {
	nc, err := p.dial(ctx, p.address)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn := NewConn(nc, p.timeout)
	p.current.Store(conn)
	defer func() {
		_ = conn.Close()
		if err := p.router.Disconnect(p.id); err != nil {
			p.logger.Warn("disconnect session", zap.Error(err))
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		// Not Active when a failed send already disconnected the session.
		_ = p.router.BeginLogout(p.id)
		_ = conn.Close()
	})
	defer stop()

	if err := p.router.BeginLogon(p.id); err != nil {
		return err
	}
	if err := p.router.Activate(p.id); err != nil {
		return err
	}
	p.logger.Info("peer connected")

	r := bufio.NewReader(nc)
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			return err
		}
		p.received(frame)
	}
}

func (p *Peer) received(frame []byte) {
	m, err := p.codec.DecodeMessage(frame, p.specs...)
	if err != nil {
		p.logger.Warn("discarding inbound frame", zap.Error(err))
		return
	}
	if err := p.router.Received(p.id, m.Header.MsgSeqNum); err != nil {
		p.logger.Warn("record inbound seq num", zap.Error(err))
	}
}
