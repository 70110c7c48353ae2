// Package stream operates the long-lived framed TCP/TLS connection to
// the streaming host: dial and handshake, reconnect-with-resume,
// heartbeat scheduling, and command/event multiplexing. It decodes
// frames via internal/codec and hands typed market/order change
// messages to whatever consumes Events — normally a tracker that folds
// them into per-market caches.
package stream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"betfair-streamcache/internal/codec"
	"betfair-streamcache/internal/metrics"
	"betfair-streamcache/pkg/types"
)

// Config configures a Processor's connection to the streaming host.
type Config struct {
	Addr              string // host:port of the streaming endpoint
	ServerName        string // TLS server name, usually the hostname part of Addr
	RootCAs           *x509.CertPool
	AppKey            string
	HeartbeatInterval time.Duration // 0 disables client-initiated heartbeats
	DialTimeout       time.Duration
	MinBackoff        time.Duration // 0 uses the package default (1s)
	MaxBackoff        time.Duration // 0 uses the package default (30s)
	ChurnWindow       time.Duration // 0 uses the package default (5m)
	ChurnThreshold    int           // 0 uses the package default (5)
	Logger            *slog.Logger
	Metrics           *metrics.Registry // nil disables metrics
}

// SessionFunc returns the current session token at authentication time,
// so the processor always authenticates with whatever token the auth
// state machine currently holds rather than one captured at construction.
type SessionFunc func() string

// EventKind classifies an Event emitted on a Processor's event channel.
type EventKind int

const (
	EventTCPConnected EventKind = iota
	EventAuthenticated
	EventMarketChange
	EventOrderChange
	EventResumeLost
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventTCPConnected:
		return "tcp_connected"
	case EventAuthenticated:
		return "authenticated"
	case EventMarketChange:
		return "market_change"
	case EventOrderChange:
		return "order_change"
	case EventResumeLost:
		return "resume_lost"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one item on a Processor's output channel: connection
// metadata, a resume-loss notice, or a decoded market/order change.
type Event struct {
	Kind                 EventKind
	ConnectionID         string
	ConnectionsAvailable *int
	ErrorCode            *types.ErrorCode
	MarketChange         *types.MarketChangeMessage
	OrderChange          *types.OrderChangeMessage
	Err                  error
}

type resumeTokens struct {
	clk        *string
	initialClk *string
}

// Processor owns one TCP+TLS connection to the streaming host at a
// time, including reconnect-with-resume, the heartbeat timer, and
// command/event multiplexing. Run drives the connection until ctx is
// cancelled; callers send subscription changes via Send and consume
// decoded messages via Events.
type Processor struct {
	cfg     Config
	session SessionFunc
	health  *HealthMonitor
	backoff *backoff
	metrics *metrics.Registry

	commands chan any
	events   chan Event

	mu            sync.Mutex
	marketTokens  resumeTokens
	orderTokens   resumeTokens
	lastMarketSub *types.MarketSubscriptionMessage
	lastOrderSub  *types.OrderSubscriptionMessage
	nextID        int
}

// NewProcessor creates a Processor. session is consulted on every
// (re)connect so a token refreshed by the auth state machine takes
// effect on the next handshake without restarting the processor.
func NewProcessor(cfg Config, session SessionFunc) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Processor{
		cfg:      cfg,
		session:  session,
		health:   NewHealthMonitorWithConfig(cfg.ChurnWindow, cfg.ChurnThreshold),
		backoff:  newBackoffWithBounds(cfg.MinBackoff, cfg.MaxBackoff),
		metrics:  cfg.Metrics,
		commands: make(chan any, 16),
		events:   make(chan Event, 256),
		nextID:   1,
	}
}

// Events returns the channel of connection metadata and decoded
// messages. It is closed when Run returns.
func (p *Processor) Events() <-chan Event { return p.events }

// Health returns the reconnect-churn monitor, for callers that want to
// surface it alongside their own metrics.
func (p *Processor) Health() *HealthMonitor { return p.health }

// Send enqueues an outbound command: a market or order subscription
// message, or a manual heartbeat request. Subscription messages are
// remembered so the processor can resend them, carrying the current
// resume tokens, after a reconnect.
func (p *Processor) Send(ctx context.Context, msg any) error {
	select {
	case p.commands <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dials, authenticates, and services the connection until ctx is
// cancelled, reconnecting with backoff on any transport or protocol
// failure. It returns ctx.Err() once cancelled.
func (p *Processor) Run(ctx context.Context) error {
	defer close(p.events)

	for {
		err := p.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		churning := p.health.RecordReconnect(time.Now())
		if churning {
			p.backoff.Penalize()
		}
		if p.metrics != nil {
			p.metrics.Reconnects.Inc()
		}
		p.emit(ctx, Event{Kind: EventDisconnected, Err: err})

		delay := p.backoff.Next()
		p.cfg.Logger.Warn("stream disconnected, reconnecting",
			"error", err, "delay", delay, "churning", churning)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (p *Processor) connectAndServe(ctx context.Context) error {
	conn, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("stream: dial: %w", err)
	}
	defer conn.Close()
	return p.handshakeAndServe(ctx, conn)
}

func (p *Processor) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	return tls.DialWithDialer(dialer, "tcp", p.cfg.Addr, &tls.Config{
		ServerName: p.cfg.ServerName,
		RootCAs:    p.cfg.RootCAs,
		MinVersion: tls.VersionTLS12,
	})
}

// handshakeAndServe runs the connection+authentication handshake and
// the event loop over an already-established stream. It is split out
// from connectAndServe so tests can drive it over an in-memory pipe
// instead of a real TLS socket.
func (p *Processor) handshakeAndServe(ctx context.Context, conn io.ReadWriteCloser) error {
	dec := codec.NewDecoder(conn)
	enc := codec.NewEncoder(conn)

	msg, err := dec.Next()
	if err != nil {
		return fmt.Errorf("stream: awaiting connection message: %w", err)
	}
	connMsg, ok := msg.(types.ConnectionMessage)
	if !ok {
		return fmt.Errorf("stream: expected connection message, got %T", msg)
	}
	p.emit(ctx, Event{Kind: EventTCPConnected, ConnectionID: connMsg.ConnectionID})

	authMsg := types.NewAuthenticationMessage(p.nextCommandID(), p.session(), p.cfg.AppKey)
	if err := enc.Encode(authMsg); err != nil {
		return fmt.Errorf("stream: send authentication: %w", err)
	}

	msg, err = dec.Next()
	if err != nil {
		return fmt.Errorf("stream: awaiting authentication status: %w", err)
	}
	statusMsg, ok := msg.(types.StatusMessage)
	if !ok {
		return fmt.Errorf("stream: expected status message, got %T", msg)
	}
	if statusMsg.StatusCode == nil || *statusMsg.StatusCode != types.StatusCodeSuccess {
		if statusMsg.ErrorCode != nil {
			p.maybePenalize(*statusMsg.ErrorCode)
		}
		return &authFailure{status: statusMsg}
	}
	p.backoff.Reset()
	p.emit(ctx, Event{Kind: EventAuthenticated, ConnectionsAvailable: statusMsg.ConnectionsAvailable})

	if err := p.resendSubscriptions(enc, false); err != nil {
		return err
	}

	return p.serve(ctx, dec, enc)
}

func (p *Processor) maybePenalize(code types.ErrorCode) {
	if code == types.ErrorCodeMaxConnectionLimitExceeded || code == types.ErrorCodeTooManyRequests {
		p.backoff.Penalize()
	}
}

type readResult struct {
	msg any
	err error
}

// serve runs the four-source event loop: inbound decoded messages, the
// outbound command channel, the heartbeat timer, and ctx cancellation.
func (p *Processor) serve(ctx context.Context, dec *codec.Decoder, enc *codec.Encoder) error {
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	inbound := make(chan readResult, 1)
	go func() {
		for {
			msg, err := dec.Next()
			select {
			case inbound <- readResult{msg: msg, err: err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var heartbeatCh <-chan time.Time
	if p.cfg.HeartbeatInterval > 0 {
		ticker := time.NewTicker(p.cfg.HeartbeatInterval)
		defer ticker.Stop()
		heartbeatCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-inbound:
			if r.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("stream: read: %w", r.err)
			}
			if err := p.handleInbound(ctx, enc, r.msg); err != nil {
				return err
			}
		case cmd := <-p.commands:
			if err := p.handleCommand(enc, cmd); err != nil {
				return err
			}
		case <-heartbeatCh:
			if err := enc.Encode(types.NewHeartbeatMessage(p.nextCommandID())); err != nil {
				return fmt.Errorf("stream: send heartbeat: %w", err)
			}
		}
	}
}

func (p *Processor) handleInbound(ctx context.Context, enc *codec.Encoder, msg any) error {
	switch m := msg.(type) {
	case types.ConnectionMessage:
		// A second connection message mid-stream is unexpected; ignore it
		// rather than treat it as fatal.
	case types.MarketChangeMessage:
		p.updateMarketTokens(m)
		p.emit(ctx, Event{Kind: EventMarketChange, MarketChange: &m})
	case types.OrderChangeMessage:
		p.updateOrderTokens(m)
		p.emit(ctx, Event{Kind: EventOrderChange, OrderChange: &m})
	case types.StatusMessage:
		return p.handleStatus(ctx, enc, m)
	default:
		p.cfg.Logger.Warn("stream: unexpected inbound message type", "type", fmt.Sprintf("%T", m))
	}
	return nil
}

func (p *Processor) handleStatus(ctx context.Context, enc *codec.Encoder, m types.StatusMessage) error {
	if m.ErrorCode != nil {
		p.cfg.Logger.Warn("stream: status error", "code", *m.ErrorCode, "message", derefStr(m.ErrorMessage))
		p.maybePenalize(*m.ErrorCode)

		if *m.ErrorCode == types.ErrorCodeInvalidClock {
			p.dropTokens()
			if p.metrics != nil {
				p.metrics.ResumeLost.Inc()
			}
			p.emit(ctx, Event{Kind: EventResumeLost, ErrorCode: m.ErrorCode})
			return p.resendSubscriptions(enc, true)
		}
	}
	if m.StatusCode != nil && *m.StatusCode == types.StatusCodeFailure &&
		m.ConnectionClosed != nil && *m.ConnectionClosed {
		return &statusFailure{status: m}
	}
	return nil
}

func (p *Processor) handleCommand(enc *codec.Encoder, cmd any) error {
	switch v := cmd.(type) {
	case types.MarketSubscriptionMessage:
		p.mu.Lock()
		v.Clk = p.marketTokens.clk
		v.InitialClk = p.marketTokens.initialClk
		saved := v
		p.lastMarketSub = &saved
		p.mu.Unlock()
		return enc.Encode(v)
	case types.OrderSubscriptionMessage:
		p.mu.Lock()
		v.Clk = p.orderTokens.clk
		v.InitialClk = p.orderTokens.initialClk
		saved := v
		p.lastOrderSub = &saved
		p.mu.Unlock()
		return enc.Encode(v)
	case types.HeartbeatMessage:
		return enc.Encode(v)
	default:
		return fmt.Errorf("stream: unsupported command type %T", cmd)
	}
}

// resendSubscriptions resends the last-known market/order subscriptions,
// carrying the current resume tokens (fresh, clk/initialClk forced nil,
// when fresh is true). It is called once after a successful handshake
// and again after an InvalidClock status forces a fresh subscription.
func (p *Processor) resendSubscriptions(enc *codec.Encoder, fresh bool) error {
	p.mu.Lock()
	marketSub := p.lastMarketSub
	orderSub := p.lastOrderSub
	mTok, oTok := p.marketTokens, p.orderTokens
	p.mu.Unlock()

	if marketSub != nil {
		m := *marketSub
		if fresh {
			m.Clk, m.InitialClk = nil, nil
		} else {
			m.Clk, m.InitialClk = mTok.clk, mTok.initialClk
		}
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("stream: resend market subscription: %w", err)
		}
	}
	if orderSub != nil {
		o := *orderSub
		if fresh {
			o.Clk, o.InitialClk = nil, nil
		} else {
			o.Clk, o.InitialClk = oTok.clk, oTok.initialClk
		}
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("stream: resend order subscription: %w", err)
		}
	}
	return nil
}

// updateMarketTokens overwrites whichever of clk/initialClk is present
// on m. The pair is not a structural atom: the server sometimes sends
// one without the other, and whichever arrives replaces only itself.
func (p *Processor) updateMarketTokens(m types.MarketChangeMessage) {
	p.mu.Lock()
	if m.InitialClk != nil {
		p.marketTokens.initialClk = m.InitialClk
	}
	if m.Clk != nil {
		p.marketTokens.clk = m.Clk
	}
	p.mu.Unlock()
}

func (p *Processor) updateOrderTokens(m types.OrderChangeMessage) {
	p.mu.Lock()
	if m.InitialClk != nil {
		p.orderTokens.initialClk = m.InitialClk
	}
	if m.Clk != nil {
		p.orderTokens.clk = m.Clk
	}
	p.mu.Unlock()
}

// dropTokens clears both subscriptions' resume tokens after the server
// rejects a resume, forcing the next resendSubscriptions(fresh=true)
// call to subscribe clean.
func (p *Processor) dropTokens() {
	p.mu.Lock()
	p.marketTokens = resumeTokens{}
	p.orderTokens = resumeTokens{}
	p.mu.Unlock()
}

func (p *Processor) nextCommandID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	return id
}

// emit delivers an event, dropping it instead of blocking forever if
// the consumer has stopped reading and ctx is cancelled out from under
// it.
func (p *Processor) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// authFailure is returned when the post-connection authentication
// handshake itself fails (a status response with a non-success code).
type authFailure struct {
	status types.StatusMessage
}

func (e *authFailure) Error() string {
	code := "unknown"
	if e.status.ErrorCode != nil {
		code = string(*e.status.ErrorCode)
	}
	return fmt.Sprintf("stream: authentication failed: %s", code)
}

// statusFailure is returned when the server closes the connection after
// an in-stream status failure (not the authentication handshake).
type statusFailure struct {
	status types.StatusMessage
}

func (e *statusFailure) Error() string {
	code := "unknown"
	if e.status.ErrorCode != nil {
		code = string(*e.status.ErrorCode)
	}
	return fmt.Sprintf("stream: connection closed: %s", code)
}
