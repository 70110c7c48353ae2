// Package auth implements the certificate-login authentication state
// machine: Unauthenticated -> LoggingIn -> Authenticated -> RefreshingToken,
// with the session token it produces consumed by the streaming
// connection processor and the RPC client alike.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is one of the authentication machine's lifecycle states.
type State int

const (
	StateUnauthenticated State = iota
	StateLoggingIn
	StateAuthenticated
	StateRefreshingToken
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateLoggingIn:
		return "logging_in"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshingToken:
		return "refreshing_token"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoginFunc performs the certificate-login HTTPS round trip and returns
// the resulting session token. It is supplied by internal/rpc so this
// package stays free of HTTP concerns and is easy to drive from tests.
type LoginFunc func(ctx context.Context, creds Credentials) (sessionToken string, err error)

// KeepAliveFunc performs the keep-alive HTTPS round trip for an existing
// session token.
type KeepAliveFunc func(ctx context.Context, creds Credentials, sessionToken string) error

// LoginError is returned when a cert-login attempt fails; Kind
// classifies the failure without leaking credential material into the
// error string.
type LoginError struct {
	Kind string
}

func (e *LoginError) Error() string { return fmt.Sprintf("auth: login failed: %s", e.Kind) }

// KeepAliveError is returned when a keep-alive round trip reports
// status=FAIL.
type KeepAliveError struct {
	Kind string
}

func (e *KeepAliveError) Error() string { return fmt.Sprintf("auth: keep-alive failed: %s", e.Kind) }

// Machine drives the authentication lifecycle. It is safe for
// concurrent use: the streaming connection processor reads the current
// session token while a background ticker calls KeepAlive.
type Machine struct {
	mu           sync.RWMutex
	state        State
	creds        Credentials
	sessionToken string
	expiresAt    time.Time

	login     LoginFunc
	keepAlive KeepAliveFunc
}

// NewMachine creates a state machine starting in StateUnauthenticated.
func NewMachine(creds Credentials, login LoginFunc, keepAlive KeepAliveFunc) *Machine {
	return &Machine{
		state:     StateUnauthenticated,
		creds:     creds,
		login:     login,
		keepAlive: keepAlive,
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SessionToken returns the current session token, or "" if not
// authenticated.
func (m *Machine) SessionToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionToken
}

// Login performs the initial certificate login. It is a no-op once
// already authenticated; call Refresh to rotate an existing token.
func (m *Machine) Login(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		return nil
	}
	m.state = StateLoggingIn
	creds := m.creds
	m.mu.Unlock()

	token, err := m.login(ctx, creds)
	if err != nil {
		m.mu.Lock()
		m.state = StateFailed
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.sessionToken = token
	m.state = StateAuthenticated
	m.expiresAt = time.Time{}
	m.mu.Unlock()
	return nil
}

// Refresh is idempotent: it re-runs the certificate-login flow to
// obtain a fresh session token, moving through RefreshingToken and back
// to Authenticated on success. Callers drive its cadence externally
// (the exchange has no fixed token lifetime; four hours is a common
// choice).
func (m *Machine) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateRefreshingToken
	creds := m.creds
	m.mu.Unlock()

	token, err := m.login(ctx, creds)
	if err != nil {
		m.mu.Lock()
		m.state = StateFailed
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.sessionToken = token
	m.state = StateAuthenticated
	m.mu.Unlock()
	return nil
}

// KeepAlive pings the keep-alive endpoint to extend the current
// session's server-side lifetime without issuing a new token.
func (m *Machine) KeepAlive(ctx context.Context) error {
	m.mu.RLock()
	creds := m.creds
	token := m.sessionToken
	m.mu.RUnlock()

	if token == "" {
		return &KeepAliveError{Kind: "no_session"}
	}
	return m.keepAlive(ctx, creds, token)
}

// Logout transitions back to StateUnauthenticated and forgets the
// current session token. The exchange-side logout RPC, if any, is the
// caller's responsibility; this only updates local state.
func (m *Machine) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.sessionToken = ""
}
