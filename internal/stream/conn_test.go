package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"betfair-streamcache/internal/codec"
	"betfair-streamcache/internal/metrics"
	"betfair-streamcache/pkg/types"
)

func strPtr(s string) *string { return &s }

func newTestProcessor() *Processor {
	return NewProcessor(Config{AppKey: "app-key"}, func() string { return "session-token" })
}

func decodeEncoded(t *testing.T, buf *bytes.Buffer, dst any) {
	t.Helper()
	line := bytes.TrimRight(buf.Bytes(), "\r\n")
	if err := json.Unmarshal(line, dst); err != nil {
		t.Fatalf("decoding encoded frame: %v, raw=%q", err, buf.String())
	}
}

func TestHandleCommandAppliesCurrentMarketTokens(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateMarketTokens(types.MarketChangeMessage{Clk: strPtr("clk-1"), InitialClk: strPtr("init-1")})

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	sub := types.MarketSubscriptionMessage{Op: types.OpMarketSubscription}
	if err := p.handleCommand(enc, sub); err != nil {
		t.Fatalf("handleCommand: %v", err)
	}

	var got types.MarketSubscriptionMessage
	decodeEncoded(t, &buf, &got)
	if got.Clk == nil || *got.Clk != "clk-1" {
		t.Errorf("Clk = %v, want clk-1", got.Clk)
	}
	if got.InitialClk == nil || *got.InitialClk != "init-1" {
		t.Errorf("InitialClk = %v, want init-1", got.InitialClk)
	}

	if p.lastMarketSub == nil {
		t.Fatal("expected lastMarketSub to be remembered")
	}
}

func TestUpdateMarketTokensRetainsWhicheverIsPresent(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateMarketTokens(types.MarketChangeMessage{InitialClk: strPtr("init-only")})
	p.updateMarketTokens(types.MarketChangeMessage{Clk: strPtr("clk-only")})

	if p.marketTokens.initialClk == nil || *p.marketTokens.initialClk != "init-only" {
		t.Errorf("initialClk = %v, want init-only (must survive a clk-only update)", p.marketTokens.initialClk)
	}
	if p.marketTokens.clk == nil || *p.marketTokens.clk != "clk-only" {
		t.Errorf("clk = %v, want clk-only", p.marketTokens.clk)
	}
}

func TestResendSubscriptionsFreshClearsTokens(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateMarketTokens(types.MarketChangeMessage{Clk: strPtr("clk-1"), InitialClk: strPtr("init-1")})
	p.lastMarketSub = &types.MarketSubscriptionMessage{Op: types.OpMarketSubscription}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	if err := p.resendSubscriptions(enc, true); err != nil {
		t.Fatalf("resendSubscriptions: %v", err)
	}

	var got types.MarketSubscriptionMessage
	decodeEncoded(t, &buf, &got)
	if got.Clk != nil || got.InitialClk != nil {
		t.Errorf("fresh resubscribe carried tokens: clk=%v initialClk=%v", got.Clk, got.InitialClk)
	}
}

func TestResendSubscriptionsNonFreshCarriesTokens(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateOrderTokens(types.OrderChangeMessage{Clk: strPtr("oclk"), InitialClk: strPtr("oinit")})
	p.lastOrderSub = &types.OrderSubscriptionMessage{Op: types.OpOrderSubscription}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	if err := p.resendSubscriptions(enc, false); err != nil {
		t.Fatalf("resendSubscriptions: %v", err)
	}

	var got types.OrderSubscriptionMessage
	decodeEncoded(t, &buf, &got)
	if got.Clk == nil || *got.Clk != "oclk" {
		t.Errorf("Clk = %v, want oclk", got.Clk)
	}
}

func TestDropTokensClearsBothMarketAndOrder(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateMarketTokens(types.MarketChangeMessage{Clk: strPtr("mclk")})
	p.updateOrderTokens(types.OrderChangeMessage{Clk: strPtr("oclk")})

	p.dropTokens()

	if p.marketTokens.clk != nil || p.orderTokens.clk != nil {
		t.Error("expected both resume token sets cleared")
	}
}

func TestHandleStatusInvalidClockDropsTokensAndEmitsResumeLost(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	p.updateMarketTokens(types.MarketChangeMessage{Clk: strPtr("mclk"), InitialClk: strPtr("minit")})
	p.lastMarketSub = &types.MarketSubscriptionMessage{Op: types.OpMarketSubscription}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)

	code := types.ErrorCodeInvalidClock
	ctx := context.Background()
	if err := p.handleStatus(ctx, enc, types.StatusMessage{Op: types.OpStatus, ErrorCode: &code}); err != nil {
		t.Fatalf("handleStatus: %v", err)
	}

	select {
	case ev := <-p.events:
		if ev.Kind != EventResumeLost {
			t.Errorf("event kind = %v, want EventResumeLost", ev.Kind)
		}
	default:
		t.Fatal("expected a ResumeLost event")
	}

	if p.marketTokens.clk != nil {
		t.Error("expected tokens cleared after InvalidClock")
	}

	var got types.MarketSubscriptionMessage
	decodeEncoded(t, &buf, &got)
	if got.Clk != nil || got.InitialClk != nil {
		t.Error("expected a clean resubscribe with no tokens after InvalidClock")
	}
}

func TestHandleStatusInvalidClockIncrementsResumeLostMetric(t *testing.T) {
	t.Parallel()

	reg := metrics.New("test")
	p := NewProcessor(Config{AppKey: "app-key", Metrics: reg}, func() string { return "session-token" })

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	code := types.ErrorCodeInvalidClock
	if err := p.handleStatus(context.Background(), enc, types.StatusMessage{Op: types.OpStatus, ErrorCode: &code}); err != nil {
		t.Fatalf("handleStatus: %v", err)
	}

	if got := testutil.ToFloat64(reg.ResumeLost); got != 1 {
		t.Errorf("ResumeLost = %v, want 1", got)
	}
}

func TestRunIncrementsReconnectsMetricOnDialFailure(t *testing.T) {
	t.Parallel()

	reg := metrics.New("test2")
	p := NewProcessor(Config{
		Addr:        "127.0.0.1:0",
		DialTimeout: 10 * time.Millisecond,
		MinBackoff:  time.Millisecond,
		MaxBackoff:  time.Millisecond,
		Metrics:     reg,
	}, func() string { return "session-token" })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = p.Run(ctx)

	if got := testutil.ToFloat64(reg.Reconnects); got < 1 {
		t.Errorf("Reconnects = %v, want at least 1", got)
	}
}

func TestHandleStatusConnectionClosedFailureIsFatal(t *testing.T) {
	t.Parallel()

	p := newTestProcessor()
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)

	failure := types.StatusCodeFailure
	closed := true
	err := p.handleStatus(context.Background(), enc, types.StatusMessage{
		Op: types.OpStatus, StatusCode: &failure, ConnectionClosed: &closed,
	})
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if _, ok := err.(*statusFailure); !ok {
		t.Errorf("error type = %T, want *statusFailure", err)
	}
}

func TestHandshakeAndServeAuthenticatesAndRoutesMarketChange(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	p := NewProcessor(Config{AppKey: "app-key"}, func() string { return "session-token" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.handshakeAndServe(ctx, client) }()

	serverErrs := make(chan error, 1)
	go func() {
		// The client's outbound frames (authentication, subscriptions) are
		// request messages, which codec.Decoder does not recognize — it
		// only decodes the server -> client union. Read the raw line and
		// unmarshal it directly instead.
		reader := bufio.NewReader(server)
		enc := codec.NewEncoder(server)

		if err := enc.Encode(types.ConnectionMessage{Op: types.OpConnection, ConnectionID: "conn-1"}); err != nil {
			serverErrs <- err
			return
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			serverErrs <- err
			return
		}
		var auth types.AuthenticationMessage
		if err := json.Unmarshal(bytes.TrimRight(line, "\r\n"), &auth); err != nil {
			serverErrs <- err
			return
		}
		if auth.Session != "session-token" || auth.AppKey != "app-key" {
			serverErrs <- fmt.Errorf("unexpected authentication message: %+v", auth)
			return
		}

		success := types.StatusCodeSuccess
		if err := enc.Encode(types.StatusMessage{Op: types.OpStatus, StatusCode: &success}); err != nil {
			serverErrs <- err
			return
		}

		clk := "clk-after-auth"
		if err := enc.Encode(types.MarketChangeMessage{Op: types.OpMarketChange, Clk: &clk}); err != nil {
			serverErrs <- err
			return
		}
		serverErrs <- nil
	}()

	var gotConnected, gotAuthed, gotMarketChange bool
	timeout := time.After(2 * time.Second)
	for !(gotConnected && gotAuthed && gotMarketChange) {
		select {
		case ev := <-p.Events():
			switch ev.Kind {
			case EventTCPConnected:
				gotConnected = true
				if ev.ConnectionID != "conn-1" {
					t.Errorf("ConnectionID = %q, want conn-1", ev.ConnectionID)
				}
			case EventAuthenticated:
				gotAuthed = true
			case EventMarketChange:
				gotMarketChange = true
				if ev.MarketChange.Clk == nil || *ev.MarketChange.Clk != "clk-after-auth" {
					t.Errorf("MarketChange.Clk = %v, want clk-after-auth", ev.MarketChange.Clk)
				}
			}
		case err := <-serverErrs:
			if err != nil {
				t.Fatalf("fake server: %v", err)
			}
		case <-timeout:
			t.Fatal("timed out waiting for handshake events")
		}
	}

	if p.marketTokens.clk == nil || *p.marketTokens.clk != "clk-after-auth" {
		t.Errorf("processor did not record clk from the market change message")
	}

	cancel()
	client.Close()
	server.Close()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("handshakeAndServe returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handshakeAndServe did not return after cancellation")
	}
}
