package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"

	"betfair-streamcache/internal/auth"
)

func TestClientLoginSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionToken":"tok-123","loginStatus":"SUCCESS"}`))
	}))
	defer srv.Close()

	c := NewClient(JurisdictionGlobal, emptyCert(), "app-key")
	c.endpoints.CertLogin = srv.URL

	token, err := c.Login(context.Background(), auth.Credentials{
		Username: auth.NewSecret("u"),
		Password: auth.NewSecret("p"),
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want tok-123", token)
	}
}

func TestClientLoginFailureStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionToken":"","loginStatus":"INVALID_USERNAME_OR_PASSWORD"}`))
	}))
	defer srv.Close()

	c := NewClient(JurisdictionGlobal, emptyCert(), "app-key")
	c.endpoints.CertLogin = srv.URL

	_, err := c.Login(context.Background(), auth.Credentials{
		Username: auth.NewSecret("u"),
		Password: auth.NewSecret("p"),
	})
	var loginErr *auth.LoginError
	if err == nil {
		t.Fatal("expected error")
	}
	if le, ok := err.(*auth.LoginError); !ok {
		t.Fatalf("error type = %T, want *auth.LoginError", err)
	} else {
		loginErr = le
	}
	if loginErr.Kind != "INVALID_USERNAME_OR_PASSWORD" {
		t.Errorf("Kind = %q", loginErr.Kind)
	}
}

func TestClientKeepAliveFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"","product":"","status":"FAIL","error":"NO_SESSION"}`))
	}))
	defer srv.Close()

	c := NewClient(JurisdictionGlobal, emptyCert(), "app-key")
	c.endpoints.KeepAlive = srv.URL

	err := c.KeepAlive(context.Background(), auth.Credentials{}, "stale-token")
	if err == nil {
		t.Fatal("expected error")
	}
	ka, ok := err.(*auth.KeepAliveError)
	if !ok {
		t.Fatalf("error type = %T, want *auth.KeepAliveError", err)
	}
	if ka.Kind != "NO_SESSION" {
		t.Errorf("Kind = %q", ka.Kind)
	}
}

func TestCallJSONRPCDecompressesGzipBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(`{"jsonrpc":"2.0","result":{"marketCount":2},"id":1}`))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := NewClient(JurisdictionGlobal, emptyCert(), "app-key")
	c.endpoints.RestBase = srv.URL

	var dst struct {
		MarketCount int `json:"marketCount"`
	}
	if err := c.CallJSONRPC(context.Background(), "tok", "SportsAPING/v1.0/listMarketCatalogue", nil, &dst); err != nil {
		t.Fatalf("CallJSONRPC: %v", err)
	}
	if dst.MarketCount != 2 {
		t.Errorf("MarketCount = %d, want 2", dst.MarketCount)
	}
}

// emptyCert returns a zero-value tls.Certificate; the test servers above
// don't request a client certificate, so an empty one is never presented.
func emptyCert() (cert tls.Certificate) { return }
