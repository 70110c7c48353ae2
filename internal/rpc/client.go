// Package rpc implements the HTTPS endpoints consumed by the
// authentication state machine: certificate login, keep-alive, and
// logout. It wraps resty the way the teacher's exchange REST client
// does, adding the mutual-TLS transport cert-login requires.
package rpc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"

	"betfair-streamcache/internal/auth"
	"betfair-streamcache/internal/ratelimit"
)

// Client talks to the certificate-login, keep-alive, and logout
// endpoints for one jurisdiction.
type Client struct {
	endpoints Endpoints
	loginHTTP *resty.Client // mTLS transport, used only for cert-login
	http      *resty.Client // session-token-bearing transport for keep-alive/logout
	limiter   *ratelimit.Bucket
}

// NewClient builds a Client for the given jurisdiction. The client
// certificate is presented only to the cert-login endpoint, matching
// the exchange's requirement that only that single call be mutually
// authenticated.
func NewClient(j Jurisdiction, cert tls.Certificate, appKey string) *Client {
	endpoints := EndpointsFor(j)

	loginHTTP := resty.New().
		SetTimeout(15 * time.Second).
		SetTLSClientConfig(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}).
		SetHeader("X-Application", appKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded")

	http := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("X-Application", appKey).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Encoding", "gzip, deflate")

	return &Client{
		endpoints: endpoints,
		loginHTTP: loginHTTP,
		http:      http,
		limiter:   ratelimit.New(5, 1), // certificate-login is heavily throttled server-side
	}
}

// certLoginResponse mirrors the JSON body of a successful or failed
// certificate-login call.
type certLoginResponse struct {
	SessionToken string `json:"sessionToken"`
	LoginStatus  string `json:"loginStatus"`
}

// Login performs the certificate-login HTTPS round trip and returns the
// session token on success. It is the auth.LoginFunc this package hands
// to auth.NewMachine.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var result certLoginResponse
	resp, err := c.loginHTTP.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": creds.Username.Expose(),
			"password": creds.Password.Expose(),
		}).
		SetResult(&result).
		Post(c.endpoints.CertLogin)
	if err != nil {
		return "", fmt.Errorf("rpc: cert login: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &auth.LoginError{Kind: fmt.Sprintf("http_%d", resp.StatusCode())}
	}
	if result.LoginStatus != "SUCCESS" {
		return "", &auth.LoginError{Kind: result.LoginStatus}
	}
	return result.SessionToken, nil
}

type keepAliveResponse struct {
	Token   string `json:"token"`
	Product string `json:"product"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// KeepAlive extends the server-side lifetime of an existing session. It
// is the auth.KeepAliveFunc this package hands to auth.NewMachine.
func (c *Client) KeepAlive(ctx context.Context, creds auth.Credentials, sessionToken string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var result keepAliveResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Authentication", sessionToken).
		SetResult(&result).
		Get(c.endpoints.KeepAlive)
	if err != nil {
		return fmt.Errorf("rpc: keep alive: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || result.Status != "SUCCESS" {
		kind := result.Error
		if kind == "" {
			kind = fmt.Sprintf("http_%d", resp.StatusCode())
		}
		return &auth.KeepAliveError{Kind: kind}
	}
	return nil
}

// Logout invalidates the current session token server-side.
func (c *Client) Logout(ctx context.Context, sessionToken string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var result keepAliveResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Authentication", sessionToken).
		SetResult(&result).
		Get(c.endpoints.Logout)
	if err != nil {
		return fmt.Errorf("rpc: logout: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || result.Status != "SUCCESS" {
		return fmt.Errorf("rpc: logout: status %d body %q", resp.StatusCode(), resp.String())
	}
	return nil
}

// jsonRPCError is the JSON-RPC 2.0 error object the Sports/Account/
// Heartbeat RPCs return in place of a result on failure.
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonRPCError) Error() string {
	return fmt.Sprintf("rpc: json-rpc error %d: %s", e.Code, e.Message)
}

// CallJSONRPC issues a JSON-RPC 2.0 request against one of the Sports,
// Account, or Heartbeat operations, decompressing a gzip-encoded
// response body before unmarshalling result into dst. method is the
// fully-qualified operation name (e.g. "SportsAPING/v1.0/listMarketBook").
func (c *Client) CallJSONRPC(ctx context.Context, sessionToken, method string, params any, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Authentication", sessionToken).
		SetHeader("Content-Type", "application/json").
		SetDoNotParseResponse(true).
		SetBody(body).
		Post(c.endpoints.RestBase + "/betting/json-rpc/v1")
	if err != nil {
		return fmt.Errorf("rpc: json-rpc call: %w", err)
	}
	defer resp.RawBody().Close()

	var reader io.Reader = resp.RawBody()
	if resp.Header().Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return fmt.Errorf("rpc: gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *jsonRPCError   `json:"error"`
	}
	if err := json.NewDecoder(reader).Decode(&envelope); err != nil {
		return fmt.Errorf("rpc: json-rpc decode: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if dst != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, dst); err != nil {
			return fmt.Errorf("rpc: json-rpc result decode: %w", err)
		}
	}
	return nil
}
