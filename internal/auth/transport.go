package auth

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transport is an http.RoundTripper that gates outbound calls on valid
// credentials: it refreshes an expired token before sending, attaches the
// auth and identity headers, and on a 401 response refreshes once and retries
// the request exactly once. It never loops.
type Transport struct {
	Base    http.RoundTripper
	Manager *Manager
	Logger  *zap.Logger
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Manager.Valid() {
		if !t.Manager.RefreshSync(req.Context()) {
			// Short-circuit: do not send without credentials.
			return unauthorizedResponse(req), nil
		}
	}

	authed, err := t.withAuthHeaders(req)
	if err != nil {
		return nil, err
	}
	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Single retry after one refresh; whatever comes back is final. The
	// server rejected a token the local check still accepts, so drop the
	// cached expiry first or the refresh would be a no-op.
	drainBody(resp)
	t.Manager.Invalidate()
	if !t.Manager.RefreshSync(req.Context()) {
		return unauthorizedResponse(req), nil
	}
	retry, err := t.withAuthHeaders(req)
	if err != nil {
		return nil, err
	}
	if t.Logger != nil {
		t.Logger.Info("retrying request after token refresh", zap.String("url", req.URL.String()))
	}
	return t.base().RoundTrip(retry)
}

func (t *Transport) withAuthHeaders(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	// Rewind the body so the request stays replayable for the 401 retry.
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}
	out.Header.Set("Content-Type", "application/json")
	out.Header.Set("Accept", "application/json")
	creds := t.Manager.Credentials()
	if creds.Token != "" {
		out.Header.Set("Authorization", creds.Token)
	}
	if creds.UID != "" {
		out.Header.Set("Uid", creds.UID)
	}
	return out, nil
}

func unauthorizedResponse(req *http.Request) *http.Response {
	return &http.Response{
		Status:     "401 Unauthorized",
		StatusCode: http.StatusUnauthorized,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("authentication required")),
		Request:    req,
	}
}

func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// Timeouts configures the HTTP client built by NewHTTPClient.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// NewHTTPClient builds the shared HTTP client: fixed connect/read timeouts
// with the auth-gated transport wrapped around a standard one. Constructed
// once at process start and never reconfigured.
func NewHTTPClient(manager *Manager, timeouts Timeouts, logger *zap.Logger) *http.Client {
	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: timeouts.Connect,
		}).DialContext,
		TLSHandshakeTimeout:   timeouts.Connect,
		ResponseHeaderTimeout: timeouts.Read,
	}
	return &http.Client{
		Timeout: timeouts.Read + timeouts.Write,
		Transport: &Transport{
			Base:    base,
			Manager: manager,
			Logger:  logger,
		},
	}
}
