// Package auth holds the credential cache and the auth-gated HTTP transport.
// Login and session establishment happen outside this daemon; credentials
// arrive through a TokenSource.
package auth

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Credentials is a token/uid pair with its expiry.
type Credentials struct {
	Token     string
	UID       string
	ExpiresAt time.Time
}

// TokenSource supplies fresh credentials, typically backed by the external
// login flow.
type TokenSource interface {
	Refresh(ctx context.Context) (Credentials, error)
}

// Tokens are treated as expired this long before their actual expiry so an
// in-flight request never carries a token that lapses mid-request.
const expirySkew = 5 * time.Minute

const refreshTimeout = 10 * time.Second

// Manager caches the current credentials and serializes refreshes. Safe for
// concurrent use.
type Manager struct {
	mu     sync.RWMutex
	source TokenSource
	creds  Credentials
	logger *zap.Logger
}

// NewManager creates a credential manager backed by the given source.
func NewManager(source TokenSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{source: source, logger: logger}
}

// SetCredentials installs credentials directly. A zero expiry is filled in
// from the token's exp claim when the token is a JWT.
func (m *Manager) SetCredentials(c Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(c)
}

// Credentials returns the currently cached credentials.
func (m *Manager) Credentials() Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds
}

// Valid reports whether the cached token exists and has not passed its
// local expiry check.
func (m *Manager) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validLocked()
}

// Invalidate marks the cached credentials expired so the next RefreshSync
// consults the source even though the local expiry check would still pass.
// Called when the server rejects a token the local check considered valid,
// e.g. after a server-side revocation.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds.ExpiresAt = time.Time{}
}

// RefreshSync fetches fresh credentials from the source, blocking the caller.
// Concurrent refreshes collapse into one: a caller that waited on another
// refresh re-checks validity instead of refreshing again.
func (m *Manager) RefreshSync(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validLocked() {
		return true
	}
	if m.source == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	creds, err := m.source.Refresh(ctx)
	if err != nil {
		m.logger.Warn("token refresh failed", zap.Error(err))
		return false
	}
	m.setLocked(creds)
	return m.validLocked()
}

func (m *Manager) setLocked(c Credentials) {
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = tokenExpiry(c.Token)
	}
	if c.UID == "" {
		c.UID = tokenUID(c.Token)
	}
	m.creds = c
}

func (m *Manager) validLocked() bool {
	return m.creds.Token != "" && time.Now().Add(expirySkew).Before(m.creds.ExpiresAt)
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// server remains the authority, this only drives the local pre-flight check.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func tokenUID(token string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		return uid
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// FileTokenSource reads a JWT provisioned by the login flow from a file in
// the session directory. Expiry and uid come from the token claims.
type FileTokenSource struct {
	Path string
}

// Refresh re-reads the token file.
func (s *FileTokenSource) Refresh(_ context.Context) (Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Credentials{}, err
	}
	token := strings.TrimSpace(string(data))
	return Credentials{Token: token}, nil
}
