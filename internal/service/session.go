package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faucetdb/warden/internal/auth"
	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/model"
)

// DefaultTokenTTL is the lifetime of an admin session.
const DefaultTokenTTL = 8 * time.Hour

// TokenStore persists session tokens under a key derived from the token and
// the client IP. Saving an existing key fails with config.ErrDuplicate and a
// miss is reported with config.ErrNotFound. Expired tokens may still be
// returned; the SessionManager checks expiry itself.
type TokenStore interface {
	SaveSessionToken(ctx context.Context, key string, tok *model.SessionToken) error
	GetSessionToken(ctx context.Context, key string) (*model.SessionToken, error)
	DeleteExpiredSessionTokens(ctx context.Context, now time.Time) (int64, error)
}

// AccessChecker reports whether an admin still satisfies a level
// requirement. AdminDirectory implements it.
type AccessChecker interface {
	CheckAccessLevel(ctx context.Context, email string, requiredLevel int) (bool, error)
}

// SessionManager issues and validates admin session tokens.
type SessionManager struct {
	store  TokenStore
	access AccessChecker
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionManager creates a SessionManager. A non-positive ttl selects
// DefaultTokenTTL.
func NewSessionManager(store TokenStore, access AccessChecker, ttl time.Duration, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		store:  store,
		access: access,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// IssueToken mints a session token bound to ip. Any failure to store it is
// reported as ErrTokenCreate and the caller may retry with a new token.
func (m *SessionManager) IssueToken(ctx context.Context, email, ip string, level int, extra model.Privileges) (*model.SessionToken, error) {
	tok := &model.SessionToken{
		Username:  normalizeEmail(email),
		Token:     auth.NewAdminToken(),
		IP:        ip,
		Level:     level,
		Extra:     extra,
		ExpiresAt: m.now().Add(m.ttl).UTC(),
	}
	if err := m.store.SaveSessionToken(ctx, auth.TokenKey(tok.Token, ip), tok); err != nil {
		m.logger.Error("failed to store session token", "username", tok.Username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenCreate, err)
	}
	m.logger.Info("session token issued", "username", tok.Username, "level", level, "expires_at", tok.ExpiresAt)
	return tok, nil
}

// ValidateToken reports whether token was issued to ip, has not expired, and
// belongs to an admin that still satisfies requiredLevel. Tokens without the
// admin prefix are rejected without a store lookup.
func (m *SessionManager) ValidateToken(ctx context.Context, token, ip string, requiredLevel int) (bool, error) {
	if !auth.IsAdminToken(token) {
		return false, nil
	}
	tok, err := m.store.GetSessionToken(ctx, auth.TokenKey(token, ip))
	if errors.Is(err, config.ErrNotFound) {
		m.logger.Debug("session token not found", "ip", ip)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get session token: %w", err)
	}
	if tok.Expired(m.now()) {
		m.logger.Debug("session token expired", "username", tok.Username)
		return false, nil
	}
	return m.access.CheckAccessLevel(ctx, tok.Username, requiredLevel)
}

// PurgeExpiredTokens deletes tokens whose expiry has passed and returns how
// many were removed.
func (m *SessionManager) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessionTokens(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("purge session tokens: %w", err)
	}
	if n > 0 {
		m.logger.Info("expired session tokens purged", "count", n)
	}
	return n, nil
}
