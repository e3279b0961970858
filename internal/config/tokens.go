package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/faucetdb/warden/internal/model"
)

// ---------------------------------------------------------------------------
// Admin session tokens
// ---------------------------------------------------------------------------

// sessionTokenRow maps to admin_session_tokens. Expiry is kept as unix
// milliseconds so range deletes compare the same way on every engine.
type sessionTokenRow struct {
	TokenKey  string                       `db:"token_key"`
	Token     string                       `db:"token"`
	Username  string                       `db:"username"`
	IP        string                       `db:"ip"`
	Level     int                          `db:"level"`
	Extra     jsonColumn[model.Privileges] `db:"extra"`
	ExpiresAt int64                        `db:"expires_at"`
}

func (r sessionTokenRow) toModel() model.SessionToken {
	return model.SessionToken{
		Username:  r.Username,
		Token:     r.Token,
		IP:        r.IP,
		Level:     r.Level,
		Extra:     r.Extra.V,
		ExpiresAt: time.UnixMilli(r.ExpiresAt).UTC(),
	}
}

// SaveSessionToken persists an issued token under key. A key collision
// yields ErrDuplicate.
func (s *Store) SaveSessionToken(ctx context.Context, key string, tok *model.SessionToken) error {
	row := sessionTokenRow{
		TokenKey:  key,
		Token:     tok.Token,
		Username:  tok.Username,
		IP:        tok.IP,
		Level:     tok.Level,
		Extra:     jsonOf(tok.Extra, true),
		ExpiresAt: tok.ExpiresAt.UnixMilli(),
	}
	const q = `INSERT INTO admin_session_tokens (token_key, token, username, ip, level, extra, expires_at)
		VALUES (:token_key, :token, :username, :ip, :level, :extra, :expires_at)`
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert session token: %w", err)
	}
	return nil
}

// GetSessionToken returns the token stored under key. Expired rows are
// still returned; callers compare ExpiresAt themselves.
func (s *Store) GetSessionToken(ctx context.Context, key string) (*model.SessionToken, error) {
	var row sessionTokenRow
	const q = `SELECT token_key, token, username, ip, level, extra, expires_at
		FROM admin_session_tokens WHERE token_key = ?`
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(q), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session token: %w", err)
	}
	tok := row.toModel()
	return &tok, nil
}

// DeleteExpiredSessionTokens removes tokens that expired at or before now.
func (s *Store) DeleteExpiredSessionTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM admin_session_tokens WHERE expires_at <= ?"), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired session tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired session tokens rows affected: %w", err)
	}
	return n, nil
}
