package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/warden/internal/auth"
	"github.com/faucetdb/warden/internal/model"
)

// testClock is a settable clock for expiry tests.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestSessions(t *testing.T, store TokenStore, d *AdminDirectory) (*SessionManager, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Now()}
	m := NewSessionManager(store, d, 0, nil)
	m.now = clock.now
	return m, clock
}

func tokenBackends(t *testing.T) map[string]func(*testing.T) (TokenStore, *AdminDirectory) {
	return map[string]func(*testing.T) (TokenStore, *AdminDirectory){
		"sql": func(t *testing.T) (TokenStore, *AdminDirectory) {
			d, store := newTestDirectory(t)
			return store, d
		},
		"cache": func(t *testing.T) (TokenStore, *AdminDirectory) {
			d, _ := newTestDirectory(t)
			return NewCacheTokenStore(16, time.Hour), d
		},
	}
}

func TestTokenLifecycle(t *testing.T) {
	for name, backend := range tokenBackends(t) {
		t.Run(name, func(t *testing.T) {
			store, d := backend(t)
			m, clock := newTestSessions(t, store, d)
			ctx := context.Background()

			mustAddAdmin(t, d, model.AdminInput{Email: "sess@example.com", Level: intPtr(2)})

			tok, err := m.IssueToken(ctx, "sess@example.com", "10.0.0.1", 2, model.Privileges{BlockPrivilege: true})
			if err != nil {
				t.Fatalf("IssueToken: %v", err)
			}
			if !strings.HasPrefix(tok.Token, auth.AdminTokenPrefix) {
				t.Errorf("token %q lacks admin prefix", tok.Token)
			}
			if want := clock.t.Add(DefaultTokenTTL); !tok.ExpiresAt.Equal(want.UTC()) {
				t.Errorf("expires at %v, want %v", tok.ExpiresAt, want)
			}

			check := func(label, token, ip string, level int, want bool) {
				t.Helper()
				got, err := m.ValidateToken(ctx, token, ip, level)
				if err != nil {
					t.Fatalf("%s: ValidateToken: %v", label, err)
				}
				if got != want {
					t.Errorf("%s: got %v, want %v", label, got, want)
				}
			}

			check("fresh", tok.Token, "10.0.0.1", 2, true)
			check("looser level", tok.Token, "10.0.0.1", 4, true)
			check("stricter level", tok.Token, "10.0.0.1", 1, false)
			check("other ip", tok.Token, "10.0.0.2", 2, false)
			check("unknown token", auth.NewAdminToken(), "10.0.0.1", 2, false)
			check("no prefix", strings.TrimPrefix(tok.Token, auth.AdminTokenPrefix), "10.0.0.1", 2, false)
			check("empty", "", "10.0.0.1", 2, false)

			clock.t = clock.t.Add(DefaultTokenTTL - time.Second)
			check("just before expiry", tok.Token, "10.0.0.1", 2, true)
			clock.t = clock.t.Add(time.Second)
			check("at expiry", tok.Token, "10.0.0.1", 2, false)
		})
	}
}

func TestTokenRevokedByDeactivation(t *testing.T) {
	for name, backend := range tokenBackends(t) {
		t.Run(name, func(t *testing.T) {
			store, d := backend(t)
			m, _ := newTestSessions(t, store, d)
			ctx := context.Background()

			mustAddAdmin(t, d, model.AdminInput{Email: "gone@example.com", Level: intPtr(1)})
			tok, err := m.IssueToken(ctx, "gone@example.com", "192.168.1.9", 1, model.Privileges{})
			if err != nil {
				t.Fatalf("IssueToken: %v", err)
			}

			if _, err := d.UpdateAdmin(ctx, "gone@example.com", model.AdminPatch{Active: boolPtr(false)}); err != nil {
				t.Fatalf("deactivate: %v", err)
			}
			ok, err := m.ValidateToken(ctx, tok.Token, "192.168.1.9", model.MaxLevel)
			if err != nil {
				t.Fatalf("ValidateToken: %v", err)
			}
			if ok {
				t.Error("token still valid after deactivation")
			}
		})
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	for name, backend := range tokenBackends(t) {
		t.Run(name, func(t *testing.T) {
			store, d := backend(t)
			m, clock := newTestSessions(t, store, d)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if _, err := m.IssueToken(ctx, "p@example.com", "1.1.1.1", 1, model.Privileges{}); err != nil {
					t.Fatalf("IssueToken: %v", err)
				}
			}
			if n, err := m.PurgeExpiredTokens(ctx); err != nil || n != 0 {
				t.Fatalf("purge before expiry: got (%d, %v), want (0, nil)", n, err)
			}

			clock.t = clock.t.Add(DefaultTokenTTL + time.Minute)
			n, err := m.PurgeExpiredTokens(ctx)
			if err != nil {
				t.Fatalf("PurgeExpiredTokens: %v", err)
			}
			if n != 3 {
				t.Errorf("purged %d, want 3", n)
			}
		})
	}
}

type failingTokenStore struct{ TokenStore }

func (failingTokenStore) SaveSessionToken(context.Context, string, *model.SessionToken) error {
	return errors.New("store unavailable")
}

func TestIssueTokenStoreFailure(t *testing.T) {
	d, store := newTestDirectory(t)
	m := NewSessionManager(failingTokenStore{store}, d, time.Hour, nil)

	_, err := m.IssueToken(context.Background(), "x@example.com", "1.2.3.4", 1, model.Privileges{})
	if !errors.Is(err, ErrTokenCreate) {
		t.Fatalf("expected ErrTokenCreate, got %v", err)
	}
}

func TestCacheTokenStoreDuplicate(t *testing.T) {
	c := NewCacheTokenStore(4, time.Hour)
	ctx := context.Background()
	tok := &model.SessionToken{Username: "a@example.com", Token: "adm_x", ExpiresAt: time.Now().Add(time.Hour)}

	if err := c.SaveSessionToken(ctx, "k", tok); err != nil {
		t.Fatalf("SaveSessionToken: %v", err)
	}
	if err := c.SaveSessionToken(ctx, "k", tok); err == nil {
		t.Fatal("expected duplicate key error")
	}
	got, err := c.GetSessionToken(ctx, "k")
	if err != nil {
		t.Fatalf("GetSessionToken: %v", err)
	}
	if got.Username != "a@example.com" {
		t.Errorf("username: got %q", got.Username)
	}
	if c.Len() != 1 {
		t.Errorf("len: got %d, want 1", c.Len())
	}
}

func TestNewSessionManagerTTL(t *testing.T) {
	if got := NewSessionManager(nil, nil, 0, nil).TTL(); got != DefaultTokenTTL {
		t.Errorf("default ttl: got %v, want %v", got, DefaultTokenTTL)
	}
	if got := NewSessionManager(nil, nil, time.Hour, nil).TTL(); got != time.Hour {
		t.Errorf("custom ttl: got %v, want %v", got, time.Hour)
	}
}
