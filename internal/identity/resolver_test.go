package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/faucetdb/warden/internal/model"
)

const (
	webClientID     = "web-client.apps.example.com"
	androidClientID = "android-client.apps.example.com"
	testIssuer      = "https://accounts.example.com"
)

type provider struct {
	key       *rsa.PrivateKey
	server    *httptest.Server
	certHits  atomic.Int32
	userEmail atomic.Value // string
}

func newProvider(t *testing.T) *provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	p := &provider{key: key}
	p.userEmail.Store("access@example.com")

	mux := http.NewServeMux()
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		p.certHits.Add(1)
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "k1",
			Algorithm: "RS256",
			Use:       "sig",
		}}}
		json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"email": p.userEmail.Load(), "email_verified": true})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("code") != "good-code" || r.Form.Get("redirect_uri") != "https://app.example.com/callback" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"good-access-token","token_type":"Bearer","expires_in":3600}`))
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *provider) resolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(Config{
		ClientID:     webClientID,
		ClientSecret: "secret",
		RedirectURIs: map[string]string{"admin": "https://app.example.com/callback"},
		Clients:      map[string]string{"android": androidClientID},
		Issuers:      []string{testIssuer},
		CertsURL:     p.server.URL + "/certs",
		UserInfoURL:  p.server.URL + "/userinfo",
		AuthURL:      p.server.URL + "/auth",
		TokenURL:     p.server.URL + "/token",
		HTTPClient:   p.server.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func (p *provider) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(p.key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func baseClaims(aud string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            aud,
		"sub":            "1234",
		"email":          "Admin@Example.com",
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func TestResolveEmailCredential(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)

	email, err := r.ResolveEmail(context.Background(), model.FederatedCredentials{
		Credential: p.sign(t, baseClaims(webClientID)),
	})
	if err != nil {
		t.Fatalf("ResolveEmail: %v", err)
	}
	if email != "Admin@Example.com" {
		t.Errorf("got %q, want %q", email, "Admin@Example.com")
	}
}

func TestResolveEmailMobileClient(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	ctx := context.Background()

	cred := p.sign(t, baseClaims(androidClientID))
	if _, err := r.ResolveEmail(ctx, model.FederatedCredentials{Credential: cred}); err != nil {
		t.Fatalf("audience match without hint: %v", err)
	}
	if _, err := r.ResolveEmail(ctx, model.FederatedCredentials{Credential: cred, Client: "android"}); err != nil {
		t.Fatalf("audience match with agreeing hint: %v", err)
	}
}

func TestResolveEmailHintMismatch(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)

	// An android token presented as if it came from the web client.
	cred := p.sign(t, baseClaims(androidClientID))
	_, err := r.ResolveEmail(context.Background(), model.FederatedCredentials{Credential: cred, Client: "web"})
	if !errors.Is(err, ErrIncorrectToken) {
		t.Fatalf("expected ErrIncorrectToken, got %v", err)
	}
}

func TestResolveEmailHintAloneNotTrusted(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)

	cred := p.sign(t, baseClaims("someone-else.apps.example.com"))
	for _, hint := range []string{"", "web", "android"} {
		_, err := r.ResolveEmail(context.Background(), model.FederatedCredentials{Credential: cred, Client: hint})
		if !errors.Is(err, ErrIncorrectToken) {
			t.Errorf("hint %q: expected ErrIncorrectToken, got %v", hint, err)
		}
	}
}

func TestResolveEmailRejects(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)

	expired := baseClaims(webClientID)
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := baseClaims(webClientID)
	wrongIssuer["iss"] = "https://evil.example.com"

	noEmail := baseClaims(webClientID)
	delete(noEmail, "email")

	unverified := baseClaims(webClientID)
	unverified["email_verified"] = false

	otherKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	forged := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims(webClientID))
	forged.Header["kid"] = "k1"
	forgedRaw, _ := forged.SignedString(otherKey)

	tests := []struct {
		name string
		raw  string
	}{
		{"expired", p.sign(t, expired)},
		{"wrong issuer", p.sign(t, wrongIssuer)},
		{"no email", p.sign(t, noEmail)},
		{"unverified", p.sign(t, unverified)},
		{"forged signature", forgedRaw},
		{"garbage", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveEmail(context.Background(), model.FederatedCredentials{Credential: tt.raw})
			if !errors.Is(err, ErrIncorrectToken) {
				t.Errorf("expected ErrIncorrectToken, got %v", err)
			}
		})
	}
}

func TestResolveEmailAccessToken(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	ctx := context.Background()

	email, err := r.ResolveEmail(ctx, model.FederatedCredentials{AccessToken: "good-access-token"})
	if err != nil {
		t.Fatalf("ResolveEmail: %v", err)
	}
	if email != "access@example.com" {
		t.Errorf("got %q, want %q", email, "access@example.com")
	}

	_, err = r.ResolveEmail(ctx, model.FederatedCredentials{AccessToken: "bad"})
	if !errors.Is(err, ErrIncorrectToken) {
		t.Errorf("expected ErrIncorrectToken, got %v", err)
	}

	p.userEmail.Store("")
	_, err = r.ResolveEmail(ctx, model.FederatedCredentials{AccessToken: "good-access-token"})
	if !errors.Is(err, ErrIncorrectToken) {
		t.Errorf("missing email: expected ErrIncorrectToken, got %v", err)
	}
}

func TestResolveEmailEmptyPayload(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	_, err := r.ResolveEmail(context.Background(), model.FederatedCredentials{})
	if !errors.Is(err, ErrIncorrectToken) {
		t.Fatalf("expected ErrIncorrectToken, got %v", err)
	}
}

func TestKeySetCached(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.ResolveEmail(ctx, model.FederatedCredentials{Credential: p.sign(t, baseClaims(webClientID))}); err != nil {
			t.Fatalf("ResolveEmail: %v", err)
		}
	}
	if n := p.certHits.Load(); n != 1 {
		t.Errorf("key set fetched %d times, want 1", n)
	}
}

func TestKeySetUnknownKidThrottled(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	ctx := context.Background()

	now := time.Now()
	r.keys.now = func() time.Time { return now }

	if _, err := r.ResolveEmail(ctx, model.FederatedCredentials{Credential: p.sign(t, baseClaims(webClientID))}); err != nil {
		t.Fatalf("ResolveEmail: %v", err)
	}

	otherKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	unknownKid := func(i int) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims(webClientID))
		tok.Header["kid"] = fmt.Sprintf("x%d", i)
		raw, err := tok.SignedString(otherKey)
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		return raw
	}

	for i := 0; i < 50; i++ {
		_, err := r.ResolveEmail(ctx, model.FederatedCredentials{Credential: unknownKid(i)})
		if !errors.Is(err, ErrIncorrectToken) {
			t.Fatalf("expected ErrIncorrectToken, got %v", err)
		}
	}
	if n := p.certHits.Load(); n != 1 {
		t.Errorf("unknown kids refetched the key set: %d fetches, want 1", n)
	}

	// Once the set is old enough an unknown kid may pick up a rotation.
	now = now.Add(minKidRefreshInterval)
	r.ResolveEmail(ctx, model.FederatedCredentials{Credential: unknownKid(50)})
	r.ResolveEmail(ctx, model.FederatedCredentials{Credential: unknownKid(51)})
	if n := p.certHits.Load(); n != 2 {
		t.Errorf("after the refresh interval: %d fetches, want 2", n)
	}
}

func TestExchangeCodeForTokens(t *testing.T) {
	p := newProvider(t)
	r := p.resolver(t)
	ctx := context.Background()

	tok, err := r.ExchangeCodeForTokens(ctx, "good-code", "admin")
	if err != nil {
		t.Fatalf("ExchangeCodeForTokens: %v", err)
	}
	if tok.AccessToken != "good-access-token" {
		t.Errorf("got access token %q", tok.AccessToken)
	}

	if _, err := r.ExchangeCodeForTokens(ctx, "good-code", "mobile"); !errors.Is(err, ErrIncorrectToken) {
		t.Errorf("unknown context: expected ErrIncorrectToken, got %v", err)
	}
	if _, err := r.ExchangeCodeForTokens(ctx, "bad-code", "admin"); !errors.Is(err, ErrIncorrectToken) {
		t.Errorf("bad code: expected ErrIncorrectToken, got %v", err)
	}
}

func TestNewRequiresClientID(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error without client id")
	}
}

func TestClientsOrder(t *testing.T) {
	r, err := New(Config{
		ClientID: "root",
		Clients:  map[string]string{"ios": "i", "android": "a"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := r.Clients()
	want := []string{RootClient, "android", "ios"}
	if len(got) != len(want) {
		t.Fatalf("got %d clients, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Name != want[i] {
			t.Errorf("client %d: got %q, want %q", i, c.Name, want[i])
		}
	}
}
