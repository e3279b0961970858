// Package identity exchanges federated identity-provider credentials for a
// verified email address.
//
// Two payload shapes are accepted: a signed ID token, verified locally
// against the provider's published keys, and an OAuth2 access token, which
// is presented to the provider's userinfo endpoint. The token's audience is
// the only trust anchor for choosing which registered client it belongs to;
// a caller-supplied client hint can narrow that choice but never widen it.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/faucetdb/warden/internal/model"
)

// ErrIncorrectToken is wrapped by every resolution failure.
var ErrIncorrectToken = errors.New("incorrect identity token")

// RootClient names the web client registered from the top-level client id.
const RootClient = "web"

const (
	defaultTimeout     = 10 * time.Second
	defaultKeyCacheTTL = time.Hour
	maxUserInfoBytes   = 64 << 10
)

// Client is one registered OAuth client.
type Client struct {
	Name string
	ID   string
}

// Config describes the provider endpoints and the registered clients.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURIs map[string]string // redirect context -> URI
	Clients      map[string]string // extra client name -> client id
	Issuers      []string
	CertsURL     string
	UserInfoURL  string
	AuthURL      string
	TokenURL     string
	Timeout      time.Duration
	KeyCacheTTL  time.Duration
	HTTPClient   *http.Client
}

// Resolver verifies identity-provider payloads.
type Resolver struct {
	clients      []Client // root client first
	issuers      []string
	redirectURIs map[string]string
	oauth        oauth2.Config
	userInfoURL  string
	httpClient   *http.Client
	keys         *keySet
	logger       *slog.Logger
}

// New builds a Resolver. The root client id is required.
func New(cfg Config, logger *slog.Logger) (*Resolver, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("identity: client id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ttl := cfg.KeyCacheTTL
	if ttl <= 0 {
		ttl = defaultKeyCacheTTL
	}

	clients := []Client{{Name: RootClient, ID: cfg.ClientID}}
	names := make([]string, 0, len(cfg.Clients))
	for name := range cfg.Clients {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if name == RootClient || cfg.Clients[name] == "" {
			continue
		}
		clients = append(clients, Client{Name: name, ID: cfg.Clients[name]})
	}

	return &Resolver{
		clients:      clients,
		issuers:      cfg.Issuers,
		redirectURIs: cfg.RedirectURIs,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: []string{"openid", "email"},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  client,
		keys:        newKeySet(cfg.CertsURL, client, ttl),
		logger:      logger,
	}, nil
}

// Clients returns the registered clients, root first.
func (r *Resolver) Clients() []Client {
	return slices.Clone(r.clients)
}

func (r *Resolver) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
}

// ExchangeCodeForTokens redeems an authorization code using the redirect URI
// registered for redirectContext.
func (r *Resolver) ExchangeCodeForTokens(ctx context.Context, code, redirectContext string) (*oauth2.Token, error) {
	uri, ok := r.redirectURIs[redirectContext]
	if !ok {
		return nil, fmt.Errorf("%w: unknown redirect context %q", ErrIncorrectToken, redirectContext)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrIncorrectToken)
	}

	cfg := r.oauth
	cfg.RedirectURL = uri
	tok, err := cfg.Exchange(r.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrIncorrectToken, err)
	}
	return tok, nil
}

// ResolveEmail returns the verified email carried by creds. A signed
// credential takes precedence over an access token when both are present.
func (r *Resolver) ResolveEmail(ctx context.Context, creds model.FederatedCredentials) (string, error) {
	switch {
	case creds.Credential != "":
		return r.verifyCredential(ctx, creds.Credential, creds.Client)
	case creds.AccessToken != "":
		return r.fetchUserInfo(ctx, creds.AccessToken)
	default:
		return "", fmt.Errorf("%w: no credential or access token", ErrIncorrectToken)
	}
}

type idTokenClaims struct {
	Email           string `json:"email"`
	EmailVerified   *bool  `json:"email_verified,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	jwt.RegisteredClaims
}

func (r *Resolver) verifyCredential(ctx context.Context, raw, hint string) (string, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return r.keys.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIncorrectToken, err)
	}

	if len(r.issuers) > 0 && !slices.Contains(r.issuers, claims.Issuer) {
		return "", fmt.Errorf("%w: unexpected issuer %q", ErrIncorrectToken, claims.Issuer)
	}

	client, err := r.selectClient(claims.Audience, hint)
	if err != nil {
		return "", err
	}
	if !slices.Contains(claims.Audience, client.ID) {
		return "", fmt.Errorf("%w: audience does not include client %s", ErrIncorrectToken, client.Name)
	}

	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return "", fmt.Errorf("%w: email not verified", ErrIncorrectToken)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("%w: token carries no email claim", ErrIncorrectToken)
	}

	r.logger.Debug("identity credential verified", "client", client.Name, "subject", claims.Subject)
	return claims.Email, nil
}

// selectClient picks the registered client a token belongs to. The audience
// claim decides; a hint must agree with it and is never trusted on its own.
// With no audience match the root client is returned, and the caller's
// audience check then fails.
func (r *Resolver) selectClient(aud jwt.ClaimStrings, hint string) (Client, error) {
	var matched *Client
	for i := range r.clients {
		if slices.Contains(aud, r.clients[i].ID) {
			matched = &r.clients[i]
			break
		}
	}
	if hint != "" {
		if matched == nil || (matched.Name != hint && matched.ID != hint) {
			return Client{}, fmt.Errorf("%w: client hint %q does not match token audience", ErrIncorrectToken, hint)
		}
	}
	if matched == nil {
		return r.clients[0], nil
	}
	return *matched, nil
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

func (r *Resolver) fetchUserInfo(ctx context.Context, accessToken string) (string, error) {
	if r.userInfoURL == "" {
		return "", fmt.Errorf("%w: userinfo endpoint not configured", ErrIncorrectToken)
	}
	client := r.oauth.Client(r.oauthContext(ctx), &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build userinfo request: %v", ErrIncorrectToken, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: userinfo: %v", ErrIncorrectToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: userinfo status %d", ErrIncorrectToken, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: decode userinfo: %v", ErrIncorrectToken, err)
	}
	if info.EmailVerified != nil && !*info.EmailVerified {
		return "", fmt.Errorf("%w: email not verified", ErrIncorrectToken)
	}
	if info.Email == "" {
		return "", fmt.Errorf("%w: userinfo carries no email", ErrIncorrectToken)
	}
	return info.Email, nil
}
