package model

import "time"

// SessionToken is an issued admin session. The raw token is bound to the IP
// that logged in; the pair is looked up through a derived key.
type SessionToken struct {
	Username  string     `json:"username"`
	Token     string     `json:"token"`
	IP        string     `json:"ip"`
	Level     int        `json:"level"`
	Extra     Privileges `json:"extra"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Expired reports whether the token is no longer valid at now.
func (t *SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PasswordCredentials is the username/password half of a login request.
type PasswordCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FederatedCredentials carries an identity-provider payload. Exactly one of
// Credential (a signed ID token) or AccessToken is expected. Client is an
// optional hint naming the registered client the caller believes issued it.
type FederatedCredentials struct {
	Credential  string `json:"credential,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Client      string `json:"client,omitempty"`
}

// LoginRequest is one login attempt. Exactly one of User or Google is set.
type LoginRequest struct {
	User   *PasswordCredentials  `json:"user,omitempty"`
	Google *FederatedCredentials `json:"google,omitempty"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AdminProfile
	Token      string     `json:"token"`
	Privileges Privileges `json:"privileges"`
	ExpiresAt  time.Time  `json:"expires_at"`
}
