package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faucetdb/warden/internal/model"
)

// EmailResolver turns a federated identity payload into a verified email.
// identity.Resolver implements it.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, creds model.FederatedCredentials) (string, error)
}

// LoginService authenticates a login attempt and mints a session token.
type LoginService struct {
	admins   *AdminDirectory
	resolver EmailResolver
	sessions *SessionManager
	logger   *slog.Logger
}

// NewLoginService creates a LoginService. resolver may be nil, in which
// case every federated login fails with ErrIncorrectGoogleToken.
func NewLoginService(admins *AdminDirectory, resolver EmailResolver, sessions *SessionManager, logger *slog.Logger) *LoginService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		admins:   admins,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
	}
}

// Login authenticates req in a single pass. Exactly one of the password or
// federated payloads must be present and complete. Issuing the token is the
// last step, so a failed login never leaves a session behind.
func (s *LoginService) Login(ctx context.Context, req model.LoginRequest, ip string) (*model.LoginResponse, error) {
	if !exactlyOneComplete(req) {
		return nil, ErrLoginKeysMissing
	}

	var admin *model.AdminUser
	if req.User != nil {
		a, err := s.admins.Verify(ctx, req.User.Username, req.User.Password)
		if errors.Is(err, ErrIncorrectUsernameOrPassword) {
			s.logger.Warn("password login failed", "username", normalizeEmail(req.User.Username), "ip", ip)
			return nil, ErrIncorrectUsernameOrPassword
		}
		if err != nil {
			s.logger.Error("password login lookup failed", "username", normalizeEmail(req.User.Username), "ip", ip, "error", err)
			return nil, fmt.Errorf("verify admin: %w", err)
		}
		admin = a
	} else {
		a, err := s.federated(ctx, *req.Google, ip)
		if err != nil {
			return nil, err
		}
		admin = a
	}

	tok, err := s.sessions.IssueToken(ctx, admin.Email, ip, admin.Level, admin.Privileges())
	if err != nil {
		return nil, ErrAdminTokenCreate
	}

	s.logger.Info("admin logged in", "email", admin.Email, "ip", ip)
	return &model.LoginResponse{
		AdminProfile: admin.Profile(),
		Token:        tok.Token,
		Privileges:   tok.Extra,
		ExpiresAt:    tok.ExpiresAt,
	}, nil
}

func (s *LoginService) federated(ctx context.Context, creds model.FederatedCredentials, ip string) (*model.AdminUser, error) {
	if s.resolver == nil {
		return nil, ErrIncorrectGoogleToken
	}
	email, err := s.resolver.ResolveEmail(ctx, creds)
	if err != nil {
		s.logger.Warn("federated login rejected", "ip", ip, "error", err)
		return nil, ErrIncorrectGoogleToken
	}
	admin, err := s.admins.GetAdmin(ctx, email, true)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		s.logger.Warn("federated login for unknown admin", "email", normalizeEmail(email), "ip", ip)
		return nil, ErrAccountNotValid
	}
	return admin, nil
}

func exactlyOneComplete(req model.LoginRequest) bool {
	switch {
	case req.User != nil && req.Google != nil:
		return false
	case req.User != nil:
		return req.User.Username != "" && req.User.Password != ""
	case req.Google != nil:
		return req.Google.Credential != "" || req.Google.AccessToken != ""
	default:
		return false
	}
}
