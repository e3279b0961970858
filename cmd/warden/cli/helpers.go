package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/faucetdb/warden/internal/auth"
	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/identity"
	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/service"
)

// resolveDataDir returns the configured data directory or ~/.warden.
func resolveDataDir(cfg *config.YAMLConfig) string {
	if cfg.Store.DataDir != "" {
		return cfg.Store.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".warden")
}

// loadConfig reads the config file found by viper, if any, and overlays the
// values set through flags or WARDEN_* environment variables.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	str := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = os.ExpandEnv(viper.GetString(key))
		}
	}
	if viper.IsSet("store.enabled") {
		cfg.Store.Enabled = viper.GetBool("store.enabled")
	}
	str("store.driver", &cfg.Store.Driver)
	str("store.dsn", &cfg.Store.DSN)
	str("store.data_dir", &cfg.Store.DataDir)
	str("auth.password_salt", &cfg.Auth.PasswordSalt)
	str("auth.token_ttl", &cfg.Auth.TokenTTL)
	str("auth.session_backend", &cfg.Auth.SessionBackend)
	str("identity.google.client_id", &cfg.Identity.Google.ClientID)
	str("identity.google.client_secret", &cfg.Identity.Google.ClientSecret)
	str("logging.level", &cfg.Logging.Level)
	str("logging.format", &cfg.Logging.Format)
	return cfg, nil
}

// newLogger builds the process logger from the logging section. Logs go to
// stderr so command output on stdout stays machine readable.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// app wires the services for one command invocation.
type app struct {
	cfg      *config.YAMLConfig
	logger   *slog.Logger
	store    *config.Store // nil in config mode
	admins   *service.AdminDirectory
	limits   *service.DailyLimits
	sessions *service.SessionManager
	login    *service.LoginService
	resolver *identity.Resolver // nil without identity.google.client_id
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// openStore opens the durable store described by cfg.
func openStore(ctx context.Context, cfg *config.YAMLConfig) (*config.Store, error) {
	if !cfg.Store.Enabled {
		return nil, errors.New("the credential store is disabled (store.enabled: false)")
	}
	sc, err := cfg.StoreConfig()
	if err != nil {
		return nil, err
	}
	if (sc.Driver == "" || sc.Driver == "sqlite") && sc.DSN == "" {
		sc.DataDir = resolveDataDir(cfg)
	}
	store, err := config.Open(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

// openApp builds every service from the effective configuration.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging)
	a := &app{cfg: cfg, logger: logger}

	var (
		adminRepo service.AdminRepository
		limitRepo service.LevelLimitRepository
	)
	if cfg.Store.Enabled {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
		adminRepo, limitRepo = store, store
		logger.Debug("credential store opened", "driver", store.Driver())
	} else {
		static, err := config.NewStaticAdmins(cfg.Admins)
		if err != nil {
			return nil, fmt.Errorf("load admins from config: %w", err)
		}
		staticLimits, err := config.NewStaticLevelLimits(cfg.LevelDailyLimits)
		if err != nil {
			return nil, fmt.Errorf("load level daily limits from config: %w", err)
		}
		adminRepo, limitRepo = static, staticLimits
		logger.Debug("serving admins from config", "count", len(cfg.Admins))
	}

	a.admins = service.NewAdminDirectory(adminRepo, auth.NewHasher(cfg.Auth.PasswordSalt), logger)
	a.limits = service.NewDailyLimits(limitRepo, a.admins, logger)

	ttl, err := cfg.TokenTTL()
	if err != nil {
		a.Close()
		return nil, err
	}
	var tokens service.TokenStore
	switch {
	case cfg.Auth.SessionBackend == "memory":
		tokens = service.NewCacheTokenStore(cfg.Auth.CacheSize, ttl)
	case a.store != nil:
		tokens = a.store
	default:
		logger.Warn("sql session backend needs the credential store, falling back to memory")
		tokens = service.NewCacheTokenStore(cfg.Auth.CacheSize, ttl)
	}
	a.sessions = service.NewSessionManager(tokens, a.admins, ttl, logger)

	var resolver service.EmailResolver
	if cfg.Identity.Google.ClientID != "" {
		r, err := newResolver(cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.resolver, resolver = r, r
	}
	a.login = service.NewLoginService(a.admins, resolver, a.sessions, logger)
	return a, nil
}

func newResolver(cfg *config.YAMLConfig, logger *slog.Logger) (*identity.Resolver, error) {
	timeout, err := cfg.IdentityTimeout()
	if err != nil {
		return nil, err
	}
	g := cfg.Identity.Google
	return identity.New(identity.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURIs: g.RedirectURIs,
		Clients:      g.Clients,
		Issuers:      g.Issuers,
		CertsURL:     g.CertsURL,
		UserInfoURL:  g.UserInfoURL,
		AuthURL:      g.AuthURL,
		TokenURL:     g.TokenURL,
		Timeout:      timeout,
	}, logger)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintError reports a failed command on w. Service errors keep their
// stable code; with --json-errors the error envelope is written instead.
func PrintError(w io.Writer, err error) {
	detail := model.ErrorDetail{Code: "Error", Message: err.Error()}
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		detail = model.ErrorDetail{Code: svcErr.Code, Kind: svcErr.Kind.String(), Message: svcErr.Message}
	}
	if jsonErrors {
		printJSON(w, model.ErrorResponse{Error: detail})
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// promptNewPassword asks for a password twice and checks they match.
func promptNewPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
