package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/faucetdb/warden/internal/auth"
	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/model"
)

// AdminRepository persists admin accounts. config.Store is the durable
// implementation and config.StaticAdmins serves the configuration allowlist.
// Lookups report a miss with config.ErrNotFound.
type AdminRepository interface {
	GetAdminByEmail(ctx context.Context, email string, activeOnly bool) (*model.AdminUser, error)
	GetAdminByID(ctx context.Context, id int64, activeOnly bool) (*model.AdminUser, error)
	ListAdmins(ctx context.Context, activeOnly bool) ([]model.AdminUser, error)
	ListAdminEmails(ctx context.Context, activeOnly bool, company string) ([]string, error)
	CreateAdmin(ctx context.Context, admin *model.AdminUser) error
	UpdateAdmin(ctx context.Context, id int64, changes model.AdminChanges) error
	DeleteAdmin(ctx context.Context, id int64) (bool, error)
	DeleteAdminByEmail(ctx context.Context, email string) (bool, error)
}

// readOnlyRepository is implemented by repositories that reject writes.
type readOnlyRepository interface {
	ReadOnly() bool
}

func isReadOnly(repo any) bool {
	ro, ok := repo.(readOnlyRepository)
	return ok && ro.ReadOnly()
}

// AdminDirectory provides lookup, CRUD and privilege checks over admin
// accounts.
type AdminDirectory struct {
	repo     AdminRepository
	hasher   *auth.Hasher
	readOnly bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewAdminDirectory creates an AdminDirectory. When repo is read-only every
// mutation fails with ErrUnsupported before touching it.
func NewAdminDirectory(repo AdminRepository, hasher *auth.Hasher, logger *slog.Logger) *AdminDirectory {
	if hasher == nil {
		hasher = auth.NewHasher("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminDirectory{
		repo:     repo,
		hasher:   hasher,
		readOnly: isReadOnly(repo),
		now:      time.Now,
		logger:   logger,
	}
}

// ReadOnly reports whether the directory is serving the static allowlist.
func (d *AdminDirectory) ReadOnly() bool { return d.readOnly }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

// GetAdmin returns the admin with the given email, or nil when there is
// none. With active set, deactivated admins are treated as missing.
func (d *AdminDirectory) GetAdmin(ctx context.Context, email string, active bool) (*model.AdminUser, error) {
	admin, err := d.repo.GetAdminByEmail(ctx, normalizeEmail(email), active)
	if errors.Is(err, config.ErrNotFound) {
		d.logger.Debug("admin lookup miss", "email", normalizeEmail(email), "active", active)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return admin, nil
}

// GetAdminByID is GetAdmin keyed by surrogate id. The active filter applies
// the same way.
func (d *AdminDirectory) GetAdminByID(ctx context.Context, id int64, active bool) (*model.AdminUser, error) {
	admin, err := d.repo.GetAdminByID(ctx, id, active)
	if errors.Is(err, config.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin %d: %w", id, err)
	}
	return admin, nil
}

// GetAdminOrThrow is GetAdmin that fails with ErrAccountNotFoundOrInactive
// on a miss.
func (d *AdminDirectory) GetAdminOrThrow(ctx context.Context, email string, active bool) (*model.AdminUser, error) {
	admin, err := d.GetAdmin(ctx, email, active)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrAccountNotFoundOrInactive
	}
	return admin, nil
}

// ListAdmins returns the public profiles of all admins, ordered by email.
func (d *AdminDirectory) ListAdmins(ctx context.Context, active bool) ([]model.AdminProfile, error) {
	admins, err := d.repo.ListAdmins(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	profiles := make([]model.AdminProfile, 0, len(admins))
	for i := range admins {
		profiles = append(profiles, admins[i].Profile())
	}
	return profiles, nil
}

// ListAdminEmails returns lowercase admin emails in ascending order,
// optionally restricted to one company.
func (d *AdminDirectory) ListAdminEmails(ctx context.Context, active bool, company string) ([]string, error) {
	emails, err := d.repo.ListAdminEmails(ctx, active, company)
	if err != nil {
		return nil, fmt.Errorf("list admin emails: %w", err)
	}
	return emails, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func validateLevel(level int) error {
	if level < model.LevelSuperAdmin || level > model.MaxLevel {
		return userErrorf("invalid admin level %d, must be between %d and %d", level, model.LevelSuperAdmin, model.MaxLevel)
	}
	return nil
}

func validateInput(in model.AdminInput) (model.DailyLimitOverrides, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, validationErrorf("email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, validationErrorf("email %q is not a valid address", in.Email)
	}
	if in.Level == nil {
		return nil, validationErrorf("level is required")
	}
	if err := validateLevel(*in.Level); err != nil {
		return nil, err
	}
	return ValidateDailyLimitConfigShape(in.DailyLimitConfig)
}

// AddAdmin creates a new admin account and returns its public profile. An
// existing account with the same email, active or not, fails with
// ErrAdminAccountExists.
func (d *AdminDirectory) AddAdmin(ctx context.Context, in model.AdminInput) (*model.AdminProfile, error) {
	if d.readOnly {
		return nil, ErrUnsupported
	}
	overrides, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	existing, err := d.GetAdmin(ctx, email, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAdminAccountExists
	}

	var hash string
	if in.Password != "" {
		if hash, err = d.hasher.Hash(in.Password, ""); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}
	admin := &model.AdminUser{
		Email:                     email,
		PasswordHash:              hash,
		Level:                     *in.Level,
		Active:                    active,
		ReadOnly:                  in.ReadOnly,
		BlockPrivilege:            in.BlockPrivilege,
		AnalyticsPrivilege:        in.AnalyticsPrivilege,
		ManageAdminsPrivilege:     in.ManageAdminsPrivilege,
		FetchMotivationsPrivilege: in.FetchMotivationsPrivilege,
		Company:                   in.Company,
		Forms:                     in.Forms,
		DailyLimitConfig:          overrides,
	}
	if err := d.repo.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			return nil, ErrAdminAccountExists
		}
		return nil, d.storeError("create admin", err)
	}

	d.logger.Info("admin created", "id", admin.ID, "email", admin.Email, "level", admin.Level)
	profile := admin.Profile()
	return &profile, nil
}

// UpdateAdmin applies a partial update and returns the patch as given.
// Email and password cannot be changed here. When the patch sets Active the
// lookup includes deactivated admins so they can be reactivated.
func (d *AdminDirectory) UpdateAdmin(ctx context.Context, email string, patch model.AdminPatch) (*model.AdminPatch, error) {
	if d.readOnly {
		return nil, ErrUnsupported
	}
	if patch.Email != nil {
		return nil, userErrorf("email cannot be changed, remove and re-add the admin instead")
	}
	if patch.Password != nil {
		return nil, userErrorf("password cannot be changed here, use the password change or reset flow")
	}

	changes := model.AdminChanges{
		Level:                     patch.Level,
		Active:                    patch.Active,
		ReadOnly:                  patch.ReadOnly,
		BlockPrivilege:            patch.BlockPrivilege,
		AnalyticsPrivilege:        patch.AnalyticsPrivilege,
		ManageAdminsPrivilege:     patch.ManageAdminsPrivilege,
		FetchMotivationsPrivilege: patch.FetchMotivationsPrivilege,
		Company:                   patch.Company,
		Forms:                     patch.Forms,
	}
	if patch.Level != nil {
		if err := validateLevel(*patch.Level); err != nil {
			return nil, err
		}
	}
	if patch.DailyLimitConfig != nil {
		overrides, err := ValidateDailyLimitConfigShape(patch.DailyLimitConfig)
		if err != nil {
			return nil, err
		}
		changes.DailyLimitConfig = &overrides
	}

	admin, err := d.GetAdminOrThrow(ctx, email, patch.Active == nil)
	if err != nil {
		return nil, err
	}
	if err := d.apply(ctx, admin, changes); err != nil {
		return nil, err
	}

	d.logger.Info("admin updated", "id", admin.ID, "email", admin.Email)
	return &patch, nil
}

// apply writes changes for an admin that has already been resolved.
func (d *AdminDirectory) apply(ctx context.Context, admin *model.AdminUser, changes model.AdminChanges) error {
	if d.readOnly {
		return ErrUnsupported
	}
	err := d.repo.UpdateAdmin(ctx, admin.ID, changes)
	if errors.Is(err, config.ErrNotFound) {
		return ErrAccountNotFoundOrInactive
	}
	if err != nil {
		return d.storeError("update admin", err)
	}
	return nil
}

// RemoveAdmin hard-deletes the admin with the given email. Removing an
// unknown email is not an error; the result reports whether a row matched.
func (d *AdminDirectory) RemoveAdmin(ctx context.Context, email string) (bool, error) {
	if d.readOnly {
		return false, ErrUnsupported
	}
	removed, err := d.repo.DeleteAdminByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, d.storeError("remove admin", err)
	}
	d.logger.Info("admin removed", "email", normalizeEmail(email), "matched", removed)
	return removed, nil
}

// RemoveAdminByID is RemoveAdmin keyed by surrogate id.
func (d *AdminDirectory) RemoveAdminByID(ctx context.Context, id int64) (bool, error) {
	if d.readOnly {
		return false, ErrUnsupported
	}
	removed, err := d.repo.DeleteAdmin(ctx, id)
	if err != nil {
		return false, d.storeError("remove admin", err)
	}
	d.logger.Info("admin removed", "id", id, "matched", removed)
	return removed, nil
}

// storeError maps a read-only rejection to ErrUnsupported and wraps
// anything else.
func (d *AdminDirectory) storeError(op string, err error) error {
	if errors.Is(err, config.ErrReadOnly) {
		return ErrUnsupported
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---------------------------------------------------------------------------
// Passwords
// ---------------------------------------------------------------------------

func (d *AdminDirectory) hashNewPassword(password string) (string, error) {
	if password == "" {
		return "", userErrorf("new password must not be empty")
	}
	hash, err := d.hasher.Hash(password, "")
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// UpdateAdminPassword replaces the password after checking the current one.
func (d *AdminDirectory) UpdateAdminPassword(ctx context.Context, email, newPassword, oldPassword string) error {
	if d.readOnly {
		return ErrUnsupported
	}
	admin, err := d.GetAdminOrThrow(ctx, email, true)
	if err != nil {
		return err
	}
	if !d.hasher.Verify(oldPassword, admin.PasswordHash) {
		return ErrInvalidPassword
	}
	hash, err := d.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	if err := d.apply(ctx, admin, model.AdminChanges{PasswordHash: &hash}); err != nil {
		return err
	}
	d.logger.Info("admin password changed", "email", admin.Email)
	return nil
}

// RequestPasswordReset stores a fresh reset token for the admin and returns
// it for delivery. A previous pending reset is replaced.
func (d *AdminDirectory) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if d.readOnly {
		return "", ErrUnsupported
	}
	admin, err := d.GetAdminOrThrow(ctx, email, true)
	if err != nil {
		return "", err
	}
	token := auth.NewResetToken()
	sentAt := d.now().UTC()
	sentAtPtr := &sentAt
	if err := d.apply(ctx, admin, model.AdminChanges{
		PasswordResetToken:  &token,
		PasswordResetSentAt: &sentAtPtr,
	}); err != nil {
		return "", err
	}
	d.logger.Info("admin password reset requested", "email", admin.Email)
	return token, nil
}

// ResetAdminPassword sets a new password using a pending reset token. The
// token must match exactly and be no older than model.PasswordResetWindow.
func (d *AdminDirectory) ResetAdminPassword(ctx context.Context, email, newPassword, resetToken string) error {
	if d.readOnly {
		return ErrUnsupported
	}
	admin, err := d.GetAdminOrThrow(ctx, email, true)
	if err != nil {
		return err
	}
	if admin.PasswordResetToken == "" || resetToken == "" ||
		subtle.ConstantTimeCompare([]byte(admin.PasswordResetToken), []byte(resetToken)) != 1 {
		return ErrInvalidResetToken
	}
	if admin.ResetExpired(d.now()) {
		return ErrResetLinkExpired
	}
	hash, err := d.hashNewPassword(newPassword)
	if err != nil {
		return err
	}

	cleared := ""
	var noTime *time.Time
	if err := d.apply(ctx, admin, model.AdminChanges{
		PasswordHash:        &hash,
		PasswordResetToken:  &cleared,
		PasswordResetSentAt: &noTime,
	}); err != nil {
		return err
	}
	d.logger.Info("admin password reset", "email", admin.Email)
	return nil
}

// Verify checks a username and password. Every failure, including unknown
// and inactive accounts, is reported as ErrIncorrectUsernameOrPassword.
func (d *AdminDirectory) Verify(ctx context.Context, username, password string) (*model.AdminUser, error) {
	admin, err := d.GetAdmin(ctx, username, true)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.HasPassword() || !d.hasher.Verify(password, admin.PasswordHash) {
		return nil, ErrIncorrectUsernameOrPassword
	}
	return admin, nil
}

// ---------------------------------------------------------------------------
// Privileges
// ---------------------------------------------------------------------------

// CheckAccessLevel reports whether an active admin with the given email has
// a level at or below requiredLevel. Level 0 is the most privileged.
func (d *AdminDirectory) CheckAccessLevel(ctx context.Context, email string, requiredLevel int) (bool, error) {
	admin, err := d.GetAdmin(ctx, email, true)
	if err != nil {
		return false, err
	}
	return admin != nil && admin.Level <= requiredLevel, nil
}

func (d *AdminDirectory) privilege(ctx context.Context, email string, has func(*model.AdminUser) bool) (bool, error) {
	admin, err := d.GetAdmin(ctx, email, true)
	if err != nil {
		return false, err
	}
	if admin == nil {
		return false, ErrAdminNotFound
	}
	return has(admin), nil
}

// IsReadOnly reports whether the admin at email is restricted to reads.
func (d *AdminDirectory) IsReadOnly(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).IsReadOnly)
}

// HasBlockPrivilege reports whether the admin at email may block users.
func (d *AdminDirectory) HasBlockPrivilege(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).HasBlockPrivilege)
}

// HasAnalyticsPrivilege reports whether the admin at email may view analytics.
func (d *AdminDirectory) HasAnalyticsPrivilege(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).HasAnalyticsPrivilege)
}

// HasManageAdminsPrivilege reports whether the admin at email may manage other admins.
func (d *AdminDirectory) HasManageAdminsPrivilege(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).HasManageAdminsPrivilege)
}

// HasFetchMotivationsPrivilege reports whether the admin at email may fetch motivations.
func (d *AdminDirectory) HasFetchMotivationsPrivilege(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).HasFetchMotivationsPrivilege)
}

// HasPassword reports whether the admin at email has a password set.
func (d *AdminDirectory) HasPassword(ctx context.Context, email string) (bool, error) {
	return d.privilege(ctx, email, (*model.AdminUser).HasPassword)
}
