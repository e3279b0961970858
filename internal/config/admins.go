package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/faucetdb/warden/internal/model"
)

// adminRow is a flat struct that maps 1:1 to the admin_users table. Nullable
// columns and JSON blobs are decoded here so model.AdminUser stays plain.
type adminRow struct {
	ID                        int64                                 `db:"id"`
	Email                     string                                `db:"email"`
	PasswordHash              sql.NullString                        `db:"password_hash"`
	Level                     int                                   `db:"level"`
	Active                    bool                                  `db:"active"`
	ReadOnly                  bool                                  `db:"read_only"`
	BlockPrivilege            bool                                  `db:"block_privilege"`
	AnalyticsPrivilege        bool                                  `db:"analytics_privilege"`
	ManageAdminsPrivilege     bool                                  `db:"manage_admins_privilege"`
	FetchMotivationsPrivilege bool                                  `db:"fetch_motivations_privilege"`
	PasswordResetToken        sql.NullString                        `db:"password_reset_token"`
	PasswordResetSentAt       sql.NullTime                          `db:"password_reset_sent_at"`
	Company                   sql.NullString                        `db:"company"`
	Forms                     jsonColumn[[]string]                  `db:"forms"`
	DailyLimitConfig          jsonColumn[model.DailyLimitOverrides] `db:"daily_limit_config"`
	CreatedAt                 time.Time                             `db:"created_at"`
}

const adminColumns = `id, email, password_hash, level, active, read_only, block_privilege,
	analytics_privilege, manage_admins_privilege, fetch_motivations_privilege,
	password_reset_token, password_reset_sent_at, company, forms, daily_limit_config, created_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r adminRow) toModel() model.AdminUser {
	a := model.AdminUser{
		ID:                        r.ID,
		Email:                     r.Email,
		PasswordHash:              r.PasswordHash.String,
		Level:                     r.Level,
		Active:                    r.Active,
		ReadOnly:                  r.ReadOnly,
		BlockPrivilege:            r.BlockPrivilege,
		AnalyticsPrivilege:        r.AnalyticsPrivilege,
		ManageAdminsPrivilege:     r.ManageAdminsPrivilege,
		FetchMotivationsPrivilege: r.FetchMotivationsPrivilege,
		PasswordResetToken:        r.PasswordResetToken.String,
		Company:                   r.Company.String,
		Forms:                     r.Forms.V,
		DailyLimitConfig:          r.DailyLimitConfig.V,
		Timestamp:                 r.CreatedAt,
	}
	if r.PasswordResetSentAt.Valid {
		t := r.PasswordResetSentAt.Time
		a.PasswordResetSentAt = &t
	}
	return a
}

// ---------------------------------------------------------------------------
// Admin CRUD
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The email is stored lowercased.
// ID and Timestamp are populated after a successful insert. A duplicate
// email yields ErrDuplicate.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.AdminUser) error {
	admin.Email = strings.ToLower(admin.Email)
	admin.Timestamp = time.Now().UTC()

	const q = `INSERT INTO admin_users
		(email, password_hash, level, active, read_only, block_privilege, analytics_privilege,
		 manage_admins_privilege, fetch_motivations_privilege, company, forms, daily_limit_config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := s.dialect.insertID(ctx, s.db, q,
		admin.Email,
		nullString(admin.PasswordHash),
		admin.Level,
		admin.Active,
		admin.ReadOnly,
		admin.BlockPrivilege,
		admin.AnalyticsPrivilege,
		admin.ManageAdminsPrivilege,
		admin.FetchMotivationsPrivilege,
		nullString(admin.Company),
		jsonOf(admin.Forms, admin.Forms != nil),
		jsonOf(admin.DailyLimitConfig, len(admin.DailyLimitConfig) > 0),
		admin.Timestamp,
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	admin.ID = id
	return nil
}

func (s *Store) getAdmin(ctx context.Context, where string, activeOnly bool, args ...any) (*model.AdminUser, error) {
	q := "SELECT " + adminColumns + " FROM admin_users WHERE " + where
	if activeOnly {
		q += " AND active = ?"
		args = append(args, true)
	}
	var row adminRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	admin := row.toModel()
	return &admin, nil
}

// GetAdminByEmail returns an admin by case-insensitive email. With
// activeOnly, deactivated admins are reported as ErrNotFound.
func (s *Store) GetAdminByEmail(ctx context.Context, email string, activeOnly bool) (*model.AdminUser, error) {
	admin, err := s.getAdmin(ctx, "LOWER(email) = ?", activeOnly, strings.ToLower(email))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return admin, err
}

// GetAdminByID returns an admin by surrogate id, applying the same active
// filter as GetAdminByEmail.
func (s *Store) GetAdminByID(ctx context.Context, id int64, activeOnly bool) (*model.AdminUser, error) {
	admin, err := s.getAdmin(ctx, "id = ?", activeOnly, id)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("get admin by id: %w", err)
	}
	return admin, err
}

// ListAdmins returns admin accounts ordered by email.
func (s *Store) ListAdmins(ctx context.Context, activeOnly bool) ([]model.AdminUser, error) {
	q := "SELECT " + adminColumns + " FROM admin_users"
	var args []any
	if activeOnly {
		q += " WHERE active = ?"
		args = append(args, true)
	}
	q += " ORDER BY email"

	var rows []adminRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	admins := make([]model.AdminUser, len(rows))
	for i, r := range rows {
		admins[i] = r.toModel()
	}
	return admins, nil
}

// ListAdminEmails returns lowercased admin emails in ascending order,
// optionally restricted to active admins and to one company.
func (s *Store) ListAdminEmails(ctx context.Context, activeOnly bool, company string) ([]string, error) {
	q := "SELECT LOWER(email) FROM admin_users WHERE 1 = 1"
	var args []any
	if activeOnly {
		q += " AND active = ?"
		args = append(args, true)
	}
	if company != "" {
		q += " AND company = ?"
		args = append(args, company)
	}
	q += " ORDER BY LOWER(email)"

	emails := []string{}
	if err := s.db.SelectContext(ctx, &emails, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list admin emails: %w", err)
	}
	return emails, nil
}

// UpdateAdmin applies changes to the admin with the given id. Only the
// columns present in changes are written.
func (s *Store) UpdateAdmin(ctx context.Context, id int64, changes model.AdminChanges) error {
	if changes.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if changes.Level != nil {
		set("level", *changes.Level)
	}
	if changes.Active != nil {
		set("active", *changes.Active)
	}
	if changes.ReadOnly != nil {
		set("read_only", *changes.ReadOnly)
	}
	if changes.BlockPrivilege != nil {
		set("block_privilege", *changes.BlockPrivilege)
	}
	if changes.AnalyticsPrivilege != nil {
		set("analytics_privilege", *changes.AnalyticsPrivilege)
	}
	if changes.ManageAdminsPrivilege != nil {
		set("manage_admins_privilege", *changes.ManageAdminsPrivilege)
	}
	if changes.FetchMotivationsPrivilege != nil {
		set("fetch_motivations_privilege", *changes.FetchMotivationsPrivilege)
	}
	if changes.Company != nil {
		set("company", nullString(*changes.Company))
	}
	if changes.Forms != nil {
		set("forms", jsonOf(*changes.Forms, *changes.Forms != nil))
	}
	if changes.DailyLimitConfig != nil {
		set("daily_limit_config", jsonOf(*changes.DailyLimitConfig, len(*changes.DailyLimitConfig) > 0))
	}
	if changes.PasswordHash != nil {
		set("password_hash", nullString(*changes.PasswordHash))
	}
	if changes.PasswordResetToken != nil {
		set("password_reset_token", nullString(*changes.PasswordResetToken))
	}
	if changes.PasswordResetSentAt != nil {
		set("password_reset_sent_at", nullTime(*changes.PasswordResetSentAt))
	}

	q := "UPDATE admin_users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAdmin hard-deletes an admin by id and reports whether a row matched.
func (s *Store) DeleteAdmin(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM admin_users WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete admin rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteAdminByEmail hard-deletes an admin by case-insensitive email.
func (s *Store) DeleteAdminByEmail(ctx context.Context, email string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM admin_users WHERE LOWER(email) = ?"), strings.ToLower(email))
	if err != nil {
		return false, fmt.Errorf("delete admin by email: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete admin rows affected: %w", err)
	}
	return n > 0, nil
}

// CountAdmins returns the number of admin accounts, active or not.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admin_users"); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}
