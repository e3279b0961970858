package model

import "time"

// Admin levels range from 0 (super-admin) to 4. A lower number is a higher
// privilege.
const (
	LevelSuperAdmin = 0
	MaxLevel        = 4
)

// PasswordResetWindow is how long a pending password reset stays valid.
const PasswordResetWindow = 24 * time.Hour

// AdminUser represents an administrative account. Passwords are stored as
// salted scrypt digests and are never exposed.
type AdminUser struct {
	ID                        int64               `json:"id"`
	Email                     string              `json:"email"`
	PasswordHash              string              `json:"-"` // empty for federated-only accounts
	Level                     int                 `json:"level"`
	Active                    bool                `json:"active"`
	ReadOnly                  bool                `json:"read_only"`
	BlockPrivilege            bool                `json:"block_privilege"`
	AnalyticsPrivilege        bool                `json:"analytics_privilege"`
	ManageAdminsPrivilege     bool                `json:"manage_admins_privilege"`
	FetchMotivationsPrivilege bool                `json:"fetch_motivations_privilege"`
	PasswordResetToken        string              `json:"-"`
	PasswordResetSentAt       *time.Time          `json:"-"`
	Company                   string              `json:"company,omitempty"`
	Forms                     []string            `json:"forms,omitempty"`
	DailyLimitConfig          DailyLimitOverrides `json:"daily_limit_config,omitempty"`
	Timestamp                 time.Time           `json:"timestamp"`
}

// IsSuperAdmin reports whether the admin sits at level 0.
func (a *AdminUser) IsSuperAdmin() bool { return a.Level == LevelSuperAdmin }

// IsReadOnly is granted by the flag alone; level 0 does not imply it.
func (a *AdminUser) IsReadOnly() bool { return a.ReadOnly }

// HasBlockPrivilege is implied by level 0 or granted by the flag.
func (a *AdminUser) HasBlockPrivilege() bool {
	return a.IsSuperAdmin() || a.BlockPrivilege
}

// HasAnalyticsPrivilege is implied by level 0 or granted by the flag.
func (a *AdminUser) HasAnalyticsPrivilege() bool {
	return a.IsSuperAdmin() || a.AnalyticsPrivilege
}

// HasManageAdminsPrivilege requires both level 0 and the explicit flag.
func (a *AdminUser) HasManageAdminsPrivilege() bool {
	return a.IsSuperAdmin() && a.ManageAdminsPrivilege
}

// HasFetchMotivationsPrivilege is implied by level 0 or granted by the flag.
func (a *AdminUser) HasFetchMotivationsPrivilege() bool {
	return a.IsSuperAdmin() || a.FetchMotivationsPrivilege
}

// HasPassword reports whether a password hash is stored.
func (a *AdminUser) HasPassword() bool { return a.PasswordHash != "" }

// Privileges returns the resolved privilege snapshot carried in session tokens.
func (a *AdminUser) Privileges() Privileges {
	return Privileges{
		ReadOnly:                  a.IsReadOnly(),
		BlockPrivilege:            a.HasBlockPrivilege(),
		AnalyticsPrivilege:        a.HasAnalyticsPrivilege(),
		ManageAdminsPrivilege:     a.HasManageAdminsPrivilege(),
		FetchMotivationsPrivilege: a.HasFetchMotivationsPrivilege(),
	}
}

// ResetExpired reports whether a pending reset issued at
// PasswordResetSentAt is no longer usable at now.
func (a *AdminUser) ResetExpired(now time.Time) bool {
	if a.PasswordResetSentAt == nil {
		return true
	}
	return now.After(a.PasswordResetSentAt.Add(PasswordResetWindow))
}

// Profile returns the public projection of the admin.
func (a *AdminUser) Profile() AdminProfile {
	return AdminProfile{
		ID:                        a.ID,
		Email:                     a.Email,
		Level:                     a.Level,
		Active:                    a.Active,
		ReadOnly:                  a.ReadOnly,
		BlockPrivilege:            a.BlockPrivilege,
		AnalyticsPrivilege:        a.AnalyticsPrivilege,
		ManageAdminsPrivilege:     a.ManageAdminsPrivilege,
		FetchMotivationsPrivilege: a.FetchMotivationsPrivilege,
		Company:                   a.Company,
		Forms:                     a.Forms,
		DailyLimitConfig:          a.DailyLimitConfig,
		HasPassword:               a.HasPassword(),
		Timestamp:                 a.Timestamp,
	}
}

// AdminProfile is the externally visible view of an AdminUser.
type AdminProfile struct {
	ID                        int64               `json:"id"`
	Email                     string              `json:"email"`
	Level                     int                 `json:"level"`
	Active                    bool                `json:"active"`
	ReadOnly                  bool                `json:"read_only"`
	BlockPrivilege            bool                `json:"block_privilege"`
	AnalyticsPrivilege        bool                `json:"analytics_privilege"`
	ManageAdminsPrivilege     bool                `json:"manage_admins_privilege"`
	FetchMotivationsPrivilege bool                `json:"fetch_motivations_privilege"`
	Company                   string              `json:"company,omitempty"`
	Forms                     []string            `json:"forms,omitempty"`
	DailyLimitConfig          DailyLimitOverrides `json:"daily_limit_config,omitempty"`
	HasPassword               bool                `json:"has_password"`
	Timestamp                 time.Time           `json:"timestamp"`
}

// Privileges is the denormalized privilege snapshot stored with a session.
type Privileges struct {
	ReadOnly                  bool `json:"read_only"`
	BlockPrivilege            bool `json:"block_privilege"`
	AnalyticsPrivilege        bool `json:"analytics_privilege"`
	ManageAdminsPrivilege     bool `json:"manage_admins_privilege"`
	FetchMotivationsPrivilege bool `json:"fetch_motivations_privilege"`
}

// AdminInput carries the fields accepted when creating an admin. Level is a
// pointer so a missing level can be told apart from level 0.
type AdminInput struct {
	Email                     string                      `json:"email"`
	Password                  string                      `json:"password,omitempty"`
	Level                     *int                        `json:"level"`
	Active                    *bool                       `json:"active,omitempty"`
	ReadOnly                  bool                        `json:"read_only,omitempty"`
	BlockPrivilege            bool                        `json:"block_privilege,omitempty"`
	AnalyticsPrivilege        bool                        `json:"analytics_privilege,omitempty"`
	ManageAdminsPrivilege     bool                        `json:"manage_admins_privilege,omitempty"`
	FetchMotivationsPrivilege bool                        `json:"fetch_motivations_privilege,omitempty"`
	Company                   string                      `json:"company,omitempty"`
	Forms                     []string                    `json:"forms,omitempty"`
	DailyLimitConfig          map[string]DailyLimitUpdate `json:"daily_limit_config,omitempty"`
}

// AdminPatch is a partial update. Nil fields are left untouched. Email and
// Password exist only so that attempts to change them can be rejected.
type AdminPatch struct {
	Email                     *string                     `json:"email,omitempty"`
	Password                  *string                     `json:"password,omitempty"`
	Level                     *int                        `json:"level,omitempty"`
	Active                    *bool                       `json:"active,omitempty"`
	ReadOnly                  *bool                       `json:"read_only,omitempty"`
	BlockPrivilege            *bool                       `json:"block_privilege,omitempty"`
	AnalyticsPrivilege        *bool                       `json:"analytics_privilege,omitempty"`
	ManageAdminsPrivilege     *bool                       `json:"manage_admins_privilege,omitempty"`
	FetchMotivationsPrivilege *bool                       `json:"fetch_motivations_privilege,omitempty"`
	Company                   *string                     `json:"company,omitempty"`
	Forms                     *[]string                   `json:"forms,omitempty"`
	DailyLimitConfig          map[string]DailyLimitUpdate `json:"daily_limit_config,omitempty"`
}

// AdminChanges is a validated AdminPatch as handed to the repository.
type AdminChanges struct {
	Level                     *int
	Active                    *bool
	ReadOnly                  *bool
	BlockPrivilege            *bool
	AnalyticsPrivilege        *bool
	ManageAdminsPrivilege     *bool
	FetchMotivationsPrivilege *bool
	Company                   *string
	Forms                     *[]string
	DailyLimitConfig          *DailyLimitOverrides
	PasswordHash              *string
	PasswordResetToken        *string
	PasswordResetSentAt       **time.Time
}

// Empty reports whether the changes touch no column.
func (c AdminChanges) Empty() bool {
	return c == AdminChanges{}
}
