package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faucetdb/warden/internal/model"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
		Long: `Create, inspect, update and remove administrative accounts, and run the
password change and reset flows.`,
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminShowCmd())
	cmd.AddCommand(newAdminUpdateCmd())
	cmd.AddCommand(newAdminRemoveCmd())
	cmd.AddCommand(newAdminPasswdCmd())
	cmd.AddCommand(newAdminResetRequestCmd())
	cmd.AddCommand(newAdminResetCmd())
	cmd.AddCommand(newAdminEmailsCmd())
	cmd.AddCommand(newAdminCheckCmd())

	return cmd
}

// adminFlags holds the account attributes shared by create and update.
type adminFlags struct {
	level            int
	active           bool
	readOnly         bool
	block            bool
	analytics        bool
	manageAdmins     bool
	fetchMotivations bool
	company          string
	forms            []string
	limits           []string
}

func (f *adminFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVar(&f.level, "level", 0, "Privilege level, 0 (super-admin) to 4")
	fl.BoolVar(&f.active, "active", true, "Whether the account can log in")
	fl.BoolVar(&f.readOnly, "read-only", false, "Grant the read-only flag")
	fl.BoolVar(&f.block, "block", false, "Grant the block privilege")
	fl.BoolVar(&f.analytics, "analytics", false, "Grant the analytics privilege")
	fl.BoolVar(&f.manageAdmins, "manage-admins", false, "Grant the manage-admins privilege (effective at level 0 only)")
	fl.BoolVar(&f.fetchMotivations, "fetch-motivations", false, "Grant the fetch-motivations privilege")
	fl.StringVar(&f.company, "company", "", "Company the admin belongs to")
	fl.StringSliceVar(&f.forms, "form", nil, "Form identifier the admin may access (repeatable)")
	fl.StringArrayVar(&f.limits, "limit", nil, "Daily limit override as category=alert:block (repeatable)")
}

// parseLimitSpecs turns category=alert:block flags into a daily limit map.
// Either threshold may be left empty to leave it unset.
func parseLimitSpecs(specs []string) (map[string]model.DailyLimitUpdate, error) {
	out := make(map[string]model.DailyLimitUpdate, len(specs))
	for _, spec := range specs {
		category, values, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid limit %q, expected category=alert:block", spec)
		}
		alert, block, ok := strings.Cut(values, ":")
		if !ok {
			return nil, fmt.Errorf("invalid limit %q, expected category=alert:block", spec)
		}
		var u model.DailyLimitUpdate
		var err error
		if u.Alert, err = parseOptionalInt(alert); err != nil {
			return nil, fmt.Errorf("invalid alert in %q: %w", spec, err)
		}
		if u.Block, err = parseOptionalInt(block); err != nil {
			return nil, fmt.Errorf("invalid block in %q: %w", spec, err)
		}
		out[strings.TrimSpace(category)] = u
	}
	return out, nil
}

func parseOptionalInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func printProfile(cmd *cobra.Command, p model.AdminProfile, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, p)
	}
	fmt.Fprintf(out, "ID:                 %d\n", p.ID)
	fmt.Fprintf(out, "Email:              %s\n", p.Email)
	fmt.Fprintf(out, "Level:              %d\n", p.Level)
	fmt.Fprintf(out, "Active:             %s\n", yesNo(p.Active))
	fmt.Fprintf(out, "Has password:       %s\n", yesNo(p.HasPassword))
	fmt.Fprintf(out, "Read only:          %s\n", yesNo(p.ReadOnly))
	fmt.Fprintf(out, "Block:              %s\n", yesNo(p.BlockPrivilege))
	fmt.Fprintf(out, "Analytics:          %s\n", yesNo(p.AnalyticsPrivilege))
	fmt.Fprintf(out, "Manage admins:      %s\n", yesNo(p.ManageAdminsPrivilege))
	fmt.Fprintf(out, "Fetch motivations:  %s\n", yesNo(p.FetchMotivationsPrivilege))
	if p.Company != "" {
		fmt.Fprintf(out, "Company:            %s\n", p.Company)
	}
	if len(p.Forms) > 0 {
		fmt.Fprintf(out, "Forms:              %s\n", strings.Join(p.Forms, ", "))
	}
	for _, c := range p.DailyLimitConfig.Categories() {
		l := p.DailyLimitConfig[c]
		fmt.Fprintf(out, "Limit %-13s alert=%d block=%d\n", string(c)+":", l.Alert, l.Block)
	}
	return nil
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email      string
		password   string
		noPassword bool
		jsonOutput bool
		f          adminFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin user",
		Example: `  warden admin create --email admin@example.com --level 0 --manage-admins
  warden admin create --email ops@example.com --level 2 --block --limit opened=50:100
  warden admin create --email sso@example.com --level 3 --no-password  # federated login only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("level") {
				return fmt.Errorf("--level is required")
			}
			if password == "" && !noPassword {
				pw, err := promptNewPassword("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}
			limits, err := parseLimitSpecs(f.limits)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			in := model.AdminInput{
				Email:                     email,
				Password:                  password,
				Level:                     &f.level,
				Active:                    &f.active,
				ReadOnly:                  f.readOnly,
				BlockPrivilege:            f.block,
				AnalyticsPrivilege:        f.analytics,
				ManageAdminsPrivilege:     f.manageAdmins,
				FetchMotivationsPrivilege: f.fetchMotivations,
				Company:                   f.company,
				Forms:                     f.forms,
			}
			if len(limits) > 0 {
				in.DailyLimitConfig = limits
			}
			profile, err := a.admins.AddAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), profile)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %q (id %d, level %d)\n", profile.Email, profile.ID, profile.Level)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().BoolVar(&noPassword, "no-password", false, "Create the account without a password")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	f.register(cmd)
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "no-password")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var (
		jsonOutput bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List admin users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			admins, err := a.admins.ListAdmins(cmd.Context(), !all)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, model.NewListResponse(admins))
			}
			if len(admins) == 0 {
				fmt.Fprintln(out, "No admin users configured. Use 'warden admin create' to create one.")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-32s %-6s %-8s %-10s %-20s\n", "ID", "EMAIL", "LEVEL", "ACTIVE", "PASSWORD", "COMPANY")
			fmt.Fprintf(out, "%-6s %-32s %-6s %-8s %-10s %-20s\n", "--", "-----", "-----", "------", "--------", "-------")
			for _, p := range admins {
				fmt.Fprintf(out, "%-6d %-32s %-6d %-8s %-10s %-20s\n",
					p.ID, p.Email, p.Level, yesNo(p.Active), yesNo(p.HasPassword), p.Company)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated admins")

	return cmd
}

// ---------- admin show ----------

func newAdminShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		all        bool
		id         int64
	)

	cmd := &cobra.Command{
		Use:   "show [email]",
		Short: "Show one admin user",
		Args:  cobra.MaximumNArgs(1),
		Example: `  warden admin show admin@example.com
  warden admin show --id 3 --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == cmd.Flags().Changed("id") {
				return fmt.Errorf("pass either an email or --id")
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var admin *model.AdminUser
			if len(args) == 1 {
				admin, err = a.admins.GetAdminOrThrow(cmd.Context(), args[0], !all)
			} else {
				admin, err = a.admins.GetAdminByID(cmd.Context(), id, !all)
			}
			if err != nil {
				return err
			}
			return printProfile(cmd, admin.Profile(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated admins")
	cmd.Flags().Int64Var(&id, "id", 0, "Look the admin up by id")

	return cmd
}

// ---------- admin update ----------

func newAdminUpdateCmd() *cobra.Command {
	var (
		f           adminFlags
		clearLimits bool
	)

	cmd := &cobra.Command{
		Use:   "update <email>",
		Short: "Update attributes of an admin user",
		Long: `Update the given attributes of an admin. Only flags that are passed change;
--limit replaces the whole daily limit override set. Email and password are
not editable here.`,
		Args: cobra.ExactArgs(1),
		Example: `  warden admin update ops@example.com --level 1 --analytics
  warden admin update old@example.com --active=true   # reactivate
  warden admin update ops@example.com --clear-limits`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := f.patch(cmd, clearLimits)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.admins.UpdateAdmin(cmd.Context(), args[0], patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated admin %q\n", args[0])
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&clearLimits, "clear-limits", false, "Remove every daily limit override")
	cmd.MarkFlagsMutuallyExclusive("limit", "clear-limits")

	return cmd
}

// patch builds an AdminPatch from the flags that were explicitly set.
func (f *adminFlags) patch(cmd *cobra.Command, clearLimits bool) (model.AdminPatch, error) {
	changed := cmd.Flags().Changed
	var p model.AdminPatch
	if changed("level") {
		p.Level = &f.level
	}
	if changed("active") {
		p.Active = &f.active
	}
	if changed("read-only") {
		p.ReadOnly = &f.readOnly
	}
	if changed("block") {
		p.BlockPrivilege = &f.block
	}
	if changed("analytics") {
		p.AnalyticsPrivilege = &f.analytics
	}
	if changed("manage-admins") {
		p.ManageAdminsPrivilege = &f.manageAdmins
	}
	if changed("fetch-motivations") {
		p.FetchMotivationsPrivilege = &f.fetchMotivations
	}
	if changed("company") {
		p.Company = &f.company
	}
	if changed("form") {
		p.Forms = &f.forms
	}
	switch {
	case clearLimits:
		p.DailyLimitConfig = map[string]model.DailyLimitUpdate{}
	case changed("limit"):
		limits, err := parseLimitSpecs(f.limits)
		if err != nil {
			return p, err
		}
		p.DailyLimitConfig = limits
	}
	if p.Level == nil && p.Active == nil && p.ReadOnly == nil && p.BlockPrivilege == nil &&
		p.AnalyticsPrivilege == nil && p.ManageAdminsPrivilege == nil &&
		p.FetchMotivationsPrivilege == nil && p.Company == nil && p.Forms == nil && p.DailyLimitConfig == nil {
		return p, fmt.Errorf("nothing to update")
	}
	return p, nil
}

// ---------- admin remove ----------

func newAdminRemoveCmd() *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:     "remove [email]",
		Aliases: []string{"rm"},
		Short:   "Permanently delete an admin user",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == cmd.Flags().Changed("id") {
				return fmt.Errorf("pass either an email or --id")
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				removed bool
				target  string
			)
			if len(args) == 1 {
				target = args[0]
				removed, err = a.admins.RemoveAdmin(cmd.Context(), target)
			} else {
				target = fmt.Sprintf("id %d", id)
				removed, err = a.admins.RemoveAdminByID(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "No admin matched %s\n", target)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed admin %s\n", target)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Remove the admin with this id")

	return cmd
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <email>",
		Short: "Change an admin's password",
		Long: `Change an admin's password. The current password is required when the
account already has one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			email := args[0]
			hasPassword, err := a.admins.HasPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			var old string
			if hasPassword {
				if old, err = readPassword("Current password: "); err != nil {
					return err
				}
			}
			password, err := promptNewPassword("New password: ")
			if err != nil {
				return err
			}
			if err := a.admins.UpdateAdminPassword(cmd.Context(), email, password, old); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", email)
			return nil
		},
	}
}

// ---------- admin reset-request ----------

func newAdminResetRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-request <email>",
		Short: "Issue a password reset token",
		Long: `Issue a password reset token for an active admin. The token replaces any
pending one and is valid for 24 hours. Deliver it to the admin out of band.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.admins.RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// ---------- admin reset ----------

func newAdminResetCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reset <email>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptNewPassword("New password: ")
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.admins.ResetAdminPassword(cmd.Context(), args[0], password, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for %q\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Reset token from 'warden admin reset-request' (required)")
	cmd.MarkFlagRequired("token")

	return cmd
}

// ---------- admin emails ----------

func newAdminEmailsCmd() *cobra.Command {
	var (
		all     bool
		company string
	)

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Print admin email addresses, one per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			emails, err := a.admins.ListAdminEmails(cmd.Context(), !all, company)
			if err != nil {
				return err
			}
			for _, e := range emails {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated admins")
	cmd.Flags().StringVar(&company, "company", "", "Only admins of this company")

	return cmd
}

// ---------- admin check ----------

func newAdminCheckCmd() *cobra.Command {
	var (
		level      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check <email>",
		Short: "Report an admin's effective privileges",
		Long: `Report the privileges an admin effectively holds. With --level, also report
whether the admin meets that access level (lower is more privileged).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, email := cmd.Context(), args[0]
			type check struct {
				name string
				fn   func() (bool, error)
			}
			checks := []check{
				{"read_only", func() (bool, error) { return a.admins.IsReadOnly(ctx, email) }},
				{"block_privilege", func() (bool, error) { return a.admins.HasBlockPrivilege(ctx, email) }},
				{"analytics_privilege", func() (bool, error) { return a.admins.HasAnalyticsPrivilege(ctx, email) }},
				{"manage_admins_privilege", func() (bool, error) { return a.admins.HasManageAdminsPrivilege(ctx, email) }},
				{"fetch_motivations_privilege", func() (bool, error) { return a.admins.HasFetchMotivationsPrivilege(ctx, email) }},
				{"has_password", func() (bool, error) { return a.admins.HasPassword(ctx, email) }},
			}
			if cmd.Flags().Changed("level") {
				checks = append(checks, check{fmt.Sprintf("level_%d_access", level), func() (bool, error) {
					return a.admins.CheckAccessLevel(ctx, email, level)
				}})
			}

			result := make(map[string]bool, len(checks))
			for _, c := range checks {
				ok, err := c.fn()
				if err != nil {
					return err
				}
				result[c.name] = ok
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, result)
			}
			for _, c := range checks {
				fmt.Fprintf(out, "%-30s %s\n", c.name, yesNo(result[c.name]))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Also check access at this level")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
