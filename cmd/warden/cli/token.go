package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errTokenRejected makes token validate exit non-zero for a rejected token.
var errTokenRejected = errors.New("token rejected")

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and maintain session tokens",
	}

	cmd.AddCommand(newTokenValidateCmd())
	cmd.AddCommand(newTokenPurgeCmd())

	return cmd
}

// ---------- token validate ----------

func newTokenValidateCmd() *cobra.Command {
	var (
		ip    string
		level int
	)

	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Check a session token",
		Long: `Check that a session token was issued to --ip, has not expired, and belongs
to an active admin at --level or better. Exits non-zero when it is rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.sessions.ValidateToken(cmd.Context(), args[0], ip, level)
			if err != nil {
				return err
			}
			if !ok {
				return errTokenRejected
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "127.0.0.1", "Client IP presenting the token")
	cmd.Flags().IntVar(&level, "level", 0, "Required access level (0 admits super-admins only)")

	return cmd
}

// ---------- token purge ----------

func newTokenPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.sessions.PurgeExpiredTokens(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired token(s)\n", n)
			return nil
		},
	}
}
