package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/warden/internal/config"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the credential store",
		Long:  "Apply and inspect the schema migrations of the admin credential store.",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBStatusCmd())

	return cmd
}

// ---------- db migrate ----------

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending migration to the configured store. Migrations are
recorded in the schema_migrations table, so running this twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Open migrates as part of connecting.
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			states, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store (%s) is at migration %d of %d\n",
				store.Driver(), countApplied(states), len(states))
			return nil
		},
	}
}

// ---------- db status ----------

func newDBStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}
			states, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, states)
			}
			fmt.Fprintf(out, "Driver: %s\n\n", store.Driver())
			fmt.Fprintf(out, "%-40s %-8s\n", "MIGRATION", "APPLIED")
			fmt.Fprintf(out, "%-40s %-8s\n", "---------", "-------")
			for _, s := range states {
				fmt.Fprintf(out, "%-40s %-8s\n", s.Name, yesNo(s.Applied))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func countApplied(states []config.MigrationState) int {
	n := 0
	for _, s := range states {
		if s.Applied {
			n++
		}
	}
	return n
}
