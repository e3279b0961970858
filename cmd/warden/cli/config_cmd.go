package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/warden/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Warden configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default warden.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVar(&path, "path", "warden.yaml", "Where to write the config file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Set auth.password_salt, then run 'warden db migrate' and 'warden admin create'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	return cmd
}

func runConfigShow(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	redactConfig(cfg)

	out := cmd.OutOrStdout()
	if path := viper.ConfigFileUsed(); path != "" {
		fmt.Fprintf(out, "# Config file: %s\n", path)
	} else {
		fmt.Fprintln(out, "# No config file found, showing defaults")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// redactConfig masks secrets so the effective config can be shared.
func redactConfig(cfg *config.YAMLConfig) {
	const mask = "********"
	if cfg.Auth.PasswordSalt != "" {
		cfg.Auth.PasswordSalt = mask
	}
	if cfg.Identity.Google.ClientSecret != "" {
		cfg.Identity.Google.ClientSecret = mask
	}
	if cfg.Store.DSN != "" {
		cfg.Store.DSN = mask
	}
	for i := range cfg.Admins {
		if cfg.Admins[i].PasswordHash != "" {
			cfg.Admins[i].PasswordHash = mask
		}
	}
}
