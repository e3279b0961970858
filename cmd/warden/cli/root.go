package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	jsonErrors bool
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Admin authentication and authorization engine",
		Long: `Warden manages administrative accounts for a hosting application: password and
federated logins, IP-bound session tokens, privilege levels and the daily limit
configuration that applies to each admin.

Accounts live in a relational store (SQLite, PostgreSQL or MySQL), or in the
configuration file when the store is disabled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./warden.yaml)")
	flags.String("data-dir", "", "data directory for the SQLite store (default: ~/.warden)")
	flags.String("driver", "", "store driver: sqlite, postgres or mysql")
	flags.String("dsn", "", "store data source name")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.BoolVar(&jsonErrors, "json-errors", false, "report failures as a JSON error envelope")

	viper.BindPFlag("store.data_dir", flags.Lookup("data-dir"))
	viper.BindPFlag("store.driver", flags.Lookup("driver"))
	viper.BindPFlag("store.dsn", flags.Lookup("dsn"))
	viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	viper.BindPFlag("logging.format", flags.Lookup("log-format"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newLimitsCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newTokenCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("warden")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.warden")
	}

	viper.SetEnvPrefix("WARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
