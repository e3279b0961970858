package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/faucetdb/warden/internal/model"
)

func newLimitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "limits",
		Aliases: []string{"limit"},
		Short:   "Manage daily limit thresholds",
		Long: `Manage the level-wide daily limit defaults and resolve the limits that apply
to a given admin. Categories: opened, displayed.`,
	}

	cmd.AddCommand(newLimitsSetCmd())
	cmd.AddCommand(newLimitsGetCmd())
	cmd.AddCommand(newLimitsListCmd())
	cmd.AddCommand(newLimitsRemoveCmd())
	cmd.AddCommand(newLimitsEffectiveCmd())
	cmd.AddCommand(newLimitsClearCmd())

	return cmd
}

func printOverrides(out io.Writer, o model.DailyLimitOverrides) {
	fmt.Fprintf(out, "%-12s %-8s %-8s\n", "CATEGORY", "ALERT", "BLOCK")
	fmt.Fprintf(out, "%-12s %-8s %-8s\n", "--------", "-----", "-----")
	for _, c := range o.Categories() {
		fmt.Fprintf(out, "%-12s %-8d %-8d\n", c, o[c].Alert, o[c].Block)
	}
}

// ---------- limits set ----------

func newLimitsSetCmd() *cobra.Command {
	var (
		level    int
		category string
		alert    int
		block    int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a level daily limit",
		Long: `Create or update the default for a (level, category) pair. Creating a pair
needs both --alert and --block; updating merges whichever is passed.`,
		Example: `  warden limits set --level 2 --category opened --alert 50 --block 100
  warden limits set --level 2 --category opened --block 120`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var u model.DailyLimitUpdate
			if cmd.Flags().Changed("alert") {
				u.Alert = &alert
			}
			if cmd.Flags().Changed("block") {
				u.Block = &block
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.limits.SetLevelDailyLimit(cmd.Context(), level, category, u); err != nil {
				return err
			}
			cfg, err := a.limits.GetLevelDailyLimit(cmd.Context(), level, category)
			if err != nil {
				return err
			}
			if cfg != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Level %d %s: alert=%d block=%d\n", level, category, cfg.Alert, cfg.Block)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Admin level (required)")
	cmd.Flags().StringVar(&category, "category", "", "Limit category (required)")
	cmd.Flags().IntVar(&alert, "alert", 0, "Alert threshold")
	cmd.Flags().IntVar(&block, "block", 0, "Block threshold")
	cmd.MarkFlagRequired("level")
	cmd.MarkFlagRequired("category")

	return cmd
}

// ---------- limits get ----------

func newLimitsGetCmd() *cobra.Command {
	var (
		level      int
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show level daily limits",
		Long: `Show the defaults for one level, one category across levels, or a single
(level, category) pair, depending on which flags are passed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			hasLevel, hasCategory := cmd.Flags().Changed("level"), cmd.Flags().Changed("category")
			if !hasLevel && !hasCategory {
				return fmt.Errorf("pass --level, --category or both")
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, out := cmd.Context(), cmd.OutOrStdout()
			switch {
			case hasLevel && hasCategory:
				cfg, err := a.limits.GetLevelDailyLimit(ctx, level, category)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, cfg)
				}
				if cfg == nil {
					fmt.Fprintf(out, "No %s limit configured for level %d\n", category, level)
					return nil
				}
				fmt.Fprintf(out, "alert=%d block=%d\n", cfg.Alert, cfg.Block)
			case hasLevel:
				o, err := a.limits.GetLevelDailyLimitsByLevel(ctx, level)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, o)
				}
				if o == nil {
					fmt.Fprintf(out, "No limits configured for level %d\n", level)
					return nil
				}
				printOverrides(out, o)
			default:
				byLevel, err := a.limits.GetLevelDailyLimitsByCategory(ctx, category)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, byLevel)
				}
				levels := make([]int, 0, len(byLevel))
				for l := range byLevel {
					levels = append(levels, l)
				}
				sort.Ints(levels)
				fmt.Fprintf(out, "%-6s %-8s %-8s\n", "LEVEL", "ALERT", "BLOCK")
				fmt.Fprintf(out, "%-6s %-8s %-8s\n", "-----", "-----", "-----")
				for _, l := range levels {
					fmt.Fprintf(out, "%-6d %-8d %-8d\n", l, byLevel[l].Alert, byLevel[l].Block)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Admin level")
	cmd.Flags().StringVar(&category, "category", "", "Limit category")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- limits list ----------

func newLimitsListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every level daily limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.limits.ListLevelDailyLimits(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, model.NewListResponse(rows))
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No level daily limits configured. Use 'warden limits set' to add one.")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-12s %-8s %-8s\n", "LEVEL", "CATEGORY", "ALERT", "BLOCK")
			fmt.Fprintf(out, "%-6s %-12s %-8s %-8s\n", "-----", "--------", "-----", "-----")
			for _, r := range rows {
				fmt.Fprintf(out, "%-6d %-12s %-8d %-8d\n", r.Level, r.Category, r.Alert, r.Block)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- limits remove ----------

func newLimitsRemoveCmd() *cobra.Command {
	var level int

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"rm"},
		Short:   "Remove every daily limit of a level",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.limits.RemoveLevelDailyLimits(cmd.Context(), level)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d limit(s) for level %d\n", n, level)
			return nil
		},
	}

	cmd.Flags().IntVar(&level, "level", 0, "Admin level (required)")
	cmd.MarkFlagRequired("level")

	return cmd
}

// ---------- limits effective ----------

func newLimitsEffectiveCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "effective <email>",
		Short: "Show the daily limits that apply to an admin",
		Long: `Show the daily limits that apply to an admin: its own override when it has
one, otherwise the defaults of its level.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.limits.GetEffectiveAdminDailyLimitConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, o)
			}
			if o == nil {
				fmt.Fprintf(out, "No daily limits apply to %q\n", args[0])
				return nil
			}
			printOverrides(out, o)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// ---------- limits clear ----------

func newLimitsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <email>",
		Short: "Drop an admin's own override so level defaults apply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.limits.ClearAdminDailyLimitOverride(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared daily limit override for %q\n", args[0])
			return nil
		},
	}
}
