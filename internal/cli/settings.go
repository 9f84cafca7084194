package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored defaults",
	Long: `Stored settings are the defaults for every session. A config file and
command-line flags override them.`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := appInstance.Storage.GetAllSettings(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		defaults := config.Defaults().Settings()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tDEFAULT\tDESCRIPTION")
		fmt.Fprintln(w, "---\t-----\t-------\t-----------")
		for _, key := range config.Keys() {
			value, ok := stored[key]
			if !ok {
				value = defaults[key]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, value, defaults[key], config.Help(key))
		}
		w.Flush()

		var unknown []string
		for key := range stored {
			if config.Help(key) == "" {
				unknown = append(unknown, key)
			}
		}
		sort.Strings(unknown)
		for _, key := range unknown {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: ignoring unknown setting %s\n", key)
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:               "get <key>",
	Short:             "Print one setting",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if config.Help(key) == "" {
			return fmt.Errorf("unknown setting: %s", key)
		}
		value, err := appInstance.Storage.GetSetting(cmd.Context(), key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:               "set <key> <value>",
	Short:             "Change a stored setting",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		key, value := args[0], args[1]

		stored, err := appInstance.Storage.GetAllSettings(ctx)
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		delete(stored, key)
		base, err := config.Defaults().ApplySettings(stored)
		if err != nil {
			base = config.Defaults()
		}

		// Reject values that would make the next session fail to start.
		if err := config.ValidateSetting(base, key, value); err != nil {
			return err
		}
		if err := appInstance.Storage.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:               "reset [key]",
	Short:             "Restore default values",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSettingKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		defaults := config.Defaults().Settings()

		keys := config.Keys()
		if len(args) == 1 {
			if config.Help(args[0]) == "" {
				return fmt.Errorf("unknown setting: %s", args[0])
			}
			keys = args
		}

		for _, key := range keys {
			if err := appInstance.Storage.SetSetting(ctx, key, defaults[key]); err != nil {
				return fmt.Errorf("failed to reset %s: %w", key, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %d settings\n", len(keys))
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)

	rootCmd.AddCommand(settingsCmd)
}
