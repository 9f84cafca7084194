package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
)

// completeListNames provides shell completion for saved target list names.
func completeListNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeListNamesForFlag(cmd, args, toComplete)
}

// completeListNamesForFlag provides list name completion for --list flags.
func completeListNamesForFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := ensureApp(cmd); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	ctx := context.Background()
	lists, err := appInstance.Storage.GetAllTargetLists(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var completions []string
	for _, l := range lists {
		if strings.HasPrefix(strings.ToLower(l.Name), strings.ToLower(toComplete)) {
			completions = append(completions, l.Name+"\t"+l.Description)
		}
	}

	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeSettingKeys completes the first argument of settings subcommands.
func completeSettingKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, key := range config.Keys() {
		if strings.HasPrefix(key, toComplete) {
			completions = append(completions, key+"\t"+config.Help(key))
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
