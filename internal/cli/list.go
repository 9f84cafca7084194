package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hostwatch/internal/storage"
	"hostwatch/internal/target"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Manage saved target lists",
	Long:  "Save, show and delete named target lists for use with --list",
}

var listSaveCmd = &cobra.Command{
	Use:   "save <name> [targets...]",
	Short: "Create or replace a target list",
	Long: `Save specs under a name. Specs come from the arguments and --file.
Every spec is checked by expanding it; rejected specs are not saved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := args[0]
		desc, _ := cmd.Flags().GetString("desc")

		specs := target.FromStrings(args[1:])
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			fileSpecs, err := readSpecFile(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			specs = append(specs, fileSpecs...)
		}

		var texts []string
		expander := target.NewExpander()
		for _, spec := range specs {
			if _, errs := expander.Expand([]target.Spec{spec}); len(errs) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", errs[0])
				continue
			}
			texts = append(texts, spec.Text)
		}
		if len(texts) == 0 {
			return fmt.Errorf("no valid targets to save")
		}

		list, err := storage.SaveTargetList(ctx, appInstance.Storage, name, desc, texts)
		if err != nil {
			return fmt.Errorf("failed to save list: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved list %s with %d specs\n", list.Name, len(list.Specs))
		return nil
	},
}

var listShowCmd = &cobra.Command{
	Use:               "show <name>",
	Short:             "Print the specs of a list",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeListNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := appInstance.Storage.GetTargetList(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", list.Name)
		if list.Description != "" {
			fmt.Fprintf(out, "# %s\n", list.Description)
		}
		for _, spec := range list.Specs {
			fmt.Fprintln(out, spec)
		}
		return nil
	},
}

var listLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"all"},
	Short:   "List saved target lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		lists, err := appInstance.Storage.GetAllTargetLists(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get lists: %w", err)
		}

		if len(lists) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No lists found.")
			return nil
		}

		expander := target.NewExpander()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSPECS\tTARGETS\tUPDATED\tDESCRIPTION")
		fmt.Fprintln(w, "----\t-----\t-------\t-------\t-----------")
		for _, list := range lists {
			targets, _ := expander.Expand(target.FromStrings(list.Specs))
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				list.Name, len(list.Specs), humanize.Comma(int64(len(targets))),
				humanize.Time(list.UpdatedAt), list.Description)
		}
		w.Flush()

		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d lists\n", len(lists))
		return nil
	},
}

var listRmCmd = &cobra.Command{
	Use:               "rm <name>",
	Aliases:           []string{"delete"},
	Short:             "Delete a target list",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeListNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		force, _ := cmd.Flags().GetBool("force")

		if !force {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete list %s? [y/N]: ", name)
			var response string
			fmt.Fscanln(cmd.InOrStdin(), &response)
			if !strings.EqualFold(response, "y") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		if err := appInstance.Storage.DeleteTargetList(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted list %s\n", name)
		return nil
	},
}

func init() {
	listSaveCmd.Flags().StringP("desc", "d", "", "list description")
	listSaveCmd.Flags().StringP("file", "f", "", "read specs from a file (- for stdin)")
	listRmCmd.Flags().BoolP("force", "y", false, "skip confirmation")

	listCmd.AddCommand(listSaveCmd)
	listCmd.AddCommand(listShowCmd)
	listCmd.AddCommand(listLsCmd)
	listCmd.AddCommand(listRmCmd)

	rootCmd.AddCommand(listCmd)
}
