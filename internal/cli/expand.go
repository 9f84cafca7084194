package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hostwatch/internal/target"
)

var expandCmd = &cobra.Command{
	Use:   "expand [targets...]",
	Short: "Print the targets a set of specs expands to",
	Long: `Expand specs without probing anything. Useful for checking a target
file before monitoring it. Rejected specs are reported on stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := appInstance.LoadConfig(ctx)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("max-addresses") {
			cfg.MaxAddresses, _ = cmd.Flags().GetInt("max-addresses")
		}

		specs, err := collectSpecs(ctx, cmd, args, cfg)
		if err != nil {
			return err
		}
		targets, err := expandSpecs(specs, cfg.MaxAddresses, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		if quiet {
			for _, t := range targets {
				fmt.Fprintln(cmd.OutOrStdout(), t.Key())
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tKIND\tSPEC")
		fmt.Fprintln(w, "------\t----\t----")
		for _, t := range targets {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Key(), kindOf(t), t.Spec)
		}
		w.Flush()

		fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %s targets from %d specs\n",
			humanize.Comma(int64(len(targets))), len(specs))
		return nil
	},
}

func kindOf(t target.Target) string {
	switch {
	case t.IsHostname():
		return "hostname"
	case t.Addr.Is4():
		return "ipv4"
	default:
		return "ipv6"
	}
}

func init() {
	addTargetFlags(expandCmd)
	expandCmd.Flags().BoolP("quiet", "q", false, "print target keys only")

	rootCmd.AddCommand(expandCmd)
}
