package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hostwatch/internal/report"
)

var onceCmd = &cobra.Command{
	Use:   "once [targets...]",
	Short: "Probe every target once and print the results",
	Long: `Run a single probe cycle over all targets, wait for it to finish and
print one table. With --fail-on-down the command exits non-zero when any
target is down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := resolveConfig(ctx, cmd)
		if err != nil {
			return err
		}
		targets, err := loadTargets(ctx, cmd, args, cfg)
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		sess, err := newSession(cfg, targets, verbose)
		if err != nil {
			return err
		}
		defer sess.Close()

		// Reverse lookups get the length of one cycle, no more.
		annotateCtx, cancel := context.WithTimeout(ctx, cfg.Interval)
		done := make(chan struct{})
		go func() {
			defer close(done)
			sess.annotate(annotateCtx)
		}()

		stats, err := sess.scheduler.RunCycle(ctx)
		if err != nil {
			cancel()
			<-done
			sess.scheduler.Stop()
			return err
		}
		<-done
		cancel()
		sess.scheduler.Stop()

		snap := sess.store.Snapshot()
		if err := report.WriteTable(cmd.OutOrStdout(), snap); err != nil {
			return err
		}
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "cycle %d: %d dispatched, %d completed, %d discarded\n",
				stats.Cycle, stats.Dispatched, stats.Completed, stats.Discarded)
		}

		failOnDown, _ := cmd.Flags().GetBool("fail-on-down")
		if failOnDown && snap.Summary.Down > 0 {
			return fmt.Errorf("%d of %d targets down", snap.Summary.Down, snap.Summary.Total)
		}
		return nil
	},
}

func init() {
	addRunFlags(onceCmd)
	addTargetFlags(onceCmd)
	onceCmd.Flags().Bool("fail-on-down", false, "exit non-zero when any target is down")

	rootCmd.AddCommand(onceCmd)
}
