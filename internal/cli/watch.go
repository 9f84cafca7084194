package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hostwatch/internal/paths"
	"hostwatch/internal/report"
	"hostwatch/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [targets...]",
	Short: "Monitor targets continuously",
	Long: `Probe every target once per interval and show live statistics.

Targets come from the arguments, --file, --list or the targets: key of the
config file. The dashboard refreshes on its own timer and never waits for
a probe cycle. Use --plain to print a table every interval instead.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	plain, _ := cmd.Flags().GetBool("plain")
	if !plain {
		// The dashboard owns the terminal; send log output to a file.
		closeLog, err := redirectLog()
		if err != nil {
			return err
		}
		defer closeLog()
	}

	log.Printf("Monitoring %d targets every %s (strategy %s, %d workers)",
		len(targets), cfg.Interval, cfg.Strategy, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	// Not runCtx: Stop lets in-flight probes finish within their timeout,
	// while cancelling the start context would abort them.
	if err := sess.scheduler.Start(context.Background()); err != nil {
		return err
	}

	g.Go(func() error {
		sess.annotate(runCtx)
		return nil
	})

	g.Go(func() error {
		defer cancel()
		if plain {
			return printLoop(runCtx, cmd.OutOrStdout(), sess)
		}
		return runDashboard(runCtx, sess)
	})

	err = g.Wait()
	if stopErr := sess.scheduler.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	log.Printf("Stopped after %d cycles", sess.scheduler.Stats().Cycle)
	return err
}

// runDashboard runs the TUI until the user quits or ctx is cancelled.
func runDashboard(ctx context.Context, sess *session) error {
	p := tui.NewProgram(tui.Deps{
		Source:  sess.store,
		Stats:   sess.scheduler,
		Storage: appInstance.Storage,
		Config:  sess.cfg,
	}, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// printLoop writes the table after every interval until ctx is cancelled.
func printLoop(ctx context.Context, w io.Writer, sess *session) error {
	ticker := time.NewTicker(sess.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Fprintf(w, "\n%s\n", time.Now().Format("2006-01-02 15:04:05"))
			if err := report.WriteTable(w, sess.store.Snapshot()); err != nil {
				return err
			}
		}
	}
}

// redirectLog points the standard logger at ~/.cache/hostwatch/hostwatch.log.
func redirectLog() (func(), error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, "hostwatch.log")
	f, err := tea.LogToFile(path, "hostwatch")
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	paths.ChownToRealUser(path)
	return func() { f.Close() }, nil
}

func init() {
	addRunFlags(watchCmd)
	addTargetFlags(watchCmd)
	watchCmd.Flags().Bool("plain", false, "print a plain table every interval instead of the dashboard")

	rootCmd.AddCommand(watchCmd)
}
