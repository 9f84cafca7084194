package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hostwatch/internal/config"
	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

// addRunFlags registers the probing flags shared by watch and once. Flags
// left unset fall back to the YAML file, then the stored settings.
func addRunFlags(cmd *cobra.Command) {
	d := config.Defaults()
	cmd.Flags().DurationP("interval", "i", d.Interval, "time between probe cycles")
	cmd.Flags().DurationP("timeout", "t", d.Timeout, "per-probe timeout, must be below the interval")
	cmd.Flags().IntP("workers", "w", d.Workers, "maximum probes in flight")
	cmd.Flags().StringP("strategy", "s", d.Strategy, "probe transport (icmp, tcp)")
	cmd.Flags().IntP("port", "p", d.TCPPort, "port for the tcp strategy")
	cmd.Flags().IntP("window", "n", d.WindowSize, "successful samples kept per target")
	cmd.Flags().String("privileged", "auto", "raw ICMP sockets (auto, true, false)")
	cmd.Flags().Bool("no-resolve", false, "skip reverse-DNS lookups for address targets")

	cmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"icmp", "tcp"}, cobra.ShellCompDirectiveNoFileComp
	})
	cmd.RegisterFlagCompletionFunc("privileged", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "true", "false"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// addTargetFlags registers the target sources accepted next to arguments.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read targets from a file, one per line (- for stdin)")
	cmd.Flags().StringP("list", "l", "", "use a saved target list")
	cmd.Flags().Int("max-addresses", target.DefaultMaxAddresses, "largest expansion accepted from one spec, 0 for no limit")

	cmd.RegisterFlagCompletionFunc("list", completeListNamesForFlag)
}

// resolveConfig builds the session configuration: defaults, stored settings,
// the YAML file, then any flag the user set explicitly.
func resolveConfig(ctx context.Context, cmd *cobra.Command) (config.Config, error) {
	cfg, err := appInstance.LoadConfig(ctx)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("strategy") {
		s, _ := flags.GetString("strategy")
		cfg.Strategy = strings.ToLower(s)
	}
	if flags.Changed("port") {
		cfg.TCPPort, _ = flags.GetInt("port")
	}
	if flags.Changed("window") {
		cfg.WindowSize, _ = flags.GetInt("window")
	}
	if flags.Changed("privileged") {
		s, _ := flags.GetString("privileged")
		if cfg.Privileged, err = config.ParsePrivileged(s); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("no-resolve") {
		noResolve, _ := flags.GetBool("no-resolve")
		cfg.ResolveNames = !noResolve
	}
	if flags.Lookup("max-addresses") != nil && flags.Changed("max-addresses") {
		cfg.MaxAddresses, _ = flags.GetInt("max-addresses")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// collectSpecs gathers target specs from arguments, --file and --list. The
// YAML targets are used only when none of those is given.
func collectSpecs(ctx context.Context, cmd *cobra.Command, args []string, cfg config.Config) ([]target.Spec, error) {
	specs := target.FromStrings(args)

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fileSpecs, err := readSpecFile(path, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		specs = append(specs, fileSpecs...)
	}

	if name, _ := cmd.Flags().GetString("list"); name != "" {
		list, err := appInstance.Storage.GetTargetList(ctx, name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, target.FromStrings(list.Specs)...)
	}

	if len(specs) == 0 {
		specs = target.FromStrings(cfg.Targets)
	}
	return specs, nil
}

func readSpecFile(path string, stdin io.Reader) ([]target.Spec, error) {
	if path == "-" {
		return target.ParseLines(stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target file: %w", err)
	}
	defer f.Close()

	specs, err := target.ParseLines(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// expandSpecs expands specs and reports every rejected one on errOut. Only
// an empty result is fatal.
func expandSpecs(specs []target.Spec, maxAddresses int, errOut io.Writer) ([]target.Target, error) {
	expander := &target.Expander{MaxAddresses: maxAddresses}
	targets, errs := expander.Expand(specs)
	for _, err := range errs {
		fmt.Fprintf(errOut, "Warning: %v\n", err)
	}
	if len(targets) == 0 {
		return nil, pkgerrors.ErrNoTargets
	}
	return targets, nil
}

// loadTargets resolves and expands the targets of a command.
func loadTargets(ctx context.Context, cmd *cobra.Command, args []string, cfg config.Config) ([]target.Target, error) {
	specs, err := collectSpecs(ctx, cmd, args, cfg)
	if err != nil {
		return nil, err
	}
	return expandSpecs(specs, cfg.MaxAddresses, cmd.ErrOrStderr())
}

// session wires the probing pipeline for one run: one metrics store shared
// by the scheduler that writes it and the renderers that read it.
type session struct {
	cfg       config.Config
	targets   []target.Target
	store     *metrics.Store
	strategy  probe.Strategy
	scheduler *monitor.Scheduler
}

func newSession(cfg config.Config, targets []target.Target, verbose bool) (*session, error) {
	strategy, err := probe.NewStrategy(cfg.Strategy, cfg.StrategyOptions())
	if err != nil {
		return nil, err
	}

	executor := probe.NewExecutor(probe.ExecutorConfig{
		Strategy: strategy,
		Timeout:  cfg.Timeout,
	})
	store := metrics.NewStore(targets, cfg.MetricsOptions())

	opts := cfg.MonitorOptions()
	opts.Verbose = verbose
	scheduler, err := monitor.New(store, executor, targets, opts)
	if err != nil {
		closeStrategy(strategy)
		return nil, err
	}

	return &session{
		cfg:       cfg,
		targets:   targets,
		store:     store,
		strategy:  strategy,
		scheduler: scheduler,
	}, nil
}

// annotate looks up hostnames for address targets until ctx is done.
func (s *session) annotate(ctx context.Context) {
	if !s.cfg.ResolveNames {
		return
	}
	target.NewAnnotator().Run(ctx, s.targets, func(key, hostname string) {
		s.store.Annotate(key, hostname)
	})
}

func (s *session) Close() {
	closeStrategy(s.strategy)
}

func closeStrategy(strategy probe.Strategy) {
	if c, ok := strategy.(io.Closer); ok {
		c.Close()
	}
}
