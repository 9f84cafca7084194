package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostwatch/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command. Without a subcommand it behaves like
// "hostwatch watch".
var rootCmd = &cobra.Command{
	Use:   "hostwatch [targets...]",
	Short: "Continuous reachability and latency monitor",
	Long: `hostwatch probes a set of hosts on a fixed interval and keeps rolling
latency, jitter and success-rate statistics for each one.

  Quick start:
    hostwatch 192.168.1.0/24 example.com
    hostwatch -f hosts.txt --strategy tcp --port 443
    hostwatch once 10.0.0.1-20
    hostwatch expand 10.0.0.0/30

  Targets may be addresses, hostnames, CIDR blocks, ranges (a.b.c.d-e or
  a.b.c.d-a.b.c.e) or URLs, one per line in a file or given as arguments.`,
	Version:       version,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	RunE:          runWatch,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return ensureApp(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Cleanup
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ensureApp initializes appInstance once. Cobra may invoke completion
// functions without running PersistentPreRunE.
func ensureApp(cmd *cobra.Command) error {
	if appInstance != nil {
		return nil
	}

	dbPath, _ := cmd.Flags().GetString("db")
	configFile, _ := cmd.Flags().GetString("config")

	var err error
	appInstance, err = app.New(app.Options{DBPath: dbPath, ConfigFile: configFile})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (default ~/.config/hostwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every probe cycle")
	rootCmd.PersistentFlags().String("db", "", "settings database path")

	addRunFlags(rootCmd)
	addTargetFlags(rootCmd)
	rootCmd.Flags().Bool("plain", false, "print a plain table every interval instead of the dashboard")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hostwatch %s\n", version)
	},
}
