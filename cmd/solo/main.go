package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(command{})
	if err := root.Execute(); err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitError carries a non-zero exit status whose cause was already reported.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// buildRoot creates the root command; running it without a subcommand is
// the same as "solo run".
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &StatusFlags{}

	root := createRootCommand(c, globalFlags, runFlags)
	root.AddCommand(
		createRunCommand(c, globalFlags, runFlags),
		createStatusCommand(c, globalFlags, statusFlags),
		createStopCommand(c, globalFlags),
	)
	return root
}

func createRootCommand(c command, flags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "solo",
		Short: "Single-instance launcher",
		Long: `Solo keeps exactly one instance of an application running. On start it
stops any previous instance recorded in the PID marker file, records its own
PID and serves the bundled status server until interrupted.

Examples:
  solo                              # same as "solo run"
  solo run --listen=:7860
  solo status
  solo stop --grace=10s`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context(), *flags, *runFlags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.Marker, "marker", "", "PID marker file (relative paths resolve next to the executable)")
	root.PersistentFlags().DurationVar(&flags.Grace, "grace", 0, "time to wait after SIGTERM before SIGKILL (default 5s)")
	root.PersistentFlags().DurationVar(&flags.KillWait, "kill-wait", 0, "time to wait after SIGKILL (default 3s)")
	root.Flags().StringVar(&runFlags.Listen, "listen", "", "bundled server listen address (default 127.0.0.1:7860)")
	return root
}

func createRunCommand(c command, flags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replace any running instance and start the bundled server",
		Long: `Stop the instance recorded in the marker file (SIGTERM, then SIGKILL after
the grace period), claim the marker and serve until SIGINT or SIGTERM.

Examples:
  solo run
  solo run --config=solo.toml --listen=0.0.0.0:7860`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context(), *flags, *runFlags)
		},
	}
	cmd.Flags().StringVar(&runFlags.Listen, "listen", "", "bundled server listen address (default 127.0.0.1:7860)")
	return cmd
}

func createStatusCommand(c command, flags *GlobalFlags, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running instance",
		Long: `Show the instance recorded in the marker file. Stale markers are cleaned up.

Examples:
  solo status
  solo status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags, *statusFlags)
		},
	}
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print as JSON")
	return cmd
}

func createStopCommand(c command, flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running instance",
		Long: `Stop the instance recorded in the marker file without starting a new one.
Exits with status 1 if the instance survives SIGKILL.

Examples:
  solo stop
  solo stop --grace=10s --kill-wait=5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(*flags)
		},
	}
}
