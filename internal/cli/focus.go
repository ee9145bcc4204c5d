package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/focus"
)

// ReportFocusOptions holds flags for the report-focus command.
type ReportFocusOptions struct {
	*RootOptions
	Command  string
	Interval time.Duration
	Once     bool
}

// NewReportFocusCommand creates the report-focus command.
func NewReportFocusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportFocusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report-focus",
		Short: "Report the host's focused window to the device",
		Long: `Poll the host for the focused window and report changes to the device.

The focus command must print a JSON object such as the output of
"hyprctl -j activewindow". Unchanged windows are not reported again.

Examples:
  sheetsync report-focus
  sheetsync report-focus --command 'swaymsg -t get_tree | jq ".. | select(.focused?)"'
  sheetsync report-focus --once`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportFocus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Command, "command", "", "focus command (overrides focus_command)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (overrides focus_interval_ms)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "report once and exit")
	return cmd
}

func runReportFocus(opts *ReportFocusOptions, cmd *cobra.Command) error {
	c, cfg, err := opts.client()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer closeLog()

	command := cfg.FocusCommand
	if opts.Command != "" {
		command = opts.Command
	}
	interval := cfg.FocusInterval()
	if opts.Interval > 0 {
		interval = opts.Interval
	}

	src := focus.NewCommandSource(command)
	reporter := focus.NewReporter(src, c, interval)
	out := opts.formatter(cmd)

	if opts.Once {
		ctx := commandContext(cmd)
		win, err := src.Focused(ctx)
		if err != nil {
			return out.Error(WrapExitError(ExitCommandError, "focus command failed", err))
		}
		if err := c.FocusedWindow(ctx, win); err != nil {
			return out.Error(deviceError("report-focus", err))
		}
		return out.Success(win, func(w io.Writer) {
			fmt.Fprintf(w, "reported %s (%s)\n", win.WmClass, win.Title)
		})
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("reporting focus", "command", command, "interval", interval, "device", cfg.DeviceAddr)
	return reporter.Run(ctx)
}
