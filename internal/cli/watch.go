package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/library"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
	Invert   bool
	Once     bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep the device library in step with a directory",
		Long: `Upload every image in a directory, then follow changes.

Each image becomes an entry named after its file stem, tagged from
<stem>.tags. Deleting the image removes the entry.

Examples:
  sheetsync watch ~/sheets
  sheetsync watch ~/sheets --once`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd, args[0])
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", library.DefaultDebounce, "quiet period before a changed file is synced")
	cmd.Flags().BoolVar(&opts.Invert, "invert", false, "invert uploaded images")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "sync once and exit")
	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command, dir string) error {
	c, cfg, err := opts.client()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer closeLog()

	w := library.New(dir, c)
	w.Debounce = opts.Debounce
	w.Invert = opts.Invert

	if opts.Once {
		if err := w.Sync(commandContext(cmd)); err != nil {
			return deviceError("sync", err)
		}
		if s := w.Stats(); s.Failed > 0 {
			return NewExitError(ExitFailure, "some entries failed to sync")
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	s := w.Stats()
	slog.Info("watch stopped", "uploaded", s.Uploaded, "removed", s.Removed, "failed", s.Failed)
	return nil
}
