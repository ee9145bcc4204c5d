package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sheetsync/internal/config"
	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/display"
	"github.com/roach88/sheetsync/internal/engine"
	"github.com/roach88/sheetsync/internal/journal"
	"github.com/roach88/sheetsync/internal/persist"
	"github.com/roach88/sheetsync/internal/transport"
	"github.com/roach88/sheetsync/internal/ui"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen  string
	DataDir string
	Display string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the device: dispatch loop, display and HTTP API",
		Long: `Run the device side of sheetsync.

Loads the library from the data directory (starting empty if it is missing
or inconsistent), draws on the configured display, and accepts remote calls
until interrupted. The library is saved once more on the way out.

Example:
  sheetsync serve
  sheetsync serve --listen :6000 --display none --data-dir /tmp/sheets`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides listen)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory (overrides data_dir)")
	cmd.Flags().StringVar(&opts.Display, "display", "", "display surface: terminal|none (overrides display)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.DataDir != "" {
		if cfg.DataDir, err = config.ExpandPath(opts.DataDir); err != nil {
			return WrapExitError(ExitCommandError, "invalid data directory", err)
		}
	}
	if opts.Display != "" {
		cfg.Display = opts.Display
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	closeLog, err := setupLogging(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	defer closeLog()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fsys := persist.OSFS{}
	store, err := persist.Load(fsys, cfg.DataDir)
	if err != nil {
		slog.Error("library load failed, starting empty",
			"dir", cfg.DataDir, "error", err, "code", engine.Classify(err))
		store = content.NewStore()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Journal), 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create journal directory", err)
	}
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()
	lastSeq, err := j.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	records := journal.NewWriter(j)
	persister := persist.NewPersister(fsys)
	eng := engine.New(store,
		engine.WithSurface(newSurface(cfg, cmd.OutOrStdout())),
		engine.WithPersister(persister, cfg.DataDir),
		engine.WithJournal(records),
		engine.WithLongPress(cfg.LongPress()),
		engine.WithClock(engine.NewClockAt(lastSeq)),
	)
	eng.Enqueue(engine.DeviceInputEvent{Event: ui.DeviceEvent{Type: ui.EventInit}})

	server := transport.NewServer(engine.NewHandler(eng))

	slog.Info("sheetsync starting",
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"entries", store.Len(),
		"display", cfg.Display,
		"seq", lastSeq,
	)

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		persister.Run()
		return nil
	})
	g.Go(func() error {
		records.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(serverCtx, cfg.Listen)
	})
	g.Go(func() error {
		// The loop submits its final save round before returning; only
		// then may the workers drain and exit.
		err := eng.Run(gctx)
		stopServer()
		persister.Close()
		records.Close()
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "device stopped with error", err)
	}

	stats := persister.Stats()
	slog.Info("sheetsync stopped",
		"written", stats.Written,
		"removed", stats.Removed,
		"failed", stats.Failed,
	)
	return nil
}

// newSurface builds the display surface named by cfg.Display.
func newSurface(cfg config.Config, out io.Writer) display.Surface {
	if cfg.Display == config.DisplayNone {
		return display.NewHeadless(uint32(cfg.ScreenWidth), uint32(cfg.ScreenHeight))
	}
	return display.NewTerminal(out, int(os.Stdout.Fd()))
}
