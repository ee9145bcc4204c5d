// Package cli implements the sheetsync command line: the device-side
// serve command and the host-side commands that drive it remotely.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/config"
	"github.com/roach88/sheetsync/internal/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	Addr    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sheetsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sheetsync",
		Short: "sheetsync - cheat sheets that follow your focus",
		Long: `Show the reference sheet matching the focused window on a second display.

The device runs "serve". Host commands upload entries, edit tags and report
window focus to it over HTTP.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default "+config.DefaultPath+")")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "device address (overrides device_addr)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReportFocusCommand(opts))
	cmd.AddCommand(NewScreenInfoCommand(opts))
	cmd.AddCommand(NewContentInfoCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewTransientCommand(opts))
	cmd.AddCommand(NewScreenshotCommand(opts))
	cmd.AddCommand(NewClearTransientCommand(opts))
	cmd.AddCommand(NewAddTagsCommand(opts))
	cmd.AddCommand(NewRemoveTagsCommand(opts))
	cmd.AddCommand(NewAddWmClassTagsCommand(opts))
	cmd.AddCommand(NewRemoveWmClassTagsCommand(opts))
	cmd.AddCommand(NewInputCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// loadConfig reads the configuration named by --config.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Addr != "" {
		cfg.DeviceAddr = o.Addr
	}
	return cfg, nil
}

// client connects to the configured device.
func (o *RootOptions) client() (*transport.Client, config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	c, err := transport.NewClient(cfg.DeviceAddr)
	if err != nil {
		return nil, cfg, WrapExitError(ExitCommandError, "invalid device address", err)
	}
	return c, cfg, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// setupLogging installs the default slog handler. Records go to stderr and,
// when cfg.LogFile is set, to that file too. The returned func closes the
// file.
func setupLogging(cfg config.Config, verbose bool, stderr io.Writer) (func(), error) {
	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}

	out := stderr
	closer := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(stderr, f)
		closer = func() { _ = f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer, nil
}
