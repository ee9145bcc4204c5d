package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/config"
	"github.com/roach88/sheetsync/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Limit   int
	Kind    string // optional - filter to one message kind
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show messages processed by the device",
		Long: `Show the device's message journal in processing order.

Each line is one message: its sequence number, kind, subject, outcome and
whether it redrew the screen or saved the library.

Examples:
  sheetsync trace
  sheetsync trace --limit 100
  sheetsync trace --kind UploadEntry --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the journal database (overrides journal)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of most recent records")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only records of this message kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	path := opts.Journal
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Journal
	} else {
		var err error
		if path, err = config.ExpandPath(path); err != nil {
			return WrapExitError(ExitCommandError, "invalid journal path", err)
		}
	}
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := commandContext(cmd)
	var records []journal.Record
	if opts.Kind != "" {
		records, err = j.ByKind(ctx, opts.Kind)
	} else {
		records, err = j.Recent(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query journal", err)
	}

	return opts.formatter(cmd).Success(records, func(w io.Writer) {
		if len(records) == 0 {
			fmt.Fprintln(w, "No records.")
			return
		}
		for _, r := range records {
			fmt.Fprintln(w, FormatRecord(r))
		}
	})
}

// FormatRecord renders one journal record as a text line.
func FormatRecord(r journal.Record) string {
	line := fmt.Sprintf("%6d  %-20s %-8s", r.Seq, r.Kind, r.Outcome)
	if r.Subject != "" {
		line += fmt.Sprintf(" %q", r.Subject)
	}
	if r.Rendered {
		line += " [rendered]"
	}
	if r.Persisted {
		line += " [saved]"
	}
	if r.Error != "" {
		line += " error=" + r.Error
	}
	return line
}
