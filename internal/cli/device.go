package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/imaging"
	"github.com/roach88/sheetsync/internal/library"
	"github.com/roach88/sheetsync/internal/ui"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ScreenInfoOutput is the screen-info payload.
type ScreenInfoOutput struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Orientation string `json:"orientation"`
}

// NewScreenInfoCommand creates the screen-info command.
func NewScreenInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "screen-info",
		Short:         "Print the device display geometry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rootOpts.client()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			si, err := c.ScreenInfo(commandContext(cmd))
			if err != nil {
				return out.Error(deviceError("screen-info", err))
			}
			data := ScreenInfoOutput{Width: si.Width, Height: si.Height, Orientation: si.Orientation.String()}
			return out.Success(data, func(w io.Writer) {
				fmt.Fprintf(w, "width:       %d\n", data.Width)
				fmt.Fprintf(w, "height:      %d\n", data.Height)
				fmt.Fprintf(w, "orientation: %s\n", data.Orientation)
			})
		},
	}
}

// ContentInfoOptions holds flags for the content-info command.
type ContentInfoOptions struct {
	*RootOptions
	Match string
}

// NewContentInfoCommand creates the content-info command.
func NewContentInfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContentInfoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "content-info",
		Short: "List entries and wm_classes with their tags",
		Long: `List every entry and wm_class on the device with their tags.

--match keeps only names that fuzzy-match the query.

Examples:
  sheetsync content-info
  sheetsync content-info --match vim --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.client()
			if err != nil {
				return err
			}
			out := opts.formatter(cmd)
			info, err := c.ContentInfo(commandContext(cmd))
			if err != nil {
				return out.Error(deviceError("content-info", err))
			}
			info = FilterContentInfo(info, opts.Match)
			return out.Success(info, func(w io.Writer) { writeContentInfo(w, info) })
		},
	}

	cmd.Flags().StringVar(&opts.Match, "match", "", "fuzzy filter on entry and wm_class names")
	return cmd
}

// FilterContentInfo keeps the entries and wm_classes whose names fuzzy-match
// query, preserving order. An empty query keeps everything.
func FilterContentInfo(info content.ContentInfo, query string) content.ContentInfo {
	query = strings.TrimSpace(query)
	if query == "" {
		return info
	}

	names := make([]string, len(info.Entries))
	for i, e := range info.Entries {
		names[i] = e.Name
	}
	keep := matchIndexes(query, names)
	entries := make([]content.EntryTags, 0, len(keep))
	for i, e := range info.Entries {
		if keep[i] {
			entries = append(entries, e)
		}
	}

	names = make([]string, len(info.WmClasses))
	for i, wm := range info.WmClasses {
		names[i] = wm.WmClass
	}
	keep = matchIndexes(query, names)
	wmClasses := make([]content.WmClassTags, 0, len(keep))
	for i, wm := range info.WmClasses {
		if keep[i] {
			wmClasses = append(wmClasses, wm)
		}
	}

	return content.ContentInfo{Entries: entries, WmClasses: wmClasses}
}

func matchIndexes(query string, names []string) map[int]bool {
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	keep := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		keep[r.OriginalIndex] = true
	}
	return keep
}

func writeContentInfo(w io.Writer, info content.ContentInfo) {
	fmt.Fprintf(w, "entries (%d):\n", len(info.Entries))
	for _, e := range info.Entries {
		fmt.Fprintf(w, "  %-24s %s\n", e.Name, strings.Join(e.Tags, ", "))
	}
	fmt.Fprintf(w, "wm_classes (%d):\n", len(info.WmClasses))
	for _, wm := range info.WmClasses {
		fmt.Fprintf(w, "  %-24s %s\n", wm.WmClass, strings.Join(wm.Tags, ", "))
	}
}

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	Name   string
	Tags   []string
	Invert bool
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload <image>",
		Short: "Create or replace an entry from an image file",
		Long: `Create or replace an entry from an image file.

The image is scaled to the device screen and converted to grayscale. The
entry is named after the file stem unless --name is given. Without --tags,
tags are read from <stem>.tags next to the image, one per line.

Examples:
  sheetsync upload ~/sheets/vim.png
  sheetsync upload shot.png --name git --tags git,terminal`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "entry name (default: file stem)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "entry tags (default: read <stem>.tags)")
	cmd.Flags().BoolVar(&opts.Invert, "invert", false, "invert the image")
	return cmd
}

func runUpload(opts *UploadOptions, cmd *cobra.Command, path string) error {
	name := opts.Name
	if name == "" {
		stem, ok := library.EntryName(path)
		if !ok || !library.IsImage(path) {
			return NewExitError(ExitCommandError, fmt.Sprintf("cannot derive an entry name from %q; use --name", path))
		}
		name = stem
	}
	tags := opts.Tags
	if !cmd.Flags().Changed("tags") {
		sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + library.TagsExt
		var err error
		if tags, err = library.ReadTags(sidecar); err != nil {
			return WrapExitError(ExitCommandError, "failed to read tags", err)
		}
	}

	c, _, err := opts.client()
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)
	ctx := commandContext(cmd)

	img, err := loadForScreen(ctx, c, path, imaging.Rotate0, opts.Invert)
	if err != nil {
		return out.Error(err)
	}
	if err := c.UploadEntry(ctx, name, img, tags); err != nil {
		return out.Error(deviceError("upload", err))
	}
	return out.Success(map[string]any{"name": name, "tags": tags}, func(w io.Writer) {
		fmt.Fprintf(w, "uploaded %s (%dx%d) tags=[%s]\n", name, img.Width, img.Height, strings.Join(tags, ","))
	})
}

type screenQuerier interface {
	ScreenInfo(ctx context.Context) (ui.ScreenInfo, error)
}

// loadForScreen decodes path and fits it to the device screen.
func loadForScreen(ctx context.Context, dev screenQuerier, path string, rot imaging.Rotation, invert bool) (content.RawBitmap, error) {
	si, err := dev.ScreenInfo(ctx)
	if err != nil {
		return content.RawBitmap{}, deviceError("screen-info", err)
	}
	img, err := imaging.Load(path, imaging.Options{Width: si.Width, Height: si.Height, Rotate: rot, Invert: invert})
	if err != nil {
		return content.RawBitmap{}, WrapExitError(ExitCommandError, "failed to load image", err)
	}
	return img, nil
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <name>...",
		Short:         "Remove entries",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rootOpts.client()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			for _, name := range args {
				if err := c.RemoveEntry(commandContext(cmd), name); err != nil {
					return out.Error(deviceError("remove "+name, err))
				}
			}
			return out.Success(map[string]any{"removed": args}, func(w io.Writer) {
				fmt.Fprintf(w, "removed %s\n", strings.Join(args, ", "))
			})
		},
	}
}

// TransientOptions holds flags for the transient command.
type TransientOptions struct {
	*RootOptions
	Name   string
	Invert bool
}

// NewTransientCommand creates the transient command.
func NewTransientCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transient <image>",
		Short: "Show an image in screenshot mode without storing it",
		Long: `Show an image in screenshot mode without storing it.

The image is rotated a quarter turn counterclockwise to suit screen
captures taken on a landscape host.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.client()
			if err != nil {
				return err
			}
			out := opts.formatter(cmd)
			ctx := commandContext(cmd)
			img, err := loadForScreen(ctx, c, args[0], imaging.Rotate270, opts.Invert)
			if err != nil {
				return out.Error(err)
			}
			if err := c.UploadTransient(ctx, opts.Name, img); err != nil {
				return out.Error(deviceError("transient", err))
			}
			return out.Success(map[string]any{"name": opts.Name}, func(w io.Writer) {
				fmt.Fprintf(w, "showing %s\n", args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "transient name (default: assigned by the device)")
	cmd.Flags().BoolVar(&opts.Invert, "invert", false, "invert the image")
	return cmd
}

// ScreenshotOptions holds flags for the screenshot command.
type ScreenshotOptions struct {
	*RootOptions
	Name    string
	Invert  bool
	Command string
}

// NewScreenshotCommand creates the screenshot command.
func NewScreenshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScreenshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the host screen and show it in screenshot mode",
		Long: `Capture the host screen and show it in screenshot mode.

The capture_command from the config takes the screenshot. A command
containing {file} writes the image to that path; any other command
prints the image on stdout. The capture is handled like transient.

Examples:
  sheetsync screenshot
  sheetsync screenshot --command "gnome-screenshot -f {file}" --invert`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScreenshot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "transient name (default: assigned by the device)")
	cmd.Flags().BoolVar(&opts.Invert, "invert", false, "invert the image")
	cmd.Flags().StringVar(&opts.Command, "command", "", "capture command (default: capture_command from config)")
	return cmd
}

func runScreenshot(opts *ScreenshotOptions, cmd *cobra.Command) error {
	c, cfg, err := opts.client()
	if err != nil {
		return err
	}
	command := cfg.CaptureCommand
	if opts.Command != "" {
		command = opts.Command
	}
	out := opts.formatter(cmd)
	ctx := commandContext(cmd)

	dir, err := os.MkdirTemp("", "sheetsync-capture-")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create capture dir", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "capture.png")

	if err := imaging.NewCapturer(command).Capture(ctx, path); err != nil {
		return out.Error(WrapExitError(ExitCommandError, "screenshot failed", err))
	}
	img, err := loadForScreen(ctx, c, path, imaging.Rotate270, opts.Invert)
	if err != nil {
		return out.Error(err)
	}
	if err := c.UploadTransient(ctx, opts.Name, img); err != nil {
		return out.Error(deviceError("screenshot", err))
	}
	return out.Success(map[string]any{"name": opts.Name, "width": img.Width, "height": img.Height}, func(w io.Writer) {
		fmt.Fprintf(w, "captured screenshot (%dx%d)\n", img.Width, img.Height)
	})
}

// NewClearTransientCommand creates the clear-transient command.
func NewClearTransientCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear-transient",
		Short:         "Empty the transient slot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rootOpts.client()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			if err := c.ClearTransient(commandContext(cmd)); err != nil {
				return out.Error(deviceError("clear-transient", err))
			}
			return out.Success(map[string]any{"cleared": true}, func(w io.Writer) {
				fmt.Fprintln(w, "transient cleared")
			})
		},
	}
}

// InputOptions holds flags for the input command.
type InputOptions struct {
	*RootOptions
	Long bool
	Hold time.Duration
}

// NewInputCommand creates the input command.
func NewInputCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InputOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "input <prev|next|menu|init|show|repaint|exit>...",
		Short: "Simulate device buttons and lifecycle events",
		Long: `Simulate device buttons and lifecycle events.

A key is pressed and released; --long holds it past the long-press
threshold, which switches mode instead of paging.

Examples:
  sheetsync input next
  sheetsync input --long prev
  sheetsync input repaint`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInput(opts, cmd, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Long, "long", false, "long press (hold for the configured threshold)")
	cmd.Flags().DurationVar(&opts.Hold, "hold", 0, "explicit hold duration for key presses")
	return cmd
}

func runInput(opts *InputOptions, cmd *cobra.Command, args []string) error {
	type action struct {
		key   ui.Key
		event ui.EventType
	}
	actions := make([]action, 0, len(args))
	for _, arg := range args {
		if k, err := ui.ParseKey(arg); err == nil {
			actions = append(actions, action{key: k})
			continue
		}
		typ, err := ui.ParseEventType(arg)
		if err != nil || typ == ui.EventKeyDown || typ == ui.EventKeyUp {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown input %q", arg))
		}
		actions = append(actions, action{event: typ})
	}

	c, cfg, err := opts.client()
	if err != nil {
		return err
	}
	out := opts.formatter(cmd)
	ctx := commandContext(cmd)

	hold := opts.Hold
	if opts.Long && hold == 0 {
		hold = cfg.LongPress()
	}
	for i, a := range actions {
		if a.key != 0 {
			err = c.Press(ctx, a.key, hold)
		} else {
			err = c.Input(ctx, ui.DeviceEvent{Type: a.event})
		}
		if err != nil {
			return out.Error(deviceError("input "+args[i], err))
		}
	}
	return out.Success(map[string]any{"sent": args}, func(w io.Writer) {
		fmt.Fprintf(w, "sent %s\n", strings.Join(args, " "))
	})
}
