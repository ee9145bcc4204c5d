package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sheetsync/internal/content"
	"github.com/roach88/sheetsync/internal/transport"
)

// tagTarget names what a tag command edits.
type tagTarget struct {
	use    string
	noun   string
	add    func(ctx context.Context, c *transport.Client, target string, tags []string) error
	remove func(ctx context.Context, c *transport.Client, target string, sel content.TagSelector) error
}

var (
	entryTarget = tagTarget{
		use:  "<name>",
		noun: "entry",
		add: func(ctx context.Context, c *transport.Client, name string, tags []string) error {
			return c.AddEntryTags(ctx, name, tags)
		},
		remove: func(ctx context.Context, c *transport.Client, name string, sel content.TagSelector) error {
			return c.RemoveEntryTags(ctx, name, sel)
		},
	}
	wmClassTarget = tagTarget{
		use:  "<wm_class>",
		noun: "wm_class",
		add: func(ctx context.Context, c *transport.Client, wm string, tags []string) error {
			return c.AddWmClassTags(ctx, wm, tags)
		},
		remove: func(ctx context.Context, c *transport.Client, wm string, sel content.TagSelector) error {
			return c.RemoveWmClassTags(ctx, wm, sel)
		},
	}
)

// NewAddTagsCommand creates the add-tags command.
func NewAddTagsCommand(rootOpts *RootOptions) *cobra.Command {
	return newAddTagsCommand(rootOpts, "add-tags", entryTarget)
}

// NewRemoveTagsCommand creates the remove-tags command.
func NewRemoveTagsCommand(rootOpts *RootOptions) *cobra.Command {
	return newRemoveTagsCommand(rootOpts, "remove-tags", entryTarget)
}

// NewAddWmClassTagsCommand creates the add-wm-class-tags command. The
// wm_class is created on first use.
func NewAddWmClassTagsCommand(rootOpts *RootOptions) *cobra.Command {
	return newAddTagsCommand(rootOpts, "add-wm-class-tags", wmClassTarget)
}

// NewRemoveWmClassTagsCommand creates the remove-wm-class-tags command.
func NewRemoveWmClassTagsCommand(rootOpts *RootOptions) *cobra.Command {
	return newRemoveTagsCommand(rootOpts, "remove-wm-class-tags", wmClassTarget)
}

func newAddTagsCommand(rootOpts *RootOptions, name string, t tagTarget) *cobra.Command {
	return &cobra.Command{
		Use:           name + " " + t.use + " <tag>...",
		Short:         fmt.Sprintf("Add tags to a %s", t.noun),
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := rootOpts.client()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			target, tags := args[0], args[1:]
			if err := t.add(commandContext(cmd), c, target, tags); err != nil {
				return out.Error(deviceError(name, err))
			}
			return out.Success(map[string]any{t.noun: target, "added": tags}, func(w io.Writer) {
				fmt.Fprintf(w, "%s %s: added %s\n", t.noun, target, strings.Join(tags, ", "))
			})
		},
	}
}

func newRemoveTagsCommand(rootOpts *RootOptions, name string, t tagTarget) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:           name + " " + t.use + " [<tag>...] [--all]",
		Short:         fmt.Sprintf("Remove tags from a %s", t.noun),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, tags := args[0], args[1:]
			if all == (len(tags) > 0) {
				return NewExitError(ExitCommandError, "give either tags or --all")
			}
			sel := content.Only(tags...)
			if all {
				sel = content.AllTags()
			}

			c, _, err := rootOpts.client()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			if err := t.remove(commandContext(cmd), c, target, sel); err != nil {
				return out.Error(deviceError(name, err))
			}
			return out.Success(map[string]any{t.noun: target, "removed": tags, "all": all}, func(w io.Writer) {
				if all {
					fmt.Fprintf(w, "%s %s: removed all tags\n", t.noun, target)
					return
				}
				fmt.Fprintf(w, "%s %s: removed %s\n", t.noun, target, strings.Join(tags, ", "))
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every tag")
	return cmd
}
