package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowpoly/tagstack/internal/compose"
	"github.com/lowpoly/tagstack/internal/diff"
	"github.com/lowpoly/tagstack/internal/entity"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Force bool
	Diff  bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective dataset for the active tag",
		Long: `Compose the active tag's ancestry chain, apply local overrides, and
print the resulting events and tips.

Example:
  tagstack show --tag raidnight
  tagstack show --diff --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "bypass the composition cache")
	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "annotate entities with their divergence from the parent chain")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	app, err := newApp(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	app.events.Hydrate()
	app.tips.Hydrate()
	if err := app.events.InitializeFromConfig(ctx, opts.Force); err != nil {
		return WrapExitError(ExitFailure, "load events", err)
	}
	if err := app.tips.InitializeFromConfig(ctx, opts.Force); err != nil {
		return WrapExitError(ExitFailure, "load tips", err)
	}

	activeTag := app.resolver.Active()
	events := app.events.Items()
	tips := app.tips.Items()

	// Cache hit: the dataset initialization above already composed this tag.
	bundle, err := app.composer.FetchBundle(ctx, false, compose.Options{})
	if err != nil {
		return WrapExitError(ExitFailure, "compose bundle", err)
	}

	var idx *diff.Index
	if opts.Diff {
		idx = diff.ComputeIndex(ctx, app.composer, events, tips, activeTag)
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Format == "json" {
		payload := map[string]any{
			"tag":       activeTag,
			"updated":   bundle.Updated,
			"tagConfig": bundle.TagConfig,
			"events":    events,
			"tips":      tips,
		}
		if idx != nil {
			payload["diff"] = idx
		}
		return out.Success(payload)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Tag: %s\n", activeTag)
	if bundle.Updated != "" {
		fmt.Fprintf(w, "Updated: %s\n", bundle.Updated)
	}
	printEntities(w, "Events", events, pickDiff(idx, entity.KindEvents))
	printEntities(w, "Tips", tips, pickDiff(idx, entity.KindTips))
	return nil
}

func pickDiff(idx *diff.Index, kind entity.Kind) map[string]diff.EntityDiff {
	if idx == nil {
		return nil
	}
	if kind == entity.KindTips {
		return idx.Tips
	}
	return idx.Events
}

func printEntities(w io.Writer, label string, items []entity.Entity, diffs map[string]diff.EntityDiff) {
	fmt.Fprintf(w, "%s (%d):\n", label, len(items))
	for _, item := range items {
		id, _ := item.ID()
		line := fmt.Sprintf("  %-16s %s", id, entityTitle(item))
		if diffs != nil {
			if d, ok := diffs[id]; ok {
				switch {
				case d.NewInTag:
					line += "  [new in tag]"
				case len(d.OverrideKeys) > 0:
					line += fmt.Sprintf("  [overrides: %s]", strings.Join(d.OverrideKeys, ", "))
				}
			}
		}
		fmt.Fprintln(w, line)
	}
}

// entityTitle picks a display string from the usual label fields.
func entityTitle(item entity.Entity) string {
	for _, key := range []string{"title", "name", "text"} {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "{" + strings.Join(keys, ", ") + "}"
}
