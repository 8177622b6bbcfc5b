package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowpoly/tagstack/internal/compose"
)

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Show the resolved tag and its ancestry chain",
		Long: `Resolve the active tag (query pin, stored tag, domain map, default,
fallback - in that order) and walk its parent chain.

Example:
  tagstack tags
  tagstack tags --tag sandbox --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(rootOpts, cmd)
		},
	}
	return cmd
}

func runTags(opts *RootOptions, cmd *cobra.Command) error {
	app, err := newApp(opts, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	if _, err := app.composer.FetchBundle(ctx, false, compose.Options{}); err != nil {
		return WrapExitError(ExitFailure, "resolve tag", err)
	}

	activeTag := app.resolver.Active()
	chain := app.composer.Ancestry(ctx, activeTag)

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"tag":      activeTag,
			"ancestry": chain,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Tag: %s\n", activeTag)
	fmt.Fprintf(w, "Ancestry (root first): %s\n", strings.Join(chain, " -> "))
	return nil
}
