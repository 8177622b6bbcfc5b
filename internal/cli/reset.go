package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lowpoly/tagstack/internal/entity"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Kind string
	ID   string
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear local overrides for the active tag",
		Long: `Without --id, wipes the whole local edit layer for the active tag and
the selected kind(s). With --id, restores that one entity to its
parent-chain value (requires network access to recompose the parents);
exit code 1 signals the id had no parent counterpart to reset to.

Example:
  tagstack reset --tag raidnight
  tagstack reset --kind events --id 4f1c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "all", "which dataset to reset (events|tips|all)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "reset a single entity to its parent-chain value")

	return cmd
}

func runReset(opts *ResetOptions, cmd *cobra.Command) error {
	kinds, err := resetKinds(opts.Kind)
	if err != nil {
		return err
	}
	if opts.ID != "" && len(kinds) != 1 {
		return NewExitError(ExitCommandError, "--id requires --kind events or --kind tips")
	}

	// Single-entity reset recomposes the parent chain, so it needs the
	// remote stack; a full wipe is local-only.
	app, err := newApp(opts.RootOptions, opts.ID != "")
	if err != nil {
		return err
	}
	defer app.Close()

	activeTag := resolveLocalTag(app, opts.RootOptions)
	if activeTag == "" {
		return NewExitError(ExitCommandError, "no active tag; pass --tag or run show first")
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.ID != "" {
		return resetSingle(opts, app, kinds[0], activeTag, out, cmd)
	}

	for _, kind := range kinds {
		if err := app.persist.ClearOverrides(activeTag, kind); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("clear %s overrides", kind), err)
		}
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"tag":   activeTag,
			"kinds": kinds,
		})
	}
	fmt.Fprintf(out.Writer, "Cleared local overrides for %s (%v)\n", activeTag, opts.Kind)
	return nil
}

func resetSingle(opts *ResetOptions, app *app, kind entity.Kind, activeTag string, out *OutputFormatter, cmd *cobra.Command) error {
	store := app.events
	if kind == entity.KindTips {
		store = app.tips
	}

	ctx := cmd.Context()
	store.Hydrate()
	if err := store.InitializeFromConfig(ctx, false); err != nil {
		return WrapExitError(ExitFailure, "load dataset", err)
	}

	found, err := store.ResetOverrides(ctx, opts.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "reset entity", err)
	}
	if !found {
		return NewExitError(ExitFailure,
			fmt.Sprintf("entity %q has no parent-chain counterpart; nothing to reset to", opts.ID))
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"tag":  activeTag,
			"kind": kind,
			"id":   opts.ID,
		})
	}
	fmt.Fprintf(out.Writer, "Reset %s %s to its parent-chain value\n", kind, opts.ID)
	return nil
}

func resetKinds(flag string) ([]entity.Kind, error) {
	switch flag {
	case "events":
		return []entity.Kind{entity.KindEvents}, nil
	case "tips":
		return []entity.Kind{entity.KindTips}, nil
	case "all":
		return []entity.Kind{entity.KindEvents, entity.KindTips}, nil
	default:
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid kind %q: must be events, tips, or all", flag))
	}
}

// resolveLocalTag picks the tag to operate on without touching the network:
// the --tag pin when given, else the stored active tag.
func resolveLocalTag(app *app, opts *RootOptions) string {
	if opts.Tag != "" {
		return opts.Tag
	}
	if stored, ok := app.persist.LoadActiveTag(); ok {
		return stored
	}
	return ""
}
