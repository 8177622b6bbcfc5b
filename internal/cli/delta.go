package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lowpoly/tagstack/internal/entity"
)

// DeltaOptions holds flags for the delta command.
type DeltaOptions struct {
	*RootOptions
	OutDir  string
	Archive string
}

// NewDeltaCommand creates the delta command.
func NewDeltaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeltaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Export the minimal delta files the active tag would publish",
		Long: `Compose the active tag's effective dataset (including local overrides),
recompose only its parent chain, and write the minimal conf.json,
events.json, and tips.json that reproduce the effective state when
layered over the parents. Entities removed locally become
{id, deleted: true} tombstones.

Example:
  tagstack delta --out ./publish
  tagstack delta --archive raidnight.zip`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelta(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out", ".", "directory to write the delta files into")
	cmd.Flags().StringVar(&opts.Archive, "archive", "", "write an all-in-one zip to this path instead of loose files")

	return cmd
}

func runDelta(opts *DeltaOptions, cmd *cobra.Command) error {
	app, err := newApp(opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	app.events.Hydrate()
	app.tips.Hydrate()
	if err := app.events.InitializeFromConfig(ctx, false); err != nil {
		return WrapExitError(ExitFailure, "load events", err)
	}
	if err := app.tips.InitializeFromConfig(ctx, false); err != nil {
		return WrapExitError(ExitFailure, "load tips", err)
	}

	activeTag := app.resolver.Active()
	files, err := app.composer.BuildChildDeltaFiles(ctx, app.events.Items(), app.tips.Items(), activeTag)
	if err != nil {
		return WrapExitError(ExitFailure, "build delta files", err)
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Archive != "" {
		f, err := os.Create(opts.Archive)
		if err != nil {
			return WrapExitError(ExitFailure, "create archive", err)
		}
		if err := files.WriteArchive(f); err != nil {
			f.Close()
			return WrapExitError(ExitFailure, "write archive", err)
		}
		if err := f.Close(); err != nil {
			return WrapExitError(ExitFailure, "write archive", err)
		}
		return reportDelta(out, opts, files.Tag, opts.Archive)
	}

	dir := filepath.Join(opts.OutDir, files.Tag)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapExitError(ExitFailure, "create output directory", err)
	}

	conf, err := files.MarshalConfigFile()
	if err != nil {
		return WrapExitError(ExitFailure, "render conf.json", err)
	}
	events, err := files.MarshalEntityFile(entity.KindEvents)
	if err != nil {
		return WrapExitError(ExitFailure, "render events.json", err)
	}
	tips, err := files.MarshalEntityFile(entity.KindTips)
	if err != nil {
		return WrapExitError(ExitFailure, "render tips.json", err)
	}

	for name, data := range map[string][]byte{
		"conf.json":   conf,
		"events.json": events,
		"tips.json":   tips,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return WrapExitError(ExitFailure, "write "+name, err)
		}
	}

	return reportDelta(out, opts, files.Tag, dir)
}

func reportDelta(out *OutputFormatter, opts *DeltaOptions, tagName, target string) error {
	if opts.Format == "json" {
		return out.Success(map[string]any{
			"tag":    tagName,
			"target": target,
		})
	}
	fmt.Fprintf(out.Writer, "Delta files for %s written to %s\n", tagName, target)
	return nil
}
