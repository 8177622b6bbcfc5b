package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/schema"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <docs-dir>",
		Short: "Validate a local document tree before publishing",
		Long: `Validate default.json and every <tag>/conf.json, <tag>/events.json,
and <tag>/tips.json under a directory against the document schemas.

Exit code 1 means at least one document failed validation.

Example:
  tagstack validate ./publish`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

// validationResult is one document's outcome.
type validationResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); err != nil {
		return WrapExitError(ExitCommandError, "document directory", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return WrapExitError(ExitCommandError, "load document schemas", err)
	}

	var results []validationResult
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		results = append(results, validateDocument(validator, path, rel))
		return nil
	})
	if walkErr != nil {
		return WrapExitError(ExitCommandError, "walk document directory", walkErr)
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	failed := 0
	for _, r := range results {
		if !r.Valid {
			failed++
		}
	}

	if opts.Format == "json" {
		if err := out.Success(map[string]any{
			"documents": results,
			"failed":    failed,
		}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "ok    %s\n", r.Path)
			} else {
				fmt.Fprintf(w, "FAIL  %s: %s\n", r.Path, r.Error)
			}
		}
		fmt.Fprintf(w, "%d document(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) failed validation", failed))
	}
	return nil
}

// validateDocument dispatches on the file's role in the layout: the root
// document, a tag config, or an entity array.
func validateDocument(v *schema.Validator, path, rel string) validationResult {
	result := validationResult{Path: rel, Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Error = err.Error()
		return result
	}

	base := filepath.Base(rel)
	var verr error
	switch base {
	case "default.json":
		verr = validateAs(data, func(doc map[string]any) error { return v.ValidateRoot(doc) })
	case "conf.json":
		verr = validateAs(data, func(doc map[string]any) error { return v.ValidateTagConfig(doc) })
	case "events.json", "tips.json":
		verr = validateEntityFile(v, data, base)
	default:
		// Unknown JSON files are not part of the layout; skip silently.
		return result
	}

	if verr != nil {
		result.Valid = false
		result.Error = verr.Error()
	}
	return result
}

func validateAs(data []byte, check func(map[string]any) error) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("not a JSON object: %w", err)
	}
	return check(doc)
}

func validateEntityFile(v *schema.Validator, data []byte, base string) error {
	kindKey := "events"
	if base == "tips.json" {
		kindKey = "tips"
	}

	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	var arr []any
	switch doc := probe.(type) {
	case []any:
		arr = doc
	case map[string]any:
		wrapped, ok := doc[kindKey].([]any)
		if !ok {
			return fmt.Errorf("no %q array in wrapped document", kindKey)
		}
		arr = wrapped
	default:
		return fmt.Errorf("neither an array nor a wrapped document")
	}

	items := make([]entity.Entity, 0, len(arr))
	for _, elem := range arr {
		m, ok := elem.(map[string]any)
		if !ok {
			return fmt.Errorf("non-object entry in %s array", kindKey)
		}
		items = append(items, entity.Entity(m))
	}
	return v.ValidateEntities(items)
}
