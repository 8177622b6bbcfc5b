// Package schema validates fetched documents against CUE definitions at the
// ingest boundary.
//
// Validation is deliberately loose: document structs are open, so tag
// metadata and entity domain fields pass through freely, and only the fields
// the composition engine depends on (parent pointers, domain mappings, id
// types) are constrained. A document that fails validation is demoted to
// absent by the caller, preserving the degrade-to-empty contract.
package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/lowpoly/tagstack/internal/entity"
)

//go:embed documents.cue
var documentsCUE string

// Validator checks decoded documents against the embedded definitions.
type Validator struct {
	ctx        *cue.Context
	root       cue.Value
	tagConfig  cue.Value
	entityList cue.Value
}

// NewValidator compiles the embedded schema. Compilation failure is a
// programmer error (the schema ships inside the binary).
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	compiled := ctx.CompileString(documentsCUE)
	if err := compiled.Err(); err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	v := &Validator{ctx: ctx}
	for _, def := range []struct {
		path string
		dst  *cue.Value
	}{
		{"#Root", &v.root},
		{"#TagConfig", &v.tagConfig},
		{"#EntityList", &v.entityList},
	} {
		val := compiled.LookupPath(cue.ParsePath(def.path))
		if err := val.Err(); err != nil {
			return nil, fmt.Errorf("lookup %s: %w", def.path, err)
		}
		*def.dst = val
	}
	return v, nil
}

// ValidateRoot checks a decoded root document.
func (v *Validator) ValidateRoot(doc map[string]any) error {
	return v.validate(v.root, doc, "root document")
}

// ValidateTagConfig checks a decoded tag config document.
func (v *Validator) ValidateTagConfig(doc map[string]any) error {
	return v.validate(v.tagConfig, doc, "tag config")
}

// ValidateEntities checks a decoded entity array. Entities without an id are
// legal here (the id-map builder skips them); an id of the wrong type is not.
func (v *Validator) ValidateEntities(items []entity.Entity) error {
	arr := make([]any, len(items))
	for i, item := range items {
		arr[i] = map[string]any(item)
	}
	return v.validate(v.entityList, arr, "entity list")
}

func (v *Validator) validate(def cue.Value, data any, what string) error {
	encoded := v.ctx.Encode(data)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("encode %s: %w", what, err)
	}
	unified := def.Unify(encoded)
	if err := unified.Validate(cue.Final()); err != nil {
		return fmt.Errorf("%s failed schema validation: %w", what, err)
	}
	return nil
}
