// Package jsonkit provides the structural primitives the composition engine
// is built on: deep equality, recursive merge, minimal-delta computation, and
// canonical serialization over JSON-shaped Go values.
//
// Values are the ordinary encoding/json shapes: map[string]any, []any,
// string, float64 (plus in-memory int/int64), bool, and nil. Unlike stricter
// value models, floats and nulls are legal here - layer documents arrive as
// arbitrary JSON from config authors.
//
// # Merge/Delta Asymmetry
//
// Arrays are atomic: DeepMerge replaces an array field wholesale and
// ComputeDelta emits the whole edited array when it differs at all. Objects
// merge and diff recursively per key. The override math in internal/entity
// and the delta export in internal/compose both assume exactly this
// asymmetry; do not "improve" it with element-level array diffing.
package jsonkit
