package groundtruth

import (
	"fmt"
	"strings"
)

// SchemaMismatchError means the ground-truth source no longer has the shape
// the reader expects. It is systemic and aborts ingestion.
type SchemaMismatchError struct {
	Missing    []string // expected columns the source lacks
	Unexpected []string // source columns that are not expected
	Column     string   // set when a single value failed to convert
	Err        error
}

func (e *SchemaMismatchError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema mismatch: column %s: %v", e.Column, e.Err)
	}
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns ["+strings.Join(e.Missing, ", ")+"]")
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected columns ["+strings.Join(e.Unexpected, ", ")+"]")
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// PathShapeError means a document path is not <root>/<group>/<id>/<file>.
type PathShapeError struct {
	Path       string
	Components int
}

func (e *PathShapeError) Error() string {
	return fmt.Sprintf("document path %q has %d components below the root, want 3", e.Path, e.Components)
}
