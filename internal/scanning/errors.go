package scanning

import (
	"errors"
	"fmt"
	"strings"
)

// DeclinedError means the model answered without calling the extraction
// function, so there is nothing to validate.
type DeclinedError struct {
	Provider string
	Reason   string
}

func (e *DeclinedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: model did not call the tool", e.Provider)
	}
	return fmt.Sprintf("%s: model did not call the tool: %s", e.Provider, e.Reason)
}

// IsDeclined reports whether err is or wraps a *DeclinedError.
func IsDeclined(err error) bool {
	var declined *DeclinedError
	return errors.As(err, &declined)
}

// ExtractionSchemaError lists every way a model response broke the schema.
type ExtractionSchemaError struct {
	Problems []string
}

func (e *ExtractionSchemaError) Error() string {
	return "extraction does not match schema: " + strings.Join(e.Problems, "; ")
}
