package scanning

import (
	"context"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Page is one rendered page of a document, PNG encoded.
type Page struct {
	Number int
	PNG    []byte
}

// Request is a document to extract, already rasterized.
type Request struct {
	Path  string
	Pages []Page
}

// Extractor defines the interface for invoice extraction backends
type Extractor interface {
	// Extract asks the model for the invoice in req and validates the answer
	Extract(ctx context.Context, req Request) (*invoice.Extracted, error)
	// Close closes the extractor and releases resources
	Close() error
}
