package groundtruth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Source looks up the ground-truth rows of one document.
type Source interface {
	Lookup(ctx context.Context, id string) ([]invoice.DenormalizedRecord, error)
}

// SkippedPath is a document file that could not be decomposed.
type SkippedPath struct {
	Path string
	Err  error
}

// AggregationFailure is a matched document whose rows did not aggregate.
type AggregationFailure struct {
	ID   string
	Path string
	Err  error
}

// JoinResult is the outcome of matching document files to ground truth.
type JoinResult struct {
	// Invoices holds one entry per matched id, in sorted path order.
	Invoices *InvoiceMap
	// Missing lists ids found on disk but absent from ground truth.
	Missing  []string
	Skipped  []SkippedPath
	Failures []AggregationFailure
}

// Joiner matches document files against ground truth.
type Joiner struct {
	source      Source
	concurrency int
}

// NewJoiner creates a Joiner issuing at most concurrency lookups at once.
func NewJoiner(source Source, concurrency int) *Joiner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Joiner{source: source, concurrency: concurrency}
}

// Join matches every path to its ground-truth rows and aggregates them.
//
// Paths are sorted first, so the result does not depend on enumeration
// order. Lookups run in parallel but are applied in sorted order. When two
// paths carry the same id the later path wins. Lookup errors (such as a
// *SchemaMismatchError) abort the join; per-document problems are recorded
// in the result instead.
func (j *Joiner) Join(ctx context.Context, root string, paths []string) (*JoinResult, error) {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	type lookup struct {
		doc      DocumentPath
		rows     []invoice.DenormalizedRecord
		shapeErr error
	}
	lookups := make([]lookup, len(sorted))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for i, path := range sorted {
		doc, err := ParseDocumentPath(root, path)
		if err != nil {
			lookups[i].shapeErr = err
			continue
		}
		lookups[i].doc = doc
		g.Go(func() error {
			rows, err := j.source.Lookup(gctx, doc.OriginalMessageItemID)
			if err != nil {
				return fmt.Errorf("looking up %s: %w", doc.OriginalMessageItemID, err)
			}
			lookups[i].rows = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &JoinResult{Invoices: NewInvoiceMap()}
	for i, l := range lookups {
		if l.shapeErr != nil {
			slog.Warn("skipping document with unexpected path", "path", sorted[i], "error", l.shapeErr)
			result.Skipped = append(result.Skipped, SkippedPath{Path: sorted[i], Err: l.shapeErr})
			continue
		}

		id := l.doc.OriginalMessageItemID
		if len(l.rows) == 0 {
			result.Missing = append(result.Missing, id)
			continue
		}

		inv, err := invoice.FromDenormalized(l.rows, l.doc.Path)
		if err != nil {
			slog.Warn("failed to aggregate document", "id", id, "path", l.doc.Path, "error", err)
			result.Failures = append(result.Failures, AggregationFailure{ID: id, Path: l.doc.Path, Err: err})
			continue
		}

		if result.Invoices.Set(id, inv) {
			slog.Warn("document id seen more than once, keeping the later file", "id", id, "path", l.doc.Path)
		}
	}

	return result, nil
}
