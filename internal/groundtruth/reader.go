package groundtruth

import (
	"fmt"
	"iter"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// DefaultBatchSize bounds how many rows are materialized at a time.
const DefaultBatchSize = 256

// Cursor is the part of *sql.Rows the reader needs.
type Cursor interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Records turns a cursor into a lazy sequence of denormalized records, pulled
// batchSize rows at a time. The sequence consumes and closes the cursor, so
// it can be ranged over once.
//
// A column set that differs from Columns, or a value that does not convert to
// its field type, yields a *SchemaMismatchError and ends the sequence.
func Records(rows Cursor, batchSize int) iter.Seq2[invoice.DenormalizedRecord, error] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return func(yield func(invoice.DenormalizedRecord, error) bool) {
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(invoice.DenormalizedRecord{}, fmt.Errorf("reading columns: %w", err))
			return
		}
		if err := checkColumns(columns); err != nil {
			yield(invoice.DenormalizedRecord{}, err)
			return
		}

		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		batch := make([]invoice.DenormalizedRecord, 0, batchSize)
		for {
			batch = batch[:0]
			for len(batch) < batchSize && rows.Next() {
				if err := rows.Scan(dest...); err != nil {
					yield(invoice.DenormalizedRecord{}, fmt.Errorf("scanning row: %w", err))
					return
				}
				rec, err := toRecord(columns, values)
				if err != nil {
					yield(invoice.DenormalizedRecord{}, err)
					return
				}
				batch = append(batch, rec)
			}

			for _, rec := range batch {
				if !yield(rec, nil) {
					return
				}
			}
			if len(batch) < batchSize {
				break
			}
		}

		if err := rows.Err(); err != nil {
			yield(invoice.DenormalizedRecord{}, fmt.Errorf("iterating rows: %w", err))
		}
	}
}

// Collect drains a record sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[invoice.DenormalizedRecord, error]) ([]invoice.DenormalizedRecord, error) {
	var out []invoice.DenormalizedRecord
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(columns []string, values []any) (invoice.DenormalizedRecord, error) {
	var rec invoice.DenormalizedRecord
	for i, col := range columns {
		if err := setters[col](&rec, values[i]); err != nil {
			return invoice.DenormalizedRecord{}, &SchemaMismatchError{Column: col, Err: err}
		}
	}
	return rec, nil
}
