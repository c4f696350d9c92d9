package groundtruth

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// fakeCursor serves fixed rows and records how it was consumed.
type fakeCursor struct {
	columns  []string
	rows     [][]any
	pos      int
	nexts    int
	closed   bool
	scanErr  error
	finalErr error
}

func newFakeCursor(n int) *fakeCursor {
	c := &fakeCursor{columns: append([]string(nil), Columns...)}
	for i := 0; i < n; i++ {
		row := make([]any, len(Columns))
		for j, col := range Columns {
			switch col {
			case "OriginalMessageItemId":
				row[j] = "ABC123"
			case "ItemDescription":
				row[j] = []byte("item")
			case "LineItemTotal":
				row[j] = float64(i + 1)
			case "ContactType":
				row[j] = int64(1)
			}
		}
		c.rows = append(c.rows, row)
	}
	return c
}

func (c *fakeCursor) Columns() ([]string, error) { return c.columns, nil }

func (c *fakeCursor) Next() bool {
	c.nexts++
	if c.pos >= len(c.rows) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Scan(dest ...any) error {
	if c.scanErr != nil {
		return c.scanErr
	}
	for i, v := range c.rows[c.pos-1] {
		*(dest[i].(*any)) = v
	}
	return nil
}

func (c *fakeCursor) Err() error   { return c.finalErr }
func (c *fakeCursor) Close() error { c.closed = true; return nil }

var _ = Describe("Records", func() {
	var cursor *fakeCursor

	When("the cursor has more rows than one batch", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(5)
		})

		It("should yield every row in order", func() {
			records, err := Collect(Records(cursor, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(5))
			for i, rec := range records {
				Expect(rec.LineItemTotal.IntPart()).To(Equal(int64(i + 1)))
			}
		})

		It("should convert byte values to strings", func() {
			records, err := Collect(Records(cursor, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].ItemDescription).To(Equal("item"))
		})

		It("should leave absent optional numbers unset", func() {
			records, err := Collect(Records(cursor, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].UnitPrice.Valid).To(BeFalse())
		})

		It("should close the cursor", func() {
			_, err := Collect(Records(cursor, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(cursor.closed).To(BeTrue())
		})
	})

	When("the consumer stops early", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1000)
		})

		It("should read no further than the current batch", func() {
			for range Records(cursor, 256) {
				break
			}
			Expect(cursor.pos).To(Equal(256))
			Expect(cursor.closed).To(BeTrue())
		})
	})

	When("the batch size is not positive", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(300)
		})

		It("should fall back to the default batch size", func() {
			for range Records(cursor, 0) {
				break
			}
			Expect(cursor.pos).To(Equal(DefaultBatchSize))
		})
	})

	When("a column is missing and another is unexpected", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1)
			cursor.columns[0] = "CompanyIdentifier"
		})

		It("returns a SchemaMismatchError naming both", func() {
			_, err := Collect(Records(cursor, 2))
			var mismatch *SchemaMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Missing).To(ConsistOf("CompanyId"))
			Expect(mismatch.Unexpected).To(ConsistOf("CompanyIdentifier"))
		})
	})

	When("a value does not convert to its field type", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1)
			cursor.rows[0][0] = "not a number"
		})

		It("returns a SchemaMismatchError for that column", func() {
			_, err := Collect(Records(cursor, 2))
			var mismatch *SchemaMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Column).To(Equal("CompanyId"))
		})
	})

	When("scanning fails", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1)
			cursor.scanErr = errors.New("disk on fire")
		})

		It("returns the error", func() {
			_, err := Collect(Records(cursor, 2))
			Expect(err).To(MatchError(ContainSubstring("disk on fire")))
		})
	})

	When("the cursor reports an error after the last row", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1)
			cursor.finalErr = errors.New("connection reset")
		})

		It("returns the error", func() {
			_, err := Collect(Records(cursor, 2))
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})
	})

	When("a contact type arrives as text", func() {
		BeforeEach(func() {
			cursor = newFakeCursor(1)
			for j, col := range cursor.columns {
				if col == "ContactType" {
					cursor.rows[0][j] = "5"
				}
			}
		})

		It("should parse it", func() {
			records, err := Collect(Records(cursor, 2))
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].ContactType).To(Equal(int64(invoice.MetadataContactType)))
		})
	})
})

var _ = Describe("Columns", func() {
	It("should have a setter for every column", func() {
		for _, c := range Columns {
			Expect(setters).To(HaveKey(c))
		}
		Expect(setters).To(HaveLen(len(Columns)))
	})
})
