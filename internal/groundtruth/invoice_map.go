package groundtruth

import (
	"iter"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// InvoiceMap maps document ids to invoices and remembers insertion order.
// Setting an existing key replaces its value but keeps its position.
type InvoiceMap struct {
	keys   []string
	values map[string]*invoice.Invoice
}

func NewInvoiceMap() *InvoiceMap {
	return &InvoiceMap{values: make(map[string]*invoice.Invoice)}
}

// Set stores inv under id and reports whether an earlier value was replaced.
func (m *InvoiceMap) Set(id string, inv *invoice.Invoice) bool {
	_, replaced := m.values[id]
	if !replaced {
		m.keys = append(m.keys, id)
	}
	m.values[id] = inv
	return replaced
}

func (m *InvoiceMap) Get(id string) (*invoice.Invoice, bool) {
	inv, ok := m.values[id]
	return inv, ok
}

func (m *InvoiceMap) Len() int { return len(m.keys) }

// Keys returns a copy of the ids in insertion order.
func (m *InvoiceMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// All iterates in insertion order.
func (m *InvoiceMap) All() iter.Seq2[string, *invoice.Invoice] {
	return func(yield func(string, *invoice.Invoice) bool) {
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}
