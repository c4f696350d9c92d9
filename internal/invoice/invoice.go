package invoice

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrEmptyGroup is returned when an invoice is built from zero rows.
var ErrEmptyGroup = errors.New("cannot build invoice from an empty group of rows")

// Invoice is the normalized aggregate of one document's denormalized rows.
type Invoice struct {
	Header
	FilePath  string     `json:"file_path,omitempty"`
	LineItems []LineItem `json:"line_items"`
}

// FromDenormalized builds an Invoice from the rows of a single document.
//
// The header is copied from rows[0] as is, even when that row is a contact
// row; rows of one document are expected to share header values. Every row
// that is not a contact row becomes a line item, in row order.
func FromDenormalized(rows []DenormalizedRecord, filePath string) (*Invoice, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyGroup
	}

	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		if row.IsContact() {
			continue
		}
		items = append(items, NewLineItem(row.LineFields))
	}

	return &Invoice{
		Header:    rows[0].Header,
		FilePath:  filePath,
		LineItems: items,
	}, nil
}

// GrossTotal sums the gross totals of all line items.
func (inv *Invoice) GrossTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.LineItems {
		total = total.Add(item.LineItemTotal)
	}
	return total
}

// ToExtracted projects the invoice onto the shape an extraction model is
// asked to produce.
func (inv *Invoice) ToExtracted() Extracted {
	items := make([]LineItem, len(inv.LineItems))
	copy(items, inv.LineItems)

	return Extracted{
		InvoiceHeaderInfo: HeaderInfo{
			SalesTaxAmount:  inv.SalesTaxAmount,
			ShippingCharges: inv.ShippingCharges,
			InvoiceNumber:   inv.InfinxInvoiceNumber,
			InvoiceAmount:   inv.InfinxInvoiceAmount,
			InvoiceDate:     inv.InfinxInvoiceDate,
			VendorNumber:    inv.InfinxVendorNumber,
			PurchaseOrder:   inv.InfinxPurchaseOrder,
			VendorContactInfo: VendorContactInfo{
				ContactName:     inv.ContactName,
				ContactAddress1: inv.ContactAddress1,
				ContactAddress2: inv.ContactAddress2,
				ContactCity:     inv.ContactCity,
				ContactState:    inv.ContactState,
			},
		},
		InvoiceLineItems: items,
	}
}
