package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one line of an invoice. Build it with NewLineItem so the
// normalization rules are applied; it is not modified afterwards.
type LineItem struct {
	ItemDescription  string          `json:"ItemDescription"`
	UnitOfMeasure    string          `json:"UnitOfMeasure"`
	UnitPrice        decimal.Decimal `json:"UnitPrice"`
	Quantity         decimal.Decimal `json:"Quantity"`
	LineItemNetTotal decimal.Decimal `json:"LineItemNetTotal"`
	LineItemTotal    decimal.Decimal `json:"LineItemTotal"`
	SupplierPartNum  string          `json:"SupplierPartNum"`
}

// LineFields are the raw line-item columns of a denormalized row, or the
// line-item object of a model response, before normalization.
type LineFields struct {
	SupplierPartNum  string              `json:"SupplierPartNum"`
	ItemDescription  string              `json:"ItemDescription"`
	UnitOfMeasure    string              `json:"UnitOfMeasure"`
	UnitPrice        decimal.NullDecimal `json:"UnitPrice"`
	Quantity         decimal.NullDecimal `json:"Quantity"`
	LineItemNetTotal decimal.NullDecimal `json:"LineItemNetTotal"`
	LineItemTotal    decimal.Decimal     `json:"LineItemTotal"`
}

// NewLineItem normalizes raw fields into a LineItem:
//   - the description is upper-cased so textual comparison ignores case
//   - a missing unit price means the line is a single unit of its gross total
//   - a missing net total means no tax breakout on the line
//   - a missing quantity is 1
func NewLineItem(f LineFields) LineItem {
	item := LineItem{
		ItemDescription:  strings.ToUpper(f.ItemDescription),
		UnitOfMeasure:    f.UnitOfMeasure,
		UnitPrice:        f.LineItemTotal,
		Quantity:         decimal.NewFromInt(1),
		LineItemNetTotal: f.LineItemTotal,
		LineItemTotal:    f.LineItemTotal,
		SupplierPartNum:  f.SupplierPartNum,
	}
	if f.UnitPrice.Valid {
		item.UnitPrice = f.UnitPrice.Decimal
	}
	if f.Quantity.Valid {
		item.Quantity = f.Quantity.Decimal
	}
	if f.LineItemNetTotal.Valid {
		item.LineItemNetTotal = f.LineItemNetTotal.Decimal
	}
	return item
}

// Equal compares every field, treating decimals by value (1.0 == 1).
func (l LineItem) Equal(other LineItem) bool {
	return l.ItemDescription == other.ItemDescription &&
		l.UnitOfMeasure == other.UnitOfMeasure &&
		l.UnitPrice.Equal(other.UnitPrice) &&
		l.Quantity.Equal(other.Quantity) &&
		l.LineItemNetTotal.Equal(other.LineItemNetTotal) &&
		l.LineItemTotal.Equal(other.LineItemTotal) &&
		l.SupplierPartNum == other.SupplierPartNum
}
