package compare

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/pretty"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

var prettyOptions = &pretty.Options{
	Indent:   "    ",
	SortKeys: true,
}

// canonicalHeader mirrors invoice.HeaderInfo with decimals as bare JSON numbers.
type canonicalHeader struct {
	InvoiceNumber     string                    `json:"InvoiceNumber"`
	InvoiceAmount     json.Number               `json:"InvoiceAmount"`
	InvoiceDate       string                    `json:"InvoiceDate"`
	VendorNumber      string                    `json:"VendorNumber"`
	PurchaseOrder     string                    `json:"PurchaseOrder"`
	SalesTaxAmount    json.Number               `json:"SalesTaxAmount"`
	ShippingCharges   json.Number               `json:"ShippingCharges"`
	VendorContactInfo invoice.VendorContactInfo `json:"VendorContactInfo"`
}

type canonicalLine struct {
	ItemDescription  string      `json:"ItemDescription"`
	UnitOfMeasure    string      `json:"UnitOfMeasure"`
	UnitPrice        json.Number `json:"UnitPrice"`
	Quantity         json.Number `json:"Quantity"`
	LineItemNetTotal json.Number `json:"LineItemNetTotal"`
	LineItemTotal    json.Number `json:"LineItemTotal"`
	SupplierPartNum  string      `json:"SupplierPartNum"`
}

type canonicalInvoice struct {
	InvoiceHeaderInfo canonicalHeader `json:"InvoiceHeaderInfo"`
	InvoiceLineItems  []canonicalLine `json:"InvoiceLineItems"`
}

// Canonicalize renders x as indented JSON with keys sorted at every level.
// Equal values always produce identical text, so 1.50 and 1.5 render alike.
func Canonicalize(x invoice.Extracted) (string, error) {
	c := canonicalInvoice{
		InvoiceHeaderInfo: canonicalHeader{
			InvoiceNumber:     x.InvoiceHeaderInfo.InvoiceNumber,
			InvoiceAmount:     number(x.InvoiceHeaderInfo.InvoiceAmount),
			InvoiceDate:       x.InvoiceHeaderInfo.InvoiceDate,
			VendorNumber:      x.InvoiceHeaderInfo.VendorNumber,
			PurchaseOrder:     x.InvoiceHeaderInfo.PurchaseOrder,
			SalesTaxAmount:    number(x.InvoiceHeaderInfo.SalesTaxAmount),
			ShippingCharges:   number(x.InvoiceHeaderInfo.ShippingCharges),
			VendorContactInfo: x.InvoiceHeaderInfo.VendorContactInfo,
		},
		InvoiceLineItems: make([]canonicalLine, len(x.InvoiceLineItems)),
	}
	for i, item := range x.InvoiceLineItems {
		c.InvoiceLineItems[i] = canonicalLine{
			ItemDescription:  item.ItemDescription,
			UnitOfMeasure:    item.UnitOfMeasure,
			UnitPrice:        number(item.UnitPrice),
			Quantity:         number(item.Quantity),
			LineItemNetTotal: number(item.LineItemNetTotal),
			LineItemTotal:    number(item.LineItemTotal),
			SupplierPartNum:  item.SupplierPartNum,
		}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling invoice: %w", err)
	}
	return string(pretty.PrettyOptions(data, prettyOptions)), nil
}

// number is the shortest exact decimal form, without trailing zeros.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
