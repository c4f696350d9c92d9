package scanning

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Fields every extraction needs regardless of variant.
var (
	alwaysHeaderRequired   = []string{"InvoiceAmount", "InvoiceDate", "InvoiceNumber"}
	alwaysLineItemRequired = []string{"LineItemTotal"}
)

// Validate checks raw function-call arguments against the variant's schema
// and builds the extracted invoice. Every problem found is reported in one
// *ExtractionSchemaError; nothing missing is filled in with a default unless
// the field is optional.
func Validate(raw []byte, v Variant) (*invoice.Extracted, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &ExtractionSchemaError{Problems: []string{"response is not valid JSON"}}
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, &ExtractionSchemaError{Problems: []string{"response is not a JSON object"}}
	}

	var c checker
	header := root.Get("InvoiceHeaderInfo")
	if !header.IsObject() {
		c.addf("InvoiceHeaderInfo: want object, got %s", typeName(header))
	}
	items := root.Get("InvoiceLineItems")
	if !items.IsArray() {
		c.addf("InvoiceLineItems: want array, got %s", typeName(items))
	}
	if len(c.problems) > 0 {
		return nil, c.err()
	}

	headerRequired := union(alwaysHeaderRequired, v.HeaderRequired)
	for _, name := range HeaderFields {
		c.check("InvoiceHeaderInfo."+name, header.Get(name), fieldType(name), slices.Contains(headerRequired, name))
	}
	contact := header.Get("VendorContactInfo")
	if v.IncludeVendorContact || contact.Exists() {
		required := v.IncludeVendorContact || slices.Contains(headerRequired, "VendorContactInfo")
		c.check("InvoiceHeaderInfo.VendorContactInfo", contact, TypeObject, required)
		if contact.IsObject() {
			for _, name := range VendorContactFields {
				c.check("InvoiceHeaderInfo.VendorContactInfo."+name, contact.Get(name), TypeString, false)
			}
		}
	}

	lineRequired := union(alwaysLineItemRequired, v.LineItemRequired)
	for i, item := range items.Array() {
		path := fmt.Sprintf("InvoiceLineItems[%d]", i)
		if !item.IsObject() {
			c.addf("%s: want object, got %s", path, typeName(item))
			continue
		}
		for _, name := range LineItemFields {
			c.check(path+"."+name, item.Get(name), fieldType(name), slices.Contains(lineRequired, name))
		}
	}

	if len(c.problems) > 0 {
		return nil, c.err()
	}
	return build(header, items), nil
}

func build(header, items gjson.Result) *invoice.Extracted {
	contact := header.Get("VendorContactInfo")
	out := &invoice.Extracted{
		InvoiceHeaderInfo: invoice.HeaderInfo{
			InvoiceNumber:   header.Get("InvoiceNumber").String(),
			InvoiceAmount:   number(header.Get("InvoiceAmount")).Decimal,
			InvoiceDate:     header.Get("InvoiceDate").String(),
			VendorNumber:    header.Get("VendorNumber").String(),
			PurchaseOrder:   header.Get("PurchaseOrder").String(),
			SalesTaxAmount:  number(header.Get("SalesTaxAmount")).Decimal,
			ShippingCharges: number(header.Get("ShippingCharges")).Decimal,
			VendorContactInfo: invoice.VendorContactInfo{
				ContactName:     contact.Get("ContactName").String(),
				ContactAddress1: contact.Get("ContactAddress1").String(),
				ContactAddress2: contact.Get("ContactAddress2").String(),
				ContactCity:     contact.Get("ContactCity").String(),
				ContactState:    contact.Get("ContactState").String(),
			},
		},
		InvoiceLineItems: []invoice.LineItem{},
	}

	for _, item := range items.Array() {
		out.InvoiceLineItems = append(out.InvoiceLineItems, invoice.NewLineItem(invoice.LineFields{
			SupplierPartNum:  item.Get("SupplierPartNum").String(),
			ItemDescription:  item.Get("ItemDescription").String(),
			UnitOfMeasure:    item.Get("UnitOfMeasure").String(),
			UnitPrice:        number(item.Get("UnitPrice")),
			Quantity:         number(item.Get("Quantity")),
			LineItemNetTotal: number(item.Get("LineItemNetTotal")),
			LineItemTotal:    number(item.Get("LineItemTotal")).Decimal,
		}))
	}
	return out
}

// number reads a checked JSON number exactly as written. Absent or null is
// an invalid NullDecimal, whose Decimal is zero.
func number(r gjson.Result) decimal.NullDecimal {
	if r.Type != gjson.Number {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(r.Raw)
	if err != nil {
		return decimal.NewNullDecimal(decimal.NewFromFloat(r.Num))
	}
	return decimal.NewNullDecimal(d)
}

type checker struct {
	problems []string
}

func (c *checker) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *checker) check(path string, r gjson.Result, want FieldType, required bool) {
	if !r.Exists() || r.Type == gjson.Null {
		if required {
			c.addf("%s is required", path)
		}
		return
	}
	var ok bool
	switch want {
	case TypeString:
		ok = r.Type == gjson.String
	case TypeNumber:
		ok = r.Type == gjson.Number
	case TypeObject:
		ok = r.IsObject()
	case TypeArray:
		ok = r.IsArray()
	}
	if !ok {
		c.addf("%s: want %s, got %s", path, want, typeName(r))
	}
}

func (c *checker) err() error {
	return &ExtractionSchemaError{Problems: c.problems}
}

func typeName(r gjson.Result) string {
	switch {
	case !r.Exists():
		return "nothing"
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	case r.Type == gjson.String:
		return "string"
	case r.Type == gjson.Number:
		return "number"
	case r.Type == gjson.True, r.Type == gjson.False:
		return "boolean"
	default:
		return "null"
	}
}

func union(a, b []string) []string {
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
