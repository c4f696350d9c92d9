package groundtruth

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Columns is the exact, case-sensitive column set of a ground-truth row.
var Columns = []string{
	"CompanyId",
	"ReturnedInvoiceId",
	"returnedMessageItemId",
	"returnedDocumentId",
	"ReturnedMessageItemFileName",
	"OriginalMessageItemId",
	"ReturnedMessageId",
	"ReturnedMessageCreatedTime",
	"VendorName",
	"VendorNumber",
	"InfinxInvoiceNumber",
	"InfinxInvoiceAmount",
	"InfinxInvoiceDate",
	"InfinxVendorNumber",
	"InfinxPurchaseOrder",
	"SalesOrderNumber",
	"SalesOrderDate",
	"DueDate",
	"SalesTaxPercent",
	"SalesTaxAmount",
	"MiscCharges",
	"DeliveryDate",
	"ShipDate",
	"ShippingCharges",
	"PurchaseOrderNum",
	"PurchaseOrderLineNum",
	"SupplierPartNum",
	"ItemDescription",
	"UnitOfMeasure",
	"UnitPrice",
	"Quantity",
	"LineItemNetTotal",
	"TaxPercent",
	"TaxAmount",
	"LineItemTotal",
	"MiscAmount",
	"MiscInfo",
	"MiscInfoXML",
	"ContactType",
	"ContactType_US",
	"ContactName",
	"ContactAddress1",
	"ContactAddress2",
	"ContactCity",
	"ContactState",
}

// IDColumn is the column documents are grouped by.
const IDColumn = "OriginalMessageItemId"

type setter func(r *invoice.DenormalizedRecord, v any) error

// setters maps each column onto its record field.
var setters = map[string]setter{
	"CompanyId":                   intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.CompanyID }),
	"ReturnedInvoiceId":           intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.ReturnedInvoiceID }),
	"returnedMessageItemId":       intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.ReturnedMessageItemID }),
	"returnedDocumentId":          intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.ReturnedDocumentID }),
	"ReturnedMessageItemFileName": stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ReturnedMessageItemFileName }),
	"OriginalMessageItemId":       stringField(func(r *invoice.DenormalizedRecord) *string { return &r.OriginalMessageItemID }),
	"ReturnedMessageId":           intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.ReturnedMessageID }),
	"ReturnedMessageCreatedTime":  stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ReturnedMessageCreatedTime }),
	"VendorName":                  stringField(func(r *invoice.DenormalizedRecord) *string { return &r.VendorName }),
	"VendorNumber":                stringField(func(r *invoice.DenormalizedRecord) *string { return &r.VendorNumber }),
	"InfinxInvoiceNumber":         stringField(func(r *invoice.DenormalizedRecord) *string { return &r.InfinxInvoiceNumber }),
	"InfinxInvoiceAmount":         decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.InfinxInvoiceAmount }),
	"InfinxInvoiceDate":           stringField(func(r *invoice.DenormalizedRecord) *string { return &r.InfinxInvoiceDate }),
	"InfinxVendorNumber":          stringField(func(r *invoice.DenormalizedRecord) *string { return &r.InfinxVendorNumber }),
	"InfinxPurchaseOrder":         stringField(func(r *invoice.DenormalizedRecord) *string { return &r.InfinxPurchaseOrder }),
	"SalesOrderNumber":            stringField(func(r *invoice.DenormalizedRecord) *string { return &r.SalesOrderNumber }),
	"SalesOrderDate":              opaqueField(func(r *invoice.DenormalizedRecord) *invoice.Opaque { return &r.SalesOrderDate }),
	"DueDate":                     stringField(func(r *invoice.DenormalizedRecord) *string { return &r.DueDate }),
	"SalesTaxPercent":             decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.SalesTaxPercent }),
	"SalesTaxAmount":              decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.SalesTaxAmount }),
	"MiscCharges":                 decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.MiscCharges }),
	"DeliveryDate":                opaqueField(func(r *invoice.DenormalizedRecord) *invoice.Opaque { return &r.DeliveryDate }),
	"ShipDate":                    opaqueField(func(r *invoice.DenormalizedRecord) *invoice.Opaque { return &r.ShipDate }),
	"ShippingCharges":             decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.ShippingCharges }),
	"PurchaseOrderNum":            stringField(func(r *invoice.DenormalizedRecord) *string { return &r.PurchaseOrderNum }),
	"PurchaseOrderLineNum":        stringField(func(r *invoice.DenormalizedRecord) *string { return &r.PurchaseOrderLineNum }),
	"SupplierPartNum":             stringField(func(r *invoice.DenormalizedRecord) *string { return &r.SupplierPartNum }),
	"ItemDescription":             stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ItemDescription }),
	"UnitOfMeasure":               stringField(func(r *invoice.DenormalizedRecord) *string { return &r.UnitOfMeasure }),
	"UnitPrice":                   nullDecimalField(func(r *invoice.DenormalizedRecord) *decimal.NullDecimal { return &r.UnitPrice }),
	"Quantity":                    nullDecimalField(func(r *invoice.DenormalizedRecord) *decimal.NullDecimal { return &r.Quantity }),
	"LineItemNetTotal":            nullDecimalField(func(r *invoice.DenormalizedRecord) *decimal.NullDecimal { return &r.LineItemNetTotal }),
	"TaxPercent":                  decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.TaxPercent }),
	"TaxAmount":                   decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.TaxAmount }),
	"LineItemTotal":               decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.LineItemTotal }),
	"MiscAmount":                  decimalField(func(r *invoice.DenormalizedRecord) *decimal.Decimal { return &r.MiscAmount }),
	"MiscInfo":                    stringField(func(r *invoice.DenormalizedRecord) *string { return &r.MiscInfo }),
	"MiscInfoXML":                 opaqueField(func(r *invoice.DenormalizedRecord) *invoice.Opaque { return &r.MiscInfoXML }),
	"ContactType":                 intField(func(r *invoice.DenormalizedRecord) *int64 { return &r.ContactType }),
	"ContactType_US":              stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactTypeUS }),
	"ContactName":                 stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactName }),
	"ContactAddress1":             stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactAddress1 }),
	"ContactAddress2":             stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactAddress2 }),
	"ContactCity":                 stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactCity }),
	"ContactState":                stringField(func(r *invoice.DenormalizedRecord) *string { return &r.ContactState }),
}

// checkColumns compares a source column list with Columns, ignoring order.
func checkColumns(got []string) error {
	seen := make(map[string]bool, len(got))
	var unexpected []string
	for _, c := range got {
		seen[c] = true
		if _, ok := setters[c]; !ok {
			unexpected = append(unexpected, c)
		}
	}
	var missing []string
	for _, c := range Columns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		return &SchemaMismatchError{Missing: missing, Unexpected: unexpected}
	}
	return nil
}

func intField(field func(*invoice.DenormalizedRecord) *int64) setter {
	return func(r *invoice.DenormalizedRecord, v any) error {
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		*field(r) = n
		return nil
	}
}

func stringField(field func(*invoice.DenormalizedRecord) *string) setter {
	return func(r *invoice.DenormalizedRecord, v any) error {
		s, err := toString(v)
		if err != nil {
			return err
		}
		*field(r) = s
		return nil
	}
}

func decimalField(field func(*invoice.DenormalizedRecord) *decimal.Decimal) setter {
	return func(r *invoice.DenormalizedRecord, v any) error {
		if v == nil {
			*field(r) = decimal.Zero
			return nil
		}
		d, err := toDecimal(v)
		if err != nil {
			return err
		}
		*field(r) = d
		return nil
	}
}

func nullDecimalField(field func(*invoice.DenormalizedRecord) *decimal.NullDecimal) setter {
	return func(r *invoice.DenormalizedRecord, v any) error {
		if v == nil {
			*field(r) = decimal.NullDecimal{}
			return nil
		}
		d, err := toDecimal(v)
		if err != nil {
			return err
		}
		*field(r) = decimal.NewNullDecimal(d)
		return nil
	}
}

func opaqueField(field func(*invoice.DenormalizedRecord) *invoice.Opaque) setter {
	return func(r *invoice.DenormalizedRecord, v any) error {
		if v == nil {
			*field(r) = invoice.Opaque{}
			return nil
		}
		s, err := toString(v)
		if err != nil {
			return err
		}
		*field(r) = invoice.ParseOpaque(s)
		return nil
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case int64:
		return decimal.NewFromInt(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		return decimal.NewFromString(x)
	case []byte:
		return decimal.NewFromString(string(x))
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type %T", v)
	}
}
