package invoice

import "github.com/shopspring/decimal"

// MetadataContactType marks a denormalized row that carries contact
// information rather than a purchased line item.
const MetadataContactType = 5

// Header holds the per-document columns that the source system repeats on
// every denormalized row of a document.
type Header struct {
	CompanyID                   int64           `json:"CompanyId"`
	ReturnedInvoiceID           int64           `json:"ReturnedInvoiceId"`
	ReturnedMessageItemID       int64           `json:"returnedMessageItemId"`
	ReturnedDocumentID          int64           `json:"returnedDocumentId"`
	ReturnedMessageItemFileName string          `json:"ReturnedMessageItemFileName"`
	OriginalMessageItemID       string          `json:"OriginalMessageItemId"`
	ReturnedMessageID           int64           `json:"ReturnedMessageId"`
	ReturnedMessageCreatedTime  string          `json:"ReturnedMessageCreatedTime"`
	VendorName                  string          `json:"VendorName"`
	VendorNumber                string          `json:"VendorNumber"`
	InfinxInvoiceNumber         string          `json:"InfinxInvoiceNumber"`
	InfinxInvoiceAmount         decimal.Decimal `json:"InfinxInvoiceAmount"`
	InfinxInvoiceDate           string          `json:"InfinxInvoiceDate"`
	InfinxVendorNumber          string          `json:"InfinxVendorNumber"`
	InfinxPurchaseOrder         string          `json:"InfinxPurchaseOrder"`
	SalesOrderNumber            string          `json:"SalesOrderNumber"`
	SalesOrderDate              Opaque          `json:"SalesOrderDate"`
	DueDate                     string          `json:"DueDate"`
	SalesTaxPercent             decimal.Decimal `json:"SalesTaxPercent"`
	SalesTaxAmount              decimal.Decimal `json:"SalesTaxAmount"`
	MiscCharges                 decimal.Decimal `json:"MiscCharges"`
	DeliveryDate                Opaque          `json:"DeliveryDate"`
	ShipDate                    Opaque          `json:"ShipDate"`
	ShippingCharges             decimal.Decimal `json:"ShippingCharges"`
	PurchaseOrderNum            string          `json:"PurchaseOrderNum"`
	PurchaseOrderLineNum        string          `json:"PurchaseOrderLineNum"`
	TaxPercent                  decimal.Decimal `json:"TaxPercent"`
	TaxAmount                   decimal.Decimal `json:"TaxAmount"`
	MiscAmount                  decimal.Decimal `json:"MiscAmount"`
	MiscInfo                    string          `json:"MiscInfo"`
	MiscInfoXML                 Opaque          `json:"MiscInfoXML"`
	ContactType                 int64           `json:"ContactType"`
	ContactTypeUS               string          `json:"ContactType_US"`
	ContactName                 string          `json:"ContactName"`
	ContactAddress1             string          `json:"ContactAddress1"`
	ContactAddress2             string          `json:"ContactAddress2"`
	ContactCity                 string          `json:"ContactCity"`
	ContactState                string          `json:"ContactState"`
}

// DenormalizedRecord is one ground-truth row: a document header joined with
// exactly one of its line items.
type DenormalizedRecord struct {
	Header
	LineFields
}

// IsContact reports whether the row is a contact/metadata row that must not
// become a line item.
func (r DenormalizedRecord) IsContact() bool {
	return r.ContactType == MetadataContactType
}
