package invoice

import "github.com/shopspring/decimal"

// VendorContactInfo is the remit-to / vendor address block.
type VendorContactInfo struct {
	ContactName     string `json:"ContactName"`
	ContactAddress1 string `json:"ContactAddress1"`
	ContactAddress2 string `json:"ContactAddress2"`
	ContactCity     string `json:"ContactCity"`
	ContactState    string `json:"ContactState"`
}

// HeaderInfo is the subset of header fields an extraction model is asked for.
type HeaderInfo struct {
	InvoiceNumber     string            `json:"InvoiceNumber"`
	InvoiceAmount     decimal.Decimal   `json:"InvoiceAmount"`
	InvoiceDate       string            `json:"InvoiceDate"`
	VendorNumber      string            `json:"VendorNumber"`
	PurchaseOrder     string            `json:"PurchaseOrder"`
	SalesTaxAmount    decimal.Decimal   `json:"SalesTaxAmount"`
	ShippingCharges   decimal.Decimal   `json:"ShippingCharges"`
	VendorContactInfo VendorContactInfo `json:"VendorContactInfo"`
}

// Extracted is the unit of comparison between ground truth and model output.
type Extracted struct {
	InvoiceHeaderInfo HeaderInfo `json:"InvoiceHeaderInfo"`
	InvoiceLineItems  []LineItem `json:"InvoiceLineItems"`
}
