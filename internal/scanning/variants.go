package scanning

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are an accounts payable clerk." +
	" You extract information from submitted PDF invoices and call the provided function." +
	" Unless otherwise instructured, preserve the case and formatting as is from the PDF." +
	" It is okay to leave fields blank if you don't know."

// Built-in variant names.
const (
	VariantVision     = "vision"
	VariantFileSearch = "file-search"
)

// Header and line item field names a model may be asked for.
var (
	HeaderFields = []string{
		"SalesTaxAmount",
		"ShippingCharges",
		"InvoiceNumber",
		"InvoiceAmount",
		"InvoiceDate",
		"VendorNumber",
		"PurchaseOrder",
	}
	LineItemFields = []string{
		"ItemDescription",
		"UnitOfMeasure",
		"UnitPrice",
		"Quantity",
		"LineItemNetTotal",
		"LineItemTotal",
		"SupplierPartNum",
	}
	VendorContactFields = []string{
		"ContactName",
		"ContactAddress1",
		"ContactAddress2",
		"ContactCity",
		"ContactState",
	}
)

// Variant is one way of prompting a model for an invoice. The schema a model
// sees is derived from it with Schema.
type Variant struct {
	Name                 string            `yaml:"-"`
	Extends              string            `yaml:"extends,omitempty"`
	SystemPrompt         string            `yaml:"system_prompt"`
	UserPrompt           string            `yaml:"user_prompt"`
	FunctionName         string            `yaml:"function_name"`
	FunctionDescription  string            `yaml:"function_description"`
	IncludeVendorContact bool              `yaml:"include_vendor_contact"`
	HeaderRequired       []string          `yaml:"header_required"`
	LineItemRequired     []string          `yaml:"line_item_required"`
	// Descriptions are keyed by dotted field path, e.g.
	// "InvoiceHeaderInfo.InvoiceDate" or "InvoiceLineItems.ItemDescription".
	// "InvoiceLineItems" describes each line item object.
	Descriptions map[string]string `yaml:"descriptions"`
}

// BuiltinVariants returns fresh copies of the built-in variants.
func BuiltinVariants() map[string]Variant {
	return map[string]Variant{
		VariantVision: {
			Name:                 VariantVision,
			SystemPrompt:         defaultSystemPrompt,
			UserPrompt:           "Generate a data object from this PDF",
			FunctionName:         "extract_invoice_info",
			FunctionDescription:  "Record the information extracted from an invoice.",
			IncludeVendorContact: true,
			HeaderRequired:       []string{"InvoiceAmount", "InvoiceDate", "VendorNumber"},
			LineItemRequired:     []string{"ItemDescription", "LineItemTotal"},
			Descriptions: map[string]string{
				"InvoiceHeaderInfo.InvoiceDate":       "Use YYYY-MM-DDTHH:mm:SS format, and specify 00:00:00 if the time is not known.",
				"InvoiceHeaderInfo.PurchaseOrder":     "Usually an abbreviation, like PO. Do NOT use the 'Sales Order' or 'Invoice #' or 'Customer #' or similar as the purchase order.",
				"InvoiceHeaderInfo.VendorContactInfo": "Under a remit to or other vendor stated section. Do not use the purchaser's contact information.",
				"InvoiceLineItems":                    "Make sure to capture ALL line items on the document. Capture each item. Look for horizontal entries which have a price in them on the far right side.",
				"InvoiceLineItems.ItemDescription":    "Do not correct typos in the source document.",
				"InvoiceLineItems.SupplierPartNum":    "This may be called 'Model', 'Product', or similar names.",
			},
		},
		VariantFileSearch: {
			Name:                VariantFileSearch,
			SystemPrompt:        "You are an accounts payable clerk. You extract information from submitted PDF invoices and call the provided function.",
			UserPrompt:          "Call extract_invoice_info for the provided file",
			FunctionName:        "extract_invoice_info",
			FunctionDescription: "Record the information extracted from an invoice.",
			HeaderRequired:      slices.Clone(HeaderFields),
			LineItemRequired:    slices.Clone(LineItemFields),
			Descriptions:        map[string]string{},
		},
	}
}

type variantsFile struct {
	Variants map[string]yaml.Node `yaml:"variants"`
}

// LoadVariants returns the built-in variants overlaid with the variants
// defined in a YAML file. An entry with the name of an existing variant, or
// one naming it in extends, starts from that variant and replaces only the
// keys it sets. An empty path returns the built-ins.
func LoadVariants(path string) (map[string]Variant, error) {
	variants := BuiltinVariants()
	if path == "" {
		return variants, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variants file: %w", err)
	}

	var file variantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	names := make([]string, 0, len(file.Variants))
	for name := range file.Variants {
		names = append(names, name)
	}
	sort.Strings(names)

	// Entries may extend each other in any order, so resolve until stuck.
	pending := names
	for len(pending) > 0 {
		var next []string
		for _, name := range pending {
			node := file.Variants[name]
			var head struct {
				Extends string `yaml:"extends"`
			}
			if err := node.Decode(&head); err != nil {
				return nil, fmt.Errorf("variant %s: %w", name, err)
			}

			base, ok := variants[name]
			if head.Extends != "" {
				if slices.Contains(pending, head.Extends) && head.Extends != name {
					next = append(next, name)
					continue
				}
				base, ok = variants[head.Extends]
				if !ok {
					return nil, fmt.Errorf("variant %s extends unknown variant %q", name, head.Extends)
				}
			}

			v := base.clone()
			if err := node.Decode(&v); err != nil {
				return nil, fmt.Errorf("variant %s: %w", name, err)
			}
			v.Name = name
			if err := v.validate(); err != nil {
				return nil, err
			}
			variants[name] = v
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("variants %v extend each other in a cycle", next)
		}
		pending = next
	}

	return variants, nil
}

// LookupVariant finds a variant by name.
func LookupVariant(variants map[string]Variant, name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		known := slices.Sorted(maps.Keys(variants))
		return Variant{}, fmt.Errorf("unknown variant %q (known: %v)", name, known)
	}
	return v, nil
}

func (v Variant) clone() Variant {
	v.HeaderRequired = slices.Clone(v.HeaderRequired)
	v.LineItemRequired = slices.Clone(v.LineItemRequired)
	v.Descriptions = maps.Clone(v.Descriptions)
	if v.Descriptions == nil {
		v.Descriptions = map[string]string{}
	}
	return v
}

func (v Variant) validate() error {
	if v.FunctionName == "" {
		return fmt.Errorf("variant %s: function_name is required", v.Name)
	}
	for _, f := range v.HeaderRequired {
		if !slices.Contains(HeaderFields, f) && !(f == "VendorContactInfo" && v.IncludeVendorContact) {
			return fmt.Errorf("variant %s: unknown header field %q", v.Name, f)
		}
	}
	for _, f := range v.LineItemRequired {
		if !slices.Contains(LineItemFields, f) {
			return fmt.Errorf("variant %s: unknown line item field %q", v.Name, f)
		}
	}
	return nil
}
