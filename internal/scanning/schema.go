package scanning

import "slices"

// FieldType is the JSON type of a schema field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Field is a node of the provider-neutral schema a model is asked to fill.
// Each provider converts it to its own schema type.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Properties  []Field
	Items       *Field
	Required    []string
}

var numberFields = []string{
	"SalesTaxAmount",
	"ShippingCharges",
	"InvoiceAmount",
	"UnitPrice",
	"Quantity",
	"LineItemNetTotal",
	"LineItemTotal",
}

func fieldType(name string) FieldType {
	if slices.Contains(numberFields, name) {
		return TypeNumber
	}
	return TypeString
}

// Schema builds the function parameters schema for a variant.
func Schema(v Variant) Field {
	header := Field{
		Name:        "InvoiceHeaderInfo",
		Type:        TypeObject,
		Description: v.Descriptions["InvoiceHeaderInfo"],
		Required:    slices.Clone(v.HeaderRequired),
	}
	for _, name := range HeaderFields {
		header.Properties = append(header.Properties, Field{
			Name:        name,
			Type:        fieldType(name),
			Description: v.Descriptions["InvoiceHeaderInfo."+name],
		})
	}
	if v.IncludeVendorContact {
		contact := Field{
			Name:        "VendorContactInfo",
			Type:        TypeObject,
			Description: v.Descriptions["InvoiceHeaderInfo.VendorContactInfo"],
		}
		for _, name := range VendorContactFields {
			contact.Properties = append(contact.Properties, Field{
				Name:        name,
				Type:        TypeString,
				Description: v.Descriptions["InvoiceHeaderInfo.VendorContactInfo."+name],
			})
		}
		header.Properties = append(header.Properties, contact)
	}

	item := Field{
		Type:        TypeObject,
		Description: v.Descriptions["InvoiceLineItems"],
		Required:    slices.Clone(v.LineItemRequired),
	}
	for _, name := range LineItemFields {
		item.Properties = append(item.Properties, Field{
			Name:        name,
			Type:        fieldType(name),
			Description: v.Descriptions["InvoiceLineItems."+name],
		})
	}

	return Field{
		Type: TypeObject,
		Properties: []Field{
			header,
			{Name: "InvoiceLineItems", Type: TypeArray, Items: &item},
		},
		Required: []string{"InvoiceHeaderInfo", "InvoiceLineItems"},
	}
}

// Property finds a direct child by name.
func (f Field) Property(name string) (Field, bool) {
	for _, p := range f.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Field{}, false
}

// JSONSchema renders the field as a JSON Schema object.
func (f Field) JSONSchema() map[string]any {
	s := map[string]any{"type": string(f.Type)}
	if f.Description != "" {
		s["description"] = f.Description
	}
	if len(f.Properties) > 0 {
		s["properties"] = f.propertiesJSONSchema()
	}
	if f.Items != nil {
		s["items"] = f.Items.JSONSchema()
	}
	if len(f.Required) > 0 {
		s["required"] = slices.Clone(f.Required)
	}
	return s
}

func (f Field) propertiesJSONSchema() map[string]any {
	props := make(map[string]any, len(f.Properties))
	for _, p := range f.Properties {
		props[p.Name] = p.JSONSchema()
	}
	return props
}
