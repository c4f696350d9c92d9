package scanning

import (
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema", func() {
	When("built for the vision variant", func() {
		var schema Field

		BeforeEach(func() {
			schema = Schema(BuiltinVariants()[VariantVision])
		})

		It("should require both top-level parts", func() {
			Expect(schema.Type).To(Equal(TypeObject))
			Expect(schema.Required).To(Equal([]string{"InvoiceHeaderInfo", "InvoiceLineItems"}))
		})

		It("should include the vendor contact with its description", func() {
			header, ok := schema.Property("InvoiceHeaderInfo")
			Expect(ok).To(BeTrue())
			contact, ok := header.Property("VendorContactInfo")
			Expect(ok).To(BeTrue())
			Expect(contact.Type).To(Equal(TypeObject))
			Expect(contact.Description).To(ContainSubstring("remit to"))
			Expect(contact.Properties).To(HaveLen(len(VendorContactFields)))
		})

		It("should type amounts as numbers", func() {
			header, _ := schema.Property("InvoiceHeaderInfo")
			amount, ok := header.Property("InvoiceAmount")
			Expect(ok).To(BeTrue())
			Expect(amount.Type).To(Equal(TypeNumber))
			date, _ := header.Property("InvoiceDate")
			Expect(date.Type).To(Equal(TypeString))
		})

		It("should describe line items", func() {
			items, ok := schema.Property("InvoiceLineItems")
			Expect(ok).To(BeTrue())
			Expect(items.Type).To(Equal(TypeArray))
			Expect(items.Items).NotTo(BeNil())
			Expect(items.Items.Description).To(ContainSubstring("ALL line items"))
			Expect(items.Items.Required).To(Equal([]string{"ItemDescription", "LineItemTotal"}))
		})

		It("should render as JSON Schema", func() {
			js := schema.JSONSchema()
			Expect(js).To(HaveKeyWithValue("type", "object"))
			props := js["properties"].(map[string]any)
			header := props["InvoiceHeaderInfo"].(map[string]any)
			Expect(header["required"]).To(Equal([]string{"InvoiceAmount", "InvoiceDate", "VendorNumber"}))
			items := props["InvoiceLineItems"].(map[string]any)["items"].(map[string]any)
			total := items["properties"].(map[string]any)["LineItemTotal"].(map[string]any)
			Expect(total).To(Equal(map[string]any{"type": "number"}))
		})

		It("should convert to a Gemini schema", func() {
			s := genaiSchema(schema)
			Expect(s.Type).To(Equal(genai.TypeObject))
			Expect(s.Properties["InvoiceLineItems"].Type).To(Equal(genai.TypeArray))
			Expect(s.Properties["InvoiceLineItems"].Items.Properties["LineItemTotal"].Type).To(Equal(genai.TypeNumber))
			Expect(s.Properties["InvoiceHeaderInfo"].Properties["InvoiceDate"].Description).To(ContainSubstring("YYYY-MM-DD"))
		})
	})

	When("built for the file-search variant", func() {
		It("should leave out the vendor contact", func() {
			header, _ := Schema(BuiltinVariants()[VariantFileSearch]).Property("InvoiceHeaderInfo")
			_, ok := header.Property("VendorContactInfo")
			Expect(ok).To(BeFalse())
			Expect(header.Properties).To(HaveLen(len(HeaderFields)))
		})
	})
})
