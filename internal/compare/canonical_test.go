package compare

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Canonicalize", func() {
	It("should render decimals as plain numbers", func() {
		text, err := Canonicalize(sample())
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(MatchRegexp(`"InvoiceAmount":\s*30,`))
		Expect(text).To(MatchRegexp(`"Quantity":\s*1,`))
	})

	It("should sort keys at every level", func() {
		text, err := Canonicalize(sample())
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Index(text, `"InvoiceAmount"`)).To(BeNumerically("<", strings.Index(text, `"InvoiceDate"`)))
		Expect(strings.Index(text, `"InvoiceHeaderInfo"`)).To(BeNumerically("<", strings.Index(text, `"InvoiceLineItems"`)))
		Expect(strings.Index(text, `"ContactAddress1"`)).To(BeNumerically("<", strings.Index(text, `"ContactName"`)))
		first := strings.Index(text, `"InvoiceLineItems"`)
		Expect(strings.Index(text[first:], `"ItemDescription"`)).To(BeNumerically("<", strings.Index(text[first:], `"LineItemNetTotal"`)))
	})

	It("should indent with four spaces", func() {
		text, err := Canonicalize(sample())
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(HavePrefix("{\n    \""))
	})

	It("should be valid JSON", func() {
		text, err := Canonicalize(sample())
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Valid([]byte(text))).To(BeTrue())
	})

	It("should render numerically equal decimals identically", func() {
		a := sample()
		b := sample()
		b.InvoiceHeaderInfo.InvoiceAmount = dec("30")
		b.InvoiceHeaderInfo.SalesTaxAmount = dec("0.000")

		ta, err := Canonicalize(a)
		Expect(err).NotTo(HaveOccurred())
		tb, err := Canonicalize(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(ta).To(Equal(tb))
	})

	It("should render no line items as an empty array", func() {
		x := sample()
		x.InvoiceLineItems = nil
		text, err := Canonicalize(x)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(MatchRegexp(`"InvoiceLineItems":\s*\[\]`))
	})
})
