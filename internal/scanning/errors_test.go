package scanning

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DeclinedError", func() {
	It("should be detected through wrapping", func() {
		err := fmt.Errorf("extracting: %w", &DeclinedError{Provider: "gemini", Reason: "no thanks"})
		Expect(IsDeclined(err)).To(BeTrue())
		Expect(err.Error()).To(Equal("extracting: gemini: model did not call the tool: no thanks"))
	})

	It("should not match other errors", func() {
		Expect(IsDeclined(&ExtractionSchemaError{Problems: []string{"x"}})).To(BeFalse())
		Expect(IsDeclined(nil)).To(BeFalse())
	})
})
