package scanning

import (
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	Describe("candidateTokens", func() {
		It("should sum the token count of every candidate", func() {
			resp := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{TokenCount: 120}, nil, {TokenCount: 30}},
			}
			Expect(candidateTokens(resp)).To(Equal(int32(150)))
		})

		It("should report zero without candidates", func() {
			Expect(candidateTokens(&genai.GenerateContentResponse{})).To(BeZero())
		})
	})

	Describe("truncate", func() {
		It("should trim and keep short text as is", func() {
			Expect(truncate("  no invoice here \n", 200)).To(Equal("no invoice here"))
		})

		It("should cut long text with an ellipsis", func() {
			Expect(truncate(strings.Repeat("a", 10), 4)).To(Equal("aaaa..."))
		})

		It("should never split a multibyte character", func() {
			reason := truncate(strings.Repeat("é", 300), 200)
			Expect(utf8.ValidString(reason)).To(BeTrue())
			Expect(reason).To(Equal(strings.Repeat("é", 200) + "..."))
		})

		It("should count runes rather than bytes", func() {
			Expect(truncate("日本語の請求書", 7)).To(Equal("日本語の請求書"))
		})
	})

	Describe("genaiSchema", func() {
		It("should map nested fields to genai types", func() {
			s := genaiSchema(Schema(BuiltinVariants()[VariantVision]))
			Expect(s.Type).To(Equal(genai.TypeObject))
			Expect(s.Properties).To(HaveKey("InvoiceHeaderInfo"))
			Expect(s.Properties["LineItems"].Type).To(Equal(genai.TypeArray))
			Expect(s.Properties["LineItems"].Items).NotTo(BeNil())
		})
	})
})
