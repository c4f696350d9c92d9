package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

func anthropicMessage(content ...map[string]any) map[string]any {
	return map[string]any{
		"id":            "msg_01",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-5",
		"content":       content,
		"stop_reason":   "tool_use",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 1200, "output_tokens": 300},
	}
}

var _ = Describe("Anthropic", func() {
	var (
		server    *ghttp.Server
		extractor *Anthropic
		extracted *invoice.Extracted
		err       error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		DeferCleanup(server.Close)

		extractor, err = NewAnthropic("test-key", "", BuiltinVariants()[VariantVision],
			option.WithBaseURL(server.URL()+"/"),
			option.WithMaxRetries(0),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	JustBeforeEach(func() {
		extracted, err = extractor.Extract(context.Background(), Request{
			Path:  "docs/m/ABC123/invoice.pdf",
			Pages: []Page{{Number: 1, PNG: []byte("page-one")}},
		})
	})

	When("the model calls the tool", func() {
		var sent map[string]any

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/messages"),
				ghttp.VerifyHeaderKV("X-Api-Key", "test-key"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &sent)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, anthropicMessage(map[string]any{
					"type":  "tool_use",
					"id":    "toolu_01",
					"name":  "extract_invoice_info",
					"input": json.RawMessage(visionResponse),
				})),
			))
		})

		It("should return the validated invoice", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(extracted.InvoiceHeaderInfo.VendorNumber).To(Equal("00042"))
			Expect(extracted.InvoiceLineItems).To(HaveLen(2))
		})

		It("should force the extraction tool", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(sent["tool_choice"]).To(Equal(map[string]any{"type": "tool", "name": "extract_invoice_info"}))
			tools := sent["tools"].([]any)
			Expect(tools).To(HaveLen(1))
			Expect(tools[0].(map[string]any)["name"]).To(Equal("extract_invoice_info"))
		})

		It("should send the prompt and the page image", func() {
			Expect(err).NotTo(HaveOccurred())
			messages := sent["messages"].([]any)
			content := messages[0].(map[string]any)["content"].([]any)
			Expect(content).To(HaveLen(2))
			Expect(content[0].(map[string]any)["type"]).To(Equal("text"))
			Expect(content[1].(map[string]any)["type"]).To(Equal("image"))
		})
	})

	When("the model answers in text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, anthropicMessage(map[string]any{
				"type": "text",
				"text": "This does not look like an invoice.",
			})))
		})

		It("returns a DeclinedError", func() {
			Expect(IsDeclined(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("does not look like an invoice"))
		})
	})

	When("the API rejects the request", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusBadRequest, map[string]any{
				"type":  "error",
				"error": map[string]any{"type": "invalid_request_error", "message": "bad image"},
			}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("calling anthropic API")))
			Expect(IsDeclined(err)).To(BeFalse())
		})
	})
})

var _ = Describe("NewAnthropic", func() {
	It("returns the error without an api key", func() {
		_, err := NewAnthropic("", "", BuiltinVariants()[VariantVision])
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})
