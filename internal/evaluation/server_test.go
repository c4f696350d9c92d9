package evaluation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		source      *mockSource
		extractor   *mockExtractor
		root        string
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		source = &mockSource{rows: map[string][]invoice.DenormalizedRecord{}}
		extractor = newMockExtractor()
		root = ""
		auth = BasicAuth{}

		db.runs["run-1"] = &Run{ID: "run-1", DocumentIDs: []string{"A", "B"}}
		db.documents["run-1/A"] = &DocumentResult{RunID: "run-1", ID: "A", Status: StatusIdentical}
		db.documents["run-1/B"] = &DocumentResult{RunID: "run-1", ID: "B", Status: StatusMismatched, DiffFile: "run-1/B.diff"}
		storage.files["run-1/B.diff"] = []byte("--- ground_truth\n+++ extracted\n")
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(source, extractor, newMockRasterizer(), db, storage, Config{},
			&mockIDGenerator{id: "run-2"}, &mockTimeSource{now: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, root, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, nil)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	Describe("handleIndex", func() {
		It("should return the HTML run report", func() {
			resp := do("GET", "/")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("/api/runs"))
		})

		It("should not serve unknown paths", func() {
			resp := do("GET", "/nope")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleListRuns", func() {
		It("should return all runs as JSON", func() {
			resp := do("GET", "/api/runs")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var runs []*Run
			Expect(json.NewDecoder(resp.Body).Decode(&runs)).To(Succeed())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].ID).To(Equal("run-1"))
		})

		When("no runs exist", func() {
			BeforeEach(func() {
				db.runs = map[string]*Run{}
			})

			It("should return an empty array", func() {
				resp := do("GET", "/api/runs")
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("[]\n"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("boom")
			})

			It("should return status Internal Server Error", func() {
				resp := do("GET", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleGetRun", func() {
		It("should return the run", func() {
			resp := do("GET", "/api/runs/run-1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var run Run
			Expect(json.NewDecoder(resp.Body).Decode(&run)).To(Succeed())
			Expect(run.DocumentIDs).To(Equal([]string{"A", "B"}))
		})

		It("should return status Not Found for an unknown run", func() {
			resp := do("GET", "/api/runs/nope")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.getErr = errors.New("boom")
			})

			It("should return status Internal Server Error", func() {
				resp := do("GET", "/api/runs/run-1")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("handleListDocuments", func() {
		It("should return documents in evaluation order", func() {
			resp := do("GET", "/api/runs/run-1/documents")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var docs []*DocumentResult
			Expect(json.NewDecoder(resp.Body).Decode(&docs)).To(Succeed())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("A"))
			Expect(docs[1].Status).To(Equal(StatusMismatched))
		})
	})

	Describe("handleGetDocument", func() {
		It("should return the document", func() {
			resp := do("GET", "/api/runs/run-1/documents/B")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var doc DocumentResult
			Expect(json.NewDecoder(resp.Body).Decode(&doc)).To(Succeed())
			Expect(doc.DiffFile).To(Equal("run-1/B.diff"))
		})

		It("should return status Not Found for an unknown document", func() {
			resp := do("GET", "/api/runs/run-1/documents/Z")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleGetDiff", func() {
		It("should return the diff as plain text", func() {
			resp := do("GET", "/api/runs/run-1/documents/B/diff")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(HavePrefix("--- ground_truth"))
		})

		It("should return status Not Found for an identical document", func() {
			resp := do("GET", "/api/runs/run-1/documents/A/diff")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleDeleteRun", func() {
		It("should delete the run and its diffs", func() {
			resp := do("DELETE", "/api/runs/run-1")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.runs).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("should return status Not Found for an unknown run", func() {
			resp := do("DELETE", "/api/runs/nope")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleStartRun", func() {
		When("no document root is configured", func() {
			It("should return status Bad Request", func() {
				resp := do("POST", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("a document root is configured", func() {
			BeforeEach(func() {
				root = GinkgoT().TempDir()
				path := touch(root, "msg/A/invoice.pdf")
				source.rows["A"] = []invoice.DenormalizedRecord{record("A", "widget", "10")}
				extractor.results[path] = expectedFor(source.rows["A"])
			})

			It("should run an evaluation and return it", func() {
				resp := do("POST", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var run Run
				Expect(json.NewDecoder(resp.Body).Decode(&run)).To(Succeed())
				Expect(run.ID).To(Equal("run-2"))
				Expect(run.Summary.Identical).To(Equal(1))
				Expect(db.runs).To(HaveKey("run-2"))
			})
		})

		When("the ground truth cannot be read", func() {
			BeforeEach(func() {
				root = GinkgoT().TempDir()
				touch(root, "msg/A/invoice.pdf")
				source.err = errors.New("schema mismatch")
			})

			It("should return the error as JSON", func() {
				resp := do("POST", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var body map[string]string
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring("schema mismatch"))
			})
		})
	})

	Describe("handleInspect", func() {
		BeforeEach(func() {
			root = GinkgoT().TempDir()
			touch(root, "msg/A/invoice.pdf")
			touch(root, "msg/B/invoice.pdf")
			source.rows["A"] = []invoice.DenormalizedRecord{record("A", "widget", "10")}
		})

		It("should describe the document root", func() {
			resp := do("GET", "/api/inspection")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var inspection Inspection
			Expect(json.NewDecoder(resp.Body).Decode(&inspection)).To(Succeed())
			Expect(inspection.Summary.Matched).To(Equal(1))
			Expect(inspection.Missing).To(Equal([]string{"B"}))
			Expect(inspection.PageCounts).To(Equal(map[int]int{1: 2}))
		})
	})

	Describe("CORS", func() {
		When("an OPTIONS request is made", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "admin", Password: "secret"}
			})

			It("should return status No Content with CORS headers", func() {
				resp := do("OPTIONS", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
				Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
			})
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		When("no credentials are sent", func() {
			It("should return status Unauthorized", func() {
				resp := do("GET", "/api/runs")
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})
		})

		When("the wrong credentials are sent", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/runs", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "wrong")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("the right credentials are sent", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/runs", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})
})
