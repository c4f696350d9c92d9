package evaluation

import (
	"time"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/compare"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// Status is the outcome of evaluating one document.
type Status string

const (
	StatusIdentical        Status = "identical"
	StatusMismatched       Status = "mismatched"
	StatusExtractionFailed Status = "extraction_failed"
	StatusInvalid          Status = "invalid"
	StatusDeclined         Status = "declined"
)

// DocumentResult is the evaluation of one matched document
type DocumentResult struct {
	RunID      string             `json:"run_id"`
	ID         string             `json:"id"` // OriginalMessageItemId
	Path       string             `json:"path"`
	Pages      int                `json:"pages"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Problems   []string           `json:"problems,omitempty"` // schema problems of an invalid extraction
	Additions  int                `json:"additions"`
	Deletions  int                `json:"deletions"`
	DiffFile   string             `json:"diff_file,omitempty"`
	Expected   *invoice.Extracted `json:"expected,omitempty"`
	Actual     *invoice.Extracted `json:"actual,omitempty"`
	DurationMS int64              `json:"duration_ms"`

	// Diff is only populated for the run that produced it.
	Diff []compare.DiffLine `json:"-"`
}

// Summary counts the outcomes of a run
type Summary struct {
	Documents           int `json:"documents"` // files found under the root
	Matched             int `json:"matched"`
	Missing             int `json:"missing"`
	Skipped             int `json:"skipped"`
	AggregationFailures int `json:"aggregation_failures"`
	Evaluated           int `json:"evaluated"`
	Extracted           int `json:"extracted"`
	Identical           int `json:"identical"`
	Mismatched          int `json:"mismatched"`
	ExtractionFailures  int `json:"extraction_failures"`
	Declined            int `json:"declined"`
	Invalid             int `json:"invalid"`
}

// Run is one evaluation of an extractor against the ground truth
type Run struct {
	ID          string    `json:"id"`
	Root        string    `json:"root"`
	Variant     string    `json:"variant"`
	Extractor   string    `json:"extractor"`
	Summary     Summary   `json:"summary"`
	Missing     []string  `json:"missing,omitempty"`
	Skipped     []string  `json:"skipped,omitempty"`
	Failed      []string  `json:"aggregation_failed,omitempty"`
	DocumentIDs []string  `json:"document_ids"` // in evaluation order
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	// Documents holds the results of a run that was just executed.
	Documents []*DocumentResult `json:"-"`
}

// Inspection describes the corpus without calling a model
type Inspection struct {
	Summary Summary  `json:"summary"`
	Missing []string `json:"missing,omitempty"`
	// PageCounts maps a page count to the number of documents with it.
	PageCounts map[int]int `json:"page_counts"`
	// LongDocuments lists documents with more than LongDocumentPages pages.
	LongDocuments []string `json:"long_documents,omitempty"`
	Unreadable    []string `json:"unreadable,omitempty"`
}

// LongDocumentPages is the page count above which a document is reported.
const LongDocumentPages = 10

func (s *Summary) add(status Status) {
	s.Evaluated++
	switch status {
	case StatusIdentical:
		s.Extracted++
		s.Identical++
	case StatusMismatched:
		s.Extracted++
		s.Mismatched++
	case StatusExtractionFailed:
		s.ExtractionFailures++
	case StatusDeclined:
		s.Declined++
	case StatusInvalid:
		s.Invalid++
	}
}
