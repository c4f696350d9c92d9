package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/compare"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/groundtruth"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/scanning"
)

// Labels of the two sides of a stored diff.
const (
	ExpectedLabel = "ground_truth"
	ActualLabel   = "extracted"
)

// Defaults for Config.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 2 * time.Minute
)

// IDGenerator generates unique IDs for runs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Rasterizer renders documents into pages for a model
type Rasterizer interface {
	Rasterize(path string) ([]scanning.Page, error)
	PageCount(path string) (int, error)
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config controls a run.
type Config struct {
	// Variant and Extractor name what was evaluated; they are recorded on the run.
	Variant   string
	Extractor string
	// Concurrency bounds how many documents are extracted at once.
	Concurrency int
	// Timeout bounds each extraction call.
	Timeout time.Duration
	// Limit evaluates only the first Limit matched documents; 0 means all.
	Limit int
	// JoinConcurrency bounds ground-truth lookups.
	JoinConcurrency int
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.JoinConcurrency < 1 {
		c.JoinConcurrency = c.Concurrency
	}
	return c
}

// Service runs evaluations and serves their results
type Service struct {
	source      groundtruth.Source
	extractor   scanning.Extractor
	rasterizer  Rasterizer
	db          DB
	storage     Storage
	config      Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(source groundtruth.Source, extractor scanning.Extractor, rasterizer Rasterizer, db DB, storage Storage, config Config) *Service {
	return NewServiceWithDeps(source, extractor, rasterizer, db, storage, config, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(source groundtruth.Source, extractor scanning.Extractor, rasterizer Rasterizer, db DB, storage Storage, config Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		source:      source,
		extractor:   extractor,
		rasterizer:  rasterizer,
		db:          db,
		storage:     storage,
		config:      config.withDefaults(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// join lists the documents under root and matches them to ground truth.
func (s *Service) join(ctx context.Context, root string) ([]string, *groundtruth.JoinResult, error) {
	paths, err := groundtruth.ListDocuments(root)
	if err != nil {
		return nil, nil, err
	}
	result, err := groundtruth.NewJoiner(s.source, s.config.JoinConcurrency).Join(ctx, root, paths)
	if err != nil {
		return nil, nil, fmt.Errorf("joining ground truth: %w", err)
	}
	return paths, result, nil
}

func joinSummary(paths []string, join *groundtruth.JoinResult) Summary {
	return Summary{
		Documents:           len(paths),
		Matched:             join.Invoices.Len(),
		Missing:             len(join.Missing),
		Skipped:             len(join.Skipped),
		AggregationFailures: len(join.Failures),
	}
}

// Run evaluates the extractor against every matched document under root.
// Per-document failures are recorded on the run; only systemic errors, such
// as a ground-truth schema mismatch, are returned.
func (s *Service) Run(ctx context.Context, root string) (*Run, error) {
	run := &Run{
		ID:        s.idGenerator.Generate(),
		Root:      root,
		Variant:   s.config.Variant,
		Extractor: s.config.Extractor,
		StartedAt: s.timeSource.Now(),
	}

	paths, join, err := s.join(ctx, root)
	if err != nil {
		return nil, err
	}
	run.Summary = joinSummary(paths, join)
	run.Missing = join.Missing
	for _, skipped := range join.Skipped {
		run.Skipped = append(run.Skipped, skipped.Path)
	}
	for _, failure := range join.Failures {
		run.Failed = append(run.Failed, failure.ID)
	}

	ids := join.Invoices.Keys()
	if s.config.Limit > 0 && len(ids) > s.config.Limit {
		ids = ids[:s.config.Limit]
	}
	run.DocumentIDs = ids

	slog.Info("starting run", "run", run.ID, "documents", len(ids), "concurrency", s.config.Concurrency)

	results := make([]*DocumentResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, id := range ids {
		inv, _ := join.Invoices.Get(id)
		g.Go(func() error {
			results[i] = s.evaluate(ctx, run.ID, id, inv)
			return nil
		})
	}
	// evaluate records failures on its result, so no worker returns an error.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s interrupted: %w", run.ID, err)
	}

	for _, result := range results {
		run.Summary.add(result.Status)
		if err := s.db.SaveDocument(result); err != nil {
			return nil, fmt.Errorf("saving document %s: %w", result.ID, err)
		}
	}
	run.Documents = results
	run.FinishedAt = s.timeSource.Now()

	if err := s.db.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	slog.Info("finished run",
		"run", run.ID,
		"identical", run.Summary.Identical,
		"mismatched", run.Summary.Mismatched,
		"failed", run.Summary.ExtractionFailures,
		"declined", run.Summary.Declined,
		"invalid", run.Summary.Invalid,
	)
	return run, nil
}

// evaluate extracts one document and compares it to its ground truth.
func (s *Service) evaluate(ctx context.Context, runID, id string, inv *invoice.Invoice) *DocumentResult {
	start := s.timeSource.Now()
	expected := inv.ToExtracted()
	result := &DocumentResult{
		RunID:    runID,
		ID:       id,
		Path:     inv.FilePath,
		Expected: &expected,
	}
	defer func() {
		result.DurationMS = s.timeSource.Now().Sub(start).Milliseconds()
	}()

	pages, err := s.rasterizer.Rasterize(inv.FilePath)
	if err != nil {
		slog.Error("failed to rasterize document", "id", id, "path", inv.FilePath, "error", err)
		result.Status = StatusExtractionFailed
		result.Error = err.Error()
		return result
	}
	result.Pages = len(pages)

	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	actual, err := s.extractor.Extract(callCtx, scanning.Request{Path: inv.FilePath, Pages: pages})
	if err != nil {
		var schemaErr *scanning.ExtractionSchemaError
		switch {
		case errors.As(err, &schemaErr):
			result.Status = StatusInvalid
			result.Problems = schemaErr.Problems
		case scanning.IsDeclined(err):
			result.Status = StatusDeclined
		default:
			result.Status = StatusExtractionFailed
		}
		result.Error = err.Error()
		slog.Warn("extraction failed", "id", id, "status", result.Status, "error", err)
		return result
	}
	result.Actual = actual

	text, err := compare.DiffText(expected, *actual, ExpectedLabel, ActualLabel)
	if err != nil {
		result.Status = StatusExtractionFailed
		result.Error = err.Error()
		return result
	}
	result.Diff = compare.ParseUnified(text)
	result.Additions, result.Deletions = compare.Stats(result.Diff)

	if compare.Identical(result.Diff) {
		result.Status = StatusIdentical
		return result
	}
	result.Status = StatusMismatched

	saved, err := s.storage.Save(diffPath(runID, id), []byte(text))
	if err != nil {
		slog.Warn("failed to save diff", "id", id, "error", err)
	} else {
		result.DiffFile = saved
	}
	return result
}

func diffPath(runID, docID string) string {
	return runID + "/" + docID + ".diff"
}

// Inspect reports how the documents under root match the ground truth, and
// how many pages they have, without calling a model.
func (s *Service) Inspect(ctx context.Context, root string) (*Inspection, error) {
	paths, join, err := s.join(ctx, root)
	if err != nil {
		return nil, err
	}

	inspection := &Inspection{
		Summary:    joinSummary(paths, join),
		Missing:    join.Missing,
		PageCounts: map[int]int{},
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.rasterizer.PageCount(path)
		if err != nil {
			slog.Warn("failed to count pages", "path", path, "error", err)
			inspection.Unreadable = append(inspection.Unreadable, path)
			continue
		}
		inspection.PageCounts[n]++
		if n > LongDocumentPages {
			inspection.LongDocuments = append(inspection.LongDocuments, path)
		}
	}
	return inspection, nil
}

// GetRun retrieves a run by ID
func (s *Service) GetRun(id string) (*Run, error) {
	run, err := s.db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first
func (s *Service) ListRuns() ([]*Run, error) {
	runs, err := s.db.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// ListDocuments returns the document results of a run in evaluation order
func (s *Service) ListDocuments(runID string) ([]*DocumentResult, error) {
	run, err := s.db.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	docs, err := s.db.ListDocuments(runID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	order := make(map[string]int, len(run.DocumentIDs))
	for i, id := range run.DocumentIDs {
		order[id] = i
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return order[docs[i].ID] < order[docs[j].ID]
	})
	return docs, nil
}

// GetDocument retrieves one document result
func (s *Service) GetDocument(runID, docID string) (*DocumentResult, error) {
	doc, err := s.db.GetDocument(runID, docID)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// GetDiff returns the stored unified diff of a mismatched document
func (s *Service) GetDiff(runID, docID string) ([]byte, error) {
	doc, err := s.db.GetDocument(runID, docID)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if doc.DiffFile == "" {
		return nil, fmt.Errorf("diff of document %s: %w", docID, ErrNotFound)
	}
	data, err := s.storage.Get(doc.DiffFile)
	if err != nil {
		return nil, fmt.Errorf("getting diff file: %w", err)
	}
	return data, nil
}

// DeleteRun removes a run, its documents and their diff files
func (s *Service) DeleteRun(id string) error {
	docs, err := s.db.ListDocuments(id)
	if err != nil {
		return fmt.Errorf("listing documents for deletion: %w", err)
	}
	if _, err := s.db.GetRun(id); err != nil {
		return fmt.Errorf("getting run for deletion: %w", err)
	}

	for _, doc := range docs {
		if doc.DiffFile == "" {
			continue
		}
		// Log error but continue with database deletion
		if err := s.storage.Delete(doc.DiffFile); err != nil {
			slog.Warn("failed to delete diff file", "path", doc.DiffFile, "error", err)
		}
	}

	if err := s.db.DeleteRun(id); err != nil {
		return fmt.Errorf("deleting run from database: %w", err)
	}
	return nil
}
