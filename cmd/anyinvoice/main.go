package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/evaluation"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/groundtruth"
	"github.com/awendland/transcepta-anyinvoice-v2/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Credentials may live in a .env file next to the data
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("anyinvoice")
	var (
		groundTruth    = fs.StringLong("ground-truth", "", "Ground-truth JSON file (array of denormalized rows)")
		sqliteDSN      = fs.StringLong("sqlite-dsn", "", "SQLite DSN for the ground-truth table (default in-memory)")
		docsRoot       = fs.StringLong("docs", "", "Document root laid out as <group>/<OriginalMessageItemId>/<file>")
		dbPath         = fs.StringLong("db", "anyinvoice.db", "Run database file path")
		reportsPath    = fs.StringLong("reports", "./reports", "Directory for diff reports")
		extractorType  = fs.StringLong("extractor", "gemini", "Extractor: 'gemini', 'anthropic' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "", "Anthropic model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "", "Ollama model name (e.g., llama3.2-vision, qwen2.5vl)")
		variantName    = fs.StringLong("variant", scanning.VariantVision, "Request variant: 'vision', 'file-search' or one from --variants-file")
		variantsFile   = fs.StringLong("variants-file", "", "YAML file overriding or adding request variants")
		concurrency    = fs.IntLong("concurrency", evaluation.DefaultConcurrency, "Documents extracted at once")
		timeout        = fs.DurationLong("timeout", evaluation.DefaultTimeout, "Timeout of each extraction call")
		limit          = fs.IntLong("limit", 0, "Evaluate only the first N matched documents (0 = all)")
		dpi            = fs.IntLong("dpi", scanning.DefaultDPI, "Rasterization DPI of PDF pages")
		showDiff       = fs.BoolLong("diff", "Print the diff of every mismatched document")
		inspect        = fs.BoolLong("inspect", "Only report the join and page counts; do not call a model")
		serve          = fs.BoolLong("serve", "Serve run results over HTTP instead of running once")
		port           = fs.IntLong("port", 8080, "HTTP server port")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("ANYINVOICE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *groundTruth == "" && *sqliteDSN == "" {
		slog.Error("Ground truth is required. Set --ground-truth or --sqlite-dsn")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize ground truth
	slog.Info("Loading ground truth...", "file", *groundTruth)
	table, err := groundtruth.OpenTable(ctx, *sqliteDSN)
	if err != nil {
		slog.Error("Failed to open ground-truth table", "error", err)
		os.Exit(1)
	}
	defer table.Close()

	if *groundTruth != "" {
		if err := table.LoadFile(ctx, *groundTruth); err != nil {
			slog.Error("Failed to load ground truth", "error", err)
			os.Exit(1)
		}
	}
	if err := describeGroundTruth(ctx, table); err != nil {
		slog.Error("Failed to describe ground truth", "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := evaluation.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := evaluation.NewLocalStorage(*reportsPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	variants, err := scanning.LoadVariants(*variantsFile)
	if err != nil {
		slog.Error("Failed to load variants", "error", err)
		os.Exit(1)
	}
	variant, err := scanning.LookupVariant(variants, *variantName)
	if err != nil {
		slog.Error("Invalid variant", "error", err)
		os.Exit(1)
	}

	rasterizer := scanning.NewRasterizer(rasterOptions(*dpi))

	// Inspection never calls a model, so it needs no extractor
	var extractor scanning.Extractor
	if !*inspect {
		extractor, err = newExtractor(*extractorType, variant, extractorOptions{
			geminiKey:      *geminiKey,
			geminiModel:    *geminiModel,
			anthropicKey:   *anthropicKey,
			anthropicModel: *anthropicModel,
			ollamaURL:      *ollamaURL,
			ollamaModel:    *ollamaModel,
		})
		if err != nil {
			slog.Error("Failed to initialize extractor", "error", err)
			os.Exit(1)
		}
		defer extractor.Close()
	}

	// Initialize service
	service := evaluation.NewService(table, extractor, rasterizer, db, store, evaluation.Config{
		Variant:     variant.Name,
		Extractor:   *extractorType,
		Concurrency: *concurrency,
		Timeout:     *timeout,
		Limit:       *limit,
	})

	switch {
	case *serve:
		basicAuth := evaluation.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		}
		server := evaluation.NewServer(service, basicAuth, *docsRoot)

		addr := fmt.Sprintf(":%d", *port)
		go func() {
			if err := server.Start(addr); err != nil {
				slog.Error("Server error", "error", err)
				os.Exit(1)
			}
		}()

		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}

		<-ctx.Done()
		slog.Info("Shutting down...")

	case *inspect:
		if *docsRoot == "" {
			slog.Error("Document root is required. Set --docs")
			os.Exit(1)
		}
		inspection, err := service.Inspect(ctx, *docsRoot)
		if err != nil {
			slog.Error("Inspection failed", "error", err)
			os.Exit(1)
		}
		printInspection(inspection)

	default:
		if *docsRoot == "" {
			slog.Error("Document root is required. Set --docs")
			os.Exit(1)
		}
		run, err := service.Run(ctx, *docsRoot)
		if err != nil {
			slog.Error("Run failed", "error", err)
			os.Exit(1)
		}
		if *showDiff {
			printDiffs(run)
		}
		printSummary(run)
	}
}

// rasterOptions converts the --dpi flag
func rasterOptions(dpi int) scanning.RasterOptions {
	return scanning.RasterOptions{DPI: float64(dpi)}
}

type extractorOptions struct {
	geminiKey      string
	geminiModel    string
	anthropicKey   string
	anthropicModel string
	ollamaURL      string
	ollamaModel    string
}

// newExtractor builds the extractor named by kind
func newExtractor(kind string, variant scanning.Variant, opts extractorOptions) (scanning.Extractor, error) {
	switch kind {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := opts.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini extractor...", "model", opts.geminiModel, "variant", variant.Name)
		return scanning.NewGemini(apiKey, opts.geminiModel, variant)
	case "anthropic":
		apiKey := opts.anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("anthropic API key is required: set --anthropic-key flag or ANTHROPIC_API_KEY environment variable")
		}
		slog.Info("Initializing Anthropic extractor...", "model", opts.anthropicModel, "variant", variant.Name)
		return scanning.NewAnthropic(apiKey, opts.anthropicModel, variant)
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", opts.ollamaURL, "model", opts.ollamaModel, "variant", variant.Name)
		return scanning.NewOllama(opts.ollamaURL, opts.ollamaModel, variant)
	default:
		return nil, fmt.Errorf("invalid extractor type %q: valid are gemini, anthropic or ollama", kind)
	}
}

// describeGroundTruth prints the inferred schema and the row count
func describeGroundTruth(ctx context.Context, table *groundtruth.Table) error {
	columns, err := table.Describe(ctx)
	if err != nil {
		return err
	}
	count, err := table.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Ground truth schema:")
	for _, c := range columns {
		fmt.Printf("  %-30s %s\n", c.Name, c.Type)
	}
	fmt.Printf("Ground truth rows: %d\n\n", count)
	return nil
}

func printSummary(run *evaluation.Run) {
	s := run.Summary
	fmt.Printf("Run %s (%s, variant %s)\n", run.ID, run.Extractor, run.Variant)
	fmt.Printf("  documents:            %d\n", s.Documents)
	fmt.Printf("  matched:              %d\n", s.Matched)
	fmt.Printf("  missing ground truth: %d\n", s.Missing)
	fmt.Printf("  skipped paths:        %d\n", s.Skipped)
	fmt.Printf("  aggregation failures: %d\n", s.AggregationFailures)
	fmt.Printf("  evaluated:            %d\n", s.Evaluated)
	fmt.Printf("  extracted:            %d\n", s.Extracted)
	fmt.Printf("  identical:            %d\n", s.Identical)
	fmt.Printf("  mismatched:           %d\n", s.Mismatched)
	fmt.Printf("  extraction failures:  %d\n", s.ExtractionFailures)
	fmt.Printf("  declined:             %d\n", s.Declined)
	fmt.Printf("  invalid:              %d\n", s.Invalid)
}

func printDiffs(run *evaluation.Run) {
	for _, doc := range run.Documents {
		if doc.Status != evaluation.StatusMismatched {
			continue
		}
		fmt.Printf("== %s (%s) +%d -%d\n", doc.ID, doc.Path, doc.Additions, doc.Deletions)
		for _, line := range doc.Diff {
			fmt.Println(line.Text)
		}
		fmt.Println()
	}
}

func printInspection(inspection *evaluation.Inspection) {
	s := inspection.Summary
	fmt.Printf("documents: %d, matched: %d, missing: %d, skipped: %d\n", s.Documents, s.Matched, s.Missing, s.Skipped)
	for _, id := range inspection.Missing {
		fmt.Printf("  no ground truth: %s\n", id)
	}

	pages := make([]int, 0, len(inspection.PageCounts))
	for n := range inspection.PageCounts {
		pages = append(pages, n)
	}
	sort.Ints(pages)

	fmt.Println("Page counts:")
	for _, n := range pages {
		fmt.Printf("  %3d pages: %d\n", n, inspection.PageCounts[n])
	}
	for _, path := range inspection.LongDocuments {
		fmt.Printf("  over %d pages: %s\n", evaluation.LongDocumentPages, path)
	}
	for _, path := range inspection.Unreadable {
		fmt.Printf("  unreadable: %s\n", path)
	}
}
