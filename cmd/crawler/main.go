package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcardoso/go-ragcrawl/config"
	"github.com/mcardoso/go-ragcrawl/models"
	"github.com/mcardoso/go-ragcrawl/pipeline"
	"github.com/mcardoso/go-ragcrawl/scraper"
	"github.com/mcardoso/go-ragcrawl/storage"
	"github.com/mcardoso/go-ragcrawl/urlnorm"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("CRAWLER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CRAWLER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	depthDefault := defaultCfg.MaxDepth
	if value, ok, err := config.EnvInt("CRAWLER_DEPTH"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CRAWLER_DEPTH: %v\n", err)
		os.Exit(1)
	} else if ok {
		depthDefault = value
	}
	dbDefault := defaultCfg.DBPath
	if value, ok := config.EnvString("CRAWLER_DB"); ok {
		dbDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("CRAWLER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	seedURL := flag.String("url", "", "Seed URL to crawl")
	maxDepth := flag.Int("depth", depthDefault, "Maximum crawl depth from the seed")
	maxPages := flag.Int("pages", pagesDefault, "Maximum number of pages to scrape")
	delayMs := flag.Int("delay", int(defaultCfg.Delay/time.Millisecond), "Politeness delay between requests (milliseconds)")
	timeoutS := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "Request timeout (seconds)")
	userAgent := flag.String("user-agent", defaultCfg.UserAgent, "User-Agent header for requests")
	workers := flag.Int("workers", defaultCfg.Parallelism, "Pipeline worker count")
	outputFile := flag.String("output", defaultCfg.OutputFile, "Output file path for jsonl/csv/dual formats")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: jsonl, csv, dual, or sqlite")
	dbPath := flag.String("db", dbDefault, "SQLite database path")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	configFile := flag.String("config", "", "Optional YAML configuration file")
	searchQuery := flag.String("search", "", "Search stored content instead of crawling")
	searchLimit := flag.Int("n", 5, "Maximum search results")
	listDocs := flag.Bool("list", false, "List stored documents instead of crawling")
	showStats := flag.Bool("stats", false, "Print store statistics instead of crawling")
	website := flag.String("website", "", "Restrict search/list to one website URL")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	// precedence: defaults < environment < config file < explicit flags
	cfg := config.DefaultConfig()
	cfg.MaxPages = pagesDefault
	cfg.MaxDepth = depthDefault
	cfg.DBPath = dbDefault
	cfg.MetricsAddr = metricsDefault
	if *configFile != "" {
		if err := cfg.ApplyFile(*configFile); err != nil {
			slog.Error("loading config file", slog.Any("error", err))
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.BaseURL = *seedURL
		case "depth":
			cfg.MaxDepth = *maxDepth
		case "pages":
			cfg.MaxPages = *maxPages
		case "delay":
			cfg.Delay = time.Duration(*delayMs) * time.Millisecond
		case "timeout":
			cfg.Timeout = time.Duration(*timeoutS) * time.Second
		case "user-agent":
			cfg.UserAgent = *userAgent
		case "workers":
			cfg.Parallelism = *workers
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "db":
			cfg.DBPath = *dbPath
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	if *searchQuery != "" || *listDocs || *showStats {
		runStoreQuery(cfg.DBPath, *searchQuery, *searchLimit, *website, *listDocs, *showStats)
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	seed, err := urlnorm.Normalize(cfg.BaseURL)
	if err != nil {
		slog.Error("invalid URL", slog.String("url", cfg.BaseURL))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	c, err := scraper.NewCrawler(cfg)
	if err != nil {
		slog.Error("initialising crawler", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(ctx, cfg, seed)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && c.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(c.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := c.Run(ctx, seed, p)
	if err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if len(result.Pages) == 0 {
		slog.Warn("no pages scraped", slog.String("seed", seed))
	} else if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, c.Summary(), p.GetMetrics())
}

func createWriter(ctx context.Context, cfg *config.Config, websiteURL string) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "jsonl":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(cfg.OutputFile, jsonFilename)
	case "sqlite":
		return storage.OpenWriter(ctx, cfg.DBPath, websiteURL)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func runStoreQuery(dbPath, query string, limit int, website string, listDocs, showStats bool) {
	store, err := storage.Open(dbPath)
	if err != nil {
		slog.Error("opening store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	switch {
	case showStats:
		stats, err := store.Stats(ctx)
		if err != nil {
			slog.Error("store stats", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("Documents: %d\nWebsites:  %d\nPath:      %s\n", stats.TotalDocuments, stats.UniqueWebsites, stats.Path)
	case listDocs:
		docs, err := store.Documents(ctx, website)
		if err != nil {
			slog.Error("listing documents", slog.Any("error", err))
			os.Exit(1)
		}
		for _, doc := range docs {
			fmt.Printf("%s\t%s\t%s\n", doc.Timestamp, doc.URL, doc.Title)
		}
	default:
		results, err := store.Search(ctx, query, limit, website)
		if err != nil {
			slog.Error("search", slog.Any("error", err))
			os.Exit(1)
		}
		for i, r := range results {
			snippet := r.Content
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			fmt.Printf("%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, snippet)
		}
		if len(results) == 0 {
			fmt.Println("no matches")
		}
	}
}

func printSummary(result *models.CrawlResult, summary models.Summary, pipelineMetrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	fmt.Printf("  Session:          %s\n", result.SessionID)
	fmt.Printf("  Pages scraped:    %d\n", summary.TotalPages)
	fmt.Printf("  URLs visited:     %d\n", summary.TotalURLsVisited)
	fmt.Printf("  Max depth:        %d\n", summary.MaxDepthReached)
	fmt.Printf("  Content length:   %d\n", summary.TotalContentLength)
	fmt.Printf("  Unique domains:   %d\n", summary.UniqueDomains)
	fmt.Printf("  Requests:         %d\n", result.RequestCount)
	fmt.Printf("  Errors:           %d\n", result.ErrorCount)
	fmt.Printf("  Failed URLs:      %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:      %v\n", result.ErrorsByType)
	}
	if valErrors, ok := pipelineMetrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:       %v\n", valErrors)
	}
	fmt.Printf("  Duration:         %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
