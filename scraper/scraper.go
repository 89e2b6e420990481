// Package scraper implements a bounded, domain-scoped web crawler. A
// crawl session walks same-domain links depth-first from a seed URL,
// extracting a page record per fetched document.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/mcardoso/go-ragcrawl/config"
	"github.com/mcardoso/go-ragcrawl/extract"
	"github.com/mcardoso/go-ragcrawl/models"
	"github.com/mcardoso/go-ragcrawl/pipeline"
	"github.com/mcardoso/go-ragcrawl/urlnorm"
)

// Crawler wraps the colly collector and the traversal state of one
// crawl session. Sessions run sequentially: each Run resets the state,
// and no fetches overlap, so the visited set needs no locking.
type Crawler struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	visited      map[string]struct{}
	pages        []*models.Page
	requestCount int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int

	// capture for the single in-flight request
	current *capture
}

type capture struct {
	page   *models.Page
	status int
	err    error
}

type frontierItem struct {
	url   string
	depth int
}

// NewCrawler builds a crawler instance configured from cfg.
func NewCrawler(cfg *config.Config) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	// Revisit bookkeeping and scoping belong to the session's own
	// visited set, not colly's; status handling stays in fetch.
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	c := &Crawler{
		cfg:     cfg,
		Metrics: NewMetrics(),
	}
	c.collector = collector
	c.registerHandlers()
	return c, nil
}

// Run crawls the site rooted at seed and streams each extracted page
// through p. Per-page fetch and parse failures are logged and skipped;
// only an unusable seed fails the whole call.
func (c *Crawler) Run(ctx context.Context, seed string, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	normalized, err := urlnorm.Normalize(seed)
	if err != nil {
		return nil, ErrInvalidSeed{URL: seed, Err: err}
	}

	c.resetSession()
	sessionID := uuid.NewString()
	start := time.Now()

	slog.Info("starting crawl",
		slog.String("session", sessionID),
		slog.String("seed", normalized),
		slog.Int("max_depth", c.cfg.MaxDepth),
		slog.Int("max_pages", c.cfg.MaxPages),
	)

	// Depth-first in document order: links are pushed reversed so the
	// first link on a page is expanded before its siblings, matching
	// the recursion a stack replaces.
	stack := []frontierItem{{url: normalized, depth: 0}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			slog.Info("crawl cancelled", slog.String("session", sessionID))
			break
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.depth > c.cfg.MaxDepth {
			continue
		}
		if len(c.pages) >= c.cfg.MaxPages {
			break
		}

		pageURL := urlnorm.Clean(item.url)
		if _, ok := c.visited[pageURL]; ok {
			continue
		}
		c.visited[pageURL] = struct{}{}

		if item.depth > 0 && c.cfg.Delay > 0 {
			sleepContext(ctx, c.cfg.Delay)
			if ctx.Err() != nil {
				continue
			}
		}

		slog.Debug("scraping", slog.Int("depth", item.depth), slog.String("url", pageURL))

		page, err := c.fetch(pageURL)
		if err != nil {
			c.recordFailure(pageURL, err)
			continue
		}

		page.Depth = item.depth
		page.FetchedAt = time.Now()
		c.pages = append(c.pages, page)
		c.Metrics.IncPages()
		c.Metrics.AddLinks(len(page.Links))

		if p != nil {
			if err := p.Process(page); err != nil && err != pipeline.ErrPipelineClosed {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
		}

		if len(c.pages) >= c.cfg.MaxPages {
			break
		}

		for i := len(page.Links) - 1; i >= 0; i-- {
			link := page.Links[i]
			if urlnorm.SameDomain(pageURL, link) {
				stack = append(stack, frontierItem{url: link, depth: item.depth + 1})
			}
		}
	}

	result := &models.CrawlResult{
		SessionID:    sessionID,
		Pages:        c.snapshotPages(),
		StartTime:    start,
		EndTime:      time.Now(),
		RequestCount: c.requestCount,
		ErrorCount:   c.errorCount,
		FailedURLs:   append([]string(nil), c.failedURLs...),
		ErrorsByType: c.snapshotErrors(),
	}

	slog.Info("crawl complete",
		slog.String("session", sessionID),
		slog.Int("pages", len(result.Pages)),
		slog.Int("visited", len(c.visited)),
		slog.Int("errors", c.errorCount),
	)
	return result, nil
}

// ScrapeWebsite is a convenience wrapper without cancellation.
func (c *Crawler) ScrapeWebsite(seed string, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	return c.Run(context.Background(), seed, p)
}

// Summary derives session statistics from the current visited set and
// results. It is computed at call time, not stored.
func (c *Crawler) Summary() models.Summary {
	maxDepth := 0
	contentLength := 0
	domains := make(map[string]struct{})

	for _, page := range c.pages {
		if page.Depth > maxDepth {
			maxDepth = page.Depth
		}
		contentLength += len(page.Content)
		if domain, err := urlnorm.Domain(page.URL); err == nil {
			domains[domain] = struct{}{}
		}
	}

	return models.Summary{
		TotalPages:         len(c.pages),
		TotalURLsVisited:   len(c.visited),
		MaxDepthReached:    maxDepth,
		TotalContentLength: contentLength,
		UniqueDomains:      len(domains),
	}
}

func (c *Crawler) resetSession() {
	c.visited = make(map[string]struct{})
	c.pages = nil
	c.requestCount = 0
	c.errorCount = 0
	c.failedURLs = nil
	c.errorsByType = make(map[string]int)
}

// fetch issues one GET through the collector and waits for the capture
// the handlers fill in. The collector runs synchronously, so the single
// current capture is safe.
func (c *Crawler) fetch(pageURL string) (*models.Page, error) {
	snap := &capture{}
	c.current = snap
	err := c.collector.Visit(pageURL)
	c.current = nil

	if snap.err != nil {
		return nil, snap.err
	}
	if err != nil {
		return nil, classifyError(err, 0)
	}
	if snap.status != 0 && (snap.status < 200 || snap.status > 299) {
		return nil, ErrBadStatus{Status: snap.status}
	}
	if snap.page == nil {
		return nil, ErrUnparsable{URL: pageURL}
	}

	// Keep the visited key as the record's identity even when the
	// server redirected; links were already resolved against the
	// final location.
	snap.page.URL = pageURL
	return snap.page, nil
}

func (c *Crawler) recordFailure(pageURL string, err error) {
	label := errorTypeLabel(err)
	c.errorCount++
	c.errorsByType[label]++
	c.failedURLs = append(c.failedURLs, pageURL)
	c.Metrics.IncError(label)
	slog.Error("page failed",
		slog.String("url", pageURL),
		slog.String("category", label),
		slog.Any("error", err),
	)
}

func (c *Crawler) registerHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		c.requestCount++
		c.Metrics.IncRequest("started")
	})

	c.collector.OnResponse(func(r *colly.Response) {
		if c.current != nil {
			c.current.status = r.StatusCode
		}
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			c.Metrics.ObserveDuration(time.Since(start))
		}
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		if c.current != nil {
			c.current.err = classifyError(err, statusCode)
		}
	})

	c.collector.OnHTML("html", func(e *colly.HTMLElement) {
		if c.current == nil {
			return
		}
		c.current.page = extract.Page(e.DOM, e.Request.URL.String())
	})
}

func (c *Crawler) snapshotPages() []*models.Page {
	out := make([]*models.Page, len(c.pages))
	copy(out, c.pages)
	return out
}

func (c *Crawler) snapshotErrors() map[string]int {
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return ErrBadStatus{Status: statusCode, Err: err}
	}

	return err
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
