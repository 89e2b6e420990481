package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/mcardoso/go-ragcrawl/config"
	"github.com/mcardoso/go-ragcrawl/models"
	"github.com/mcardoso/go-ragcrawl/pipeline"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.MaxDepth = 3
	cfg.MaxPages = 50
	cfg.Delay = 0
	cfg.Timeout = time.Second
	return cfg
}

func newTestCrawler(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport) *Crawler {
	t.Helper()
	c, err := NewCrawler(cfg)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	c.collector.WithTransport(transport)
	return c
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func pageHTML(title string, hrefs ...string) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "<html><head><title>%s</title></head><body><p>%s body text</p>", title, title)
	for _, href := range hrefs {
		fmt.Fprintf(&builder, "<a href=%q>%s</a>", href, href)
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

func registerSite(transport *httpmock.MockTransport) {
	root := pageHTML("Root", "/a", "/b")
	transport.RegisterResponder("GET", "http://example.test/", htmlResponder(root))
	transport.RegisterResponder("GET", "http://example.test", htmlResponder(root))
	transport.RegisterResponder("GET", "http://example.test/a", htmlResponder(pageHTML("A", "/c")))
	transport.RegisterResponder("GET", "http://example.test/b", htmlResponder(pageHTML("B", "/d")))
	transport.RegisterResponder("GET", "http://example.test/c", htmlResponder(pageHTML("C")))
	transport.RegisterResponder("GET", "http://example.test/d", htmlResponder(pageHTML("D")))
}

func pageURLs(pages []*models.Page) []string {
	urls := make([]string, len(pages))
	for i, page := range pages {
		urls[i] = page.URL
	}
	return urls
}

func TestRunInvalidSeed(t *testing.T) {
	c := newTestCrawler(t, testConfig(), httpmock.NewMockTransport())

	result, err := c.Run(context.Background(), "not a url", nil)
	if result != nil {
		t.Fatalf("expected nil result for invalid seed, got %d pages", len(result.Pages))
	}
	var invalid ErrInvalidSeed
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidSeed, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid URL") {
		t.Fatalf("error message %q should mention the invalid URL", err)
	}
}

func TestRunDepthFirstDocumentOrder(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	c := newTestCrawler(t, testConfig(), transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		"http://example.test",
		"http://example.test/a",
		"http://example.test/c",
		"http://example.test/b",
		"http://example.test/d",
	}
	got := pageURLs(result.Pages)
	if len(got) != len(want) {
		t.Fatalf("pages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pages[%d] = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}

	wantDepths := []int{0, 1, 2, 1, 2}
	for i, page := range result.Pages {
		if page.Depth != wantDepths[i] {
			t.Fatalf("page %s depth = %d, want %d", page.URL, page.Depth, wantDepths[i])
		}
	}
}

func TestRunMaxDepth(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	cfg := testConfig()
	cfg.MaxDepth = 1
	c := newTestCrawler(t, cfg, transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, page := range result.Pages {
		if page.Depth > cfg.MaxDepth {
			t.Fatalf("page %s depth %d exceeds max depth %d", page.URL, page.Depth, cfg.MaxDepth)
		}
	}
	if got := len(result.Pages); got != 3 {
		t.Fatalf("pages = %v, want root, a, b", pageURLs(result.Pages))
	}
}

func TestRunMaxPages(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	cfg := testConfig()
	cfg.MaxPages = 2
	c := newTestCrawler(t, cfg, transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := len(result.Pages); got != cfg.MaxPages {
		t.Fatalf("page count = %d, want cutoff at %d", got, cfg.MaxPages)
	}
}

func TestRunFailedBranchIsIsolated(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	transport.RegisterResponder("GET", "http://example.test/a",
		httpmock.NewStringResponder(404, "not here"))
	c := newTestCrawler(t, testConfig(), transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{
		"http://example.test",
		"http://example.test/b",
		"http://example.test/d",
	}
	got := pageURLs(result.Pages)
	if len(got) != len(want) {
		t.Fatalf("pages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pages[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if result.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", result.ErrorCount)
	}
	if result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("errors by type = %v, want one not_found", result.ErrorsByType)
	}
	if len(result.FailedURLs) != 1 || result.FailedURLs[0] != "http://example.test/a" {
		t.Fatalf("failed urls = %v", result.FailedURLs)
	}
}

func TestRunStaysOnSeedDomain(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/",
		htmlResponder(pageHTML("Root", "http://other.test/x", "/a")))
	transport.RegisterResponder("GET", "http://example.test",
		htmlResponder(pageHTML("Root", "http://other.test/x", "/a")))
	transport.RegisterResponder("GET", "http://example.test/a",
		htmlResponder(pageHTML("A")))
	c := newTestCrawler(t, testConfig(), transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, page := range result.Pages {
		if strings.Contains(page.URL, "other.test") {
			t.Fatalf("crawled off-domain page %s", page.URL)
		}
	}
	if len(result.Pages) != 2 {
		t.Fatalf("pages = %v, want root and /a only", pageURLs(result.Pages))
	}
	// the off-site link is still reported on the page record
	if links := result.Pages[0].Links; len(links) != 2 {
		t.Fatalf("root links = %v, want off-site link kept", links)
	}
}

func TestRunResetsSessionState(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	c := newTestCrawler(t, testConfig(), transport)

	first, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	firstURLs := pageURLs(first.Pages)
	secondURLs := pageURLs(second.Pages)
	if len(firstURLs) != len(secondURLs) {
		t.Fatalf("runs differ: %v vs %v", firstURLs, secondURLs)
	}
	for i := range firstURLs {
		if firstURLs[i] != secondURLs[i] {
			t.Fatalf("run order differs at %d: %q vs %q", i, firstURLs[i], secondURLs[i])
		}
	}
	if first.SessionID == second.SessionID {
		t.Fatalf("sessions should have distinct ids")
	}
}

func TestSummary(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	c := newTestCrawler(t, testConfig(), transport)

	result, err := c.Run(context.Background(), "http://example.test", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	summary := c.Summary()
	if summary.TotalPages != len(result.Pages) {
		t.Fatalf("total pages = %d, want %d", summary.TotalPages, len(result.Pages))
	}
	if summary.TotalURLsVisited < summary.TotalPages {
		t.Fatalf("visited %d < pages %d", summary.TotalURLsVisited, summary.TotalPages)
	}
	if summary.MaxDepthReached != 2 {
		t.Fatalf("max depth reached = %d, want 2", summary.MaxDepthReached)
	}
	if summary.UniqueDomains != 1 {
		t.Fatalf("unique domains = %d, want 1", summary.UniqueDomains)
	}
	if summary.TotalContentLength == 0 {
		t.Fatalf("content length should be non-zero")
	}
}

func TestRunStreamsPagesThroughPipeline(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerSite(transport)
	cfg := testConfig()
	c := newTestCrawler(t, cfg, transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	result, err := c.Run(context.Background(), "http://example.test", p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}

	if writer.Count() != len(result.Pages) {
		t.Fatalf("pipeline wrote %d pages, crawler produced %d", writer.Count(), len(result.Pages))
	}
}

type collectingWriter struct {
	mu    sync.Mutex
	pages []*models.Page
}

func (cw *collectingWriter) Write(pages []*models.Page) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.pages = append(cw.pages, pages...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.pages)
}

func TestErrorTypeLabels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "timeout", err: ErrTimeout{Err: context.DeadlineExceeded}, expected: "timeout"},
		{name: "connection", err: ErrConnection{Err: errors.New("refused")}, expected: "connection"},
		{name: "forbidden", err: ErrBadStatus{Status: 403}, expected: "forbidden"},
		{name: "not found", err: ErrBadStatus{Status: 404}, expected: "not_found"},
		{name: "rate limited", err: ErrBadStatus{Status: 429}, expected: "rate_limited"},
		{name: "server error", err: ErrBadStatus{Status: 500}, expected: "bad_status"},
		{name: "unparsable", err: ErrUnparsable{URL: "http://example.test/x"}, expected: "unparsable"},
		{name: "other", err: errors.New("boom"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}
