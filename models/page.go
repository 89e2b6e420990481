// Package models defines data structures for the crawler.
package models

import "time"

// Heading is one document heading, levels 1 through 6.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Metadata holds the meta-tag pairs and the ordered heading outline of a
// page. A struct instead of map[string]any keeps the value shapes
// explicit; flattening to scalar-only form happens at the storage
// boundary.
type Metadata struct {
	Tags     map[string]string `json:"tags,omitempty"`
	Headings []Heading         `json:"headings,omitempty"`
}

// IsEmpty reports whether no meta tags and no headings were captured.
func (m Metadata) IsEmpty() bool {
	return len(m.Tags) == 0 && len(m.Headings) == 0
}

// Page represents one successfully extracted page.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	Links     []string  `json:"links"`
	Depth     int       `json:"depth"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CrawlResult holds the overall result of a crawl session.
type CrawlResult struct {
	SessionID    string
	Pages        []*Page
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// Summary is derived from a finished (or in-progress) session on demand.
type Summary struct {
	TotalPages         int `json:"total_pages"`
	TotalURLsVisited   int `json:"total_urls_visited"`
	MaxDepthReached    int `json:"max_depth_reached"`
	TotalContentLength int `json:"total_content_length"`
	UniqueDomains      int `json:"unique_domains"`
}
