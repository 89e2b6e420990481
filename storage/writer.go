package storage

import (
	"context"
	"fmt"

	"github.com/mcardoso/go-ragcrawl/models"
)

// Writer adapts a Store to the pipeline's output-writer interface. All
// pages written through it are grouped under one website URL.
type Writer struct {
	ctx        context.Context
	store      *Store
	websiteURL string
	ownsStore  bool
}

// NewWriter wraps an existing store; Close leaves the store open.
func NewWriter(ctx context.Context, store *Store, websiteURL string) *Writer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Writer{ctx: ctx, store: store, websiteURL: websiteURL}
}

// OpenWriter opens a store at path and owns its lifetime.
func OpenWriter(ctx context.Context, path, websiteURL string) (*Writer, error) {
	store, err := Open(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(ctx, store, websiteURL)
	w.ownsStore = true
	return w, nil
}

// Write stores a batch of pages.
func (w *Writer) Write(pages []*models.Page) error {
	if len(pages) == 0 {
		return nil
	}

	urls := make([]string, len(pages))
	titles := make([]string, len(pages))
	contents := make([]string, len(pages))
	metadatas := make([]models.Metadata, len(pages))
	for i, page := range pages {
		urls[i] = page.URL
		titles[i] = page.Title
		contents[i] = page.Content
		metadatas[i] = page.Metadata
	}

	return w.store.AddDocuments(w.ctx, urls, titles, contents, metadatas, w.websiteURL)
}

// Close releases the store if this writer opened it.
func (w *Writer) Close() error {
	if !w.ownsStore {
		return nil
	}
	return w.store.Close()
}

// Validate confirms at least one document landed for the website.
func (w *Writer) Validate() error {
	stats, err := w.store.Stats(w.ctx)
	if err != nil {
		return err
	}
	if stats.TotalDocuments == 0 {
		return fmt.Errorf("no documents stored")
	}
	return nil
}
