// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
)

// LinkGraphStore is an in-memory crawler.LinkGraphStore.
type LinkGraphStore struct {
	mu       sync.RWMutex
	nextPage int64
	nextLink int64
	pages    map[int64]crawler.Page
	byURL    map[string]int64
	links    []crawler.Link
}

// NewLinkGraphStore constructs an empty LinkGraphStore.
func NewLinkGraphStore() *LinkGraphStore {
	return &LinkGraphStore{
		pages: make(map[int64]crawler.Page),
		byURL: make(map[string]int64),
	}
}

// GetOrCreatePage returns the page stored for page.URL, inserting it first when absent.
func (s *LinkGraphStore) GetOrCreatePage(_ context.Context, page crawler.NewPage) (crawler.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[page.URL]; ok {
		return s.pages[id], nil
	}
	s.nextPage++
	stored := crawler.Page{
		ID:           s.nextPage,
		URL:          page.URL,
		FirstSeen:    page.FirstSeen,
		CrawlDepth:   page.Depth,
		CollectionID: page.CollectionID,
		IsSeed:       page.IsSeed,
		CreatedBy:    page.CreatedBy,
		APIKeyName:   page.APIKeyName,
	}
	s.pages[stored.ID] = stored
	s.byURL[stored.URL] = stored.ID
	return stored, nil
}

// UpdatePageContent records a successful fetch.
func (s *LinkGraphStore) UpdatePageContent(_ context.Context, pageID int64, update crawler.ContentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return fmt.Errorf("page %d: %w", pageID, crawler.ErrPageNotFound)
	}
	fetched := update.FetchedAt
	page.Title = update.Title
	page.ContentHash = update.ContentHash
	page.Content = update.Content
	page.StatusCode = update.StatusCode
	page.ContentType = update.ContentType
	page.LastFetched = &fetched
	page.UpdatedBy = update.UpdatedBy
	s.pages[pageID] = page
	return nil
}

// UpdatePageError records a failed fetch, keeping existing content.
func (s *LinkGraphStore) UpdatePageError(_ context.Context, pageID int64, update crawler.ErrorUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return fmt.Errorf("page %d: %w", pageID, crawler.ErrPageNotFound)
	}
	fetched := update.FetchedAt
	page.Error = update.Message
	page.LastFetched = &fetched
	page.UpdatedBy = update.UpdatedBy
	s.pages[pageID] = page
	return nil
}

// AddLink appends an edge. Both endpoints must exist.
func (s *LinkGraphStore) AddLink(_ context.Context, link crawler.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []int64{link.SourceID, link.TargetID} {
		if _, ok := s.pages[id]; !ok {
			return fmt.Errorf("page %d: %w", id, crawler.ErrPageNotFound)
		}
	}
	s.nextLink++
	link.ID = s.nextLink
	s.links = append(s.links, link)
	return nil
}

// OutgoingLinks returns link targets of pageID in insertion order.
func (s *LinkGraphStore) OutgoingLinks(_ context.Context, pageID int64) ([]crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.Page
	for _, link := range s.links {
		if link.SourceID == pageID {
			out = append(out, s.pages[link.TargetID])
		}
	}
	return out, nil
}

// PageByURL looks a page up by its URL.
func (s *LinkGraphStore) PageByURL(_ context.Context, url string) (crawler.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return crawler.Page{}, crawler.ErrPageNotFound
	}
	return s.pages[id], nil
}

// Pages returns every stored page ordered by ID.
func (s *LinkGraphStore) Pages() []crawler.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Page, 0, len(s.pages))
	for id := int64(1); id <= s.nextPage; id++ {
		if page, ok := s.pages[id]; ok {
			out = append(out, page)
		}
	}
	return out
}

// Links returns a copy of every stored link in insertion order.
func (s *LinkGraphStore) Links() []crawler.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Link, len(s.links))
	copy(out, s.links)
	return out
}
