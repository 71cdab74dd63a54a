package crawler

import (
	"context"
	"errors"
	"fmt"
)

// LinkGraph derives page fields from fetched HTML and persists them through a
// LinkGraphStore, stamping the run's collection and audit identity.
type LinkGraph struct {
	store     LinkGraphStore
	converter MarkdownConverter
	clock     Clock
	identity  Identity
}

// NewLinkGraph wires a store and converter. A nil clock uses UTC wall time.
func NewLinkGraph(store LinkGraphStore, converter MarkdownConverter, clock Clock, identity Identity) (*LinkGraph, error) {
	if store == nil {
		return nil, errors.New("link graph store is required")
	}
	if converter == nil {
		return nil, errors.New("markdown converter is required")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &LinkGraph{store: store, converter: converter, clock: clock, identity: identity}, nil
}

// GetOrCreatePage returns the page for url, inserting it at depth when absent.
// An existing page is returned unchanged; its depth is not lowered.
func (g *LinkGraph) GetOrCreatePage(ctx context.Context, url string, depth int, isSeed bool) (Page, error) {
	page, err := g.store.GetOrCreatePage(ctx, NewPage{
		URL:          url,
		Depth:        depth,
		IsSeed:       isSeed,
		FirstSeen:    g.clock.Now(),
		CollectionID: g.identity.CollectionID,
		CreatedBy:    g.identity.CreatedBy,
		APIKeyName:   g.identity.APIKeyName,
	})
	if err != nil {
		return Page{}, fmt.Errorf("get or create page: %w", err)
	}
	return page, nil
}

// StorePageContent records a successful fetch: title, content hash, markdown,
// status, content type and fetch time.
func (g *LinkGraph) StorePageContent(ctx context.Context, pageID int64, html string, statusCode int, contentType string) error {
	markdown, err := g.converter.Convert(html)
	if err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	update := ContentUpdate{
		Title:       ExtractTitle(html),
		ContentHash: GenerateContentHash(html),
		Content:     markdown,
		StatusCode:  statusCode,
		ContentType: contentType,
		FetchedAt:   g.clock.Now(),
		UpdatedBy:   g.identity.CreatedBy,
	}
	if err := g.store.UpdatePageContent(ctx, pageID, update); err != nil {
		return fmt.Errorf("store page content: %w", err)
	}
	return nil
}

// StorePageError records a failed fetch without clearing earlier content.
func (g *LinkGraph) StorePageError(ctx context.Context, pageID int64, message string) error {
	update := ErrorUpdate{
		Message:   message,
		FetchedAt: g.clock.Now(),
		UpdatedBy: g.identity.CreatedBy,
	}
	if err := g.store.UpdatePageError(ctx, pageID, update); err != nil {
		return fmt.Errorf("store page error: %w", err)
	}
	return nil
}

// AddLink inserts a directed edge. Duplicate edges are permitted.
func (g *LinkGraph) AddLink(ctx context.Context, sourceID, targetID int64, text, rel string) error {
	link := Link{
		SourceID:  sourceID,
		TargetID:  targetID,
		Text:      text,
		Rel:       rel,
		CreatedAt: g.clock.Now(),
	}
	if err := g.store.AddLink(ctx, link); err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	return nil
}

// OutgoingLinks returns the target pages of pageID's links in insertion order.
func (g *LinkGraph) OutgoingLinks(ctx context.Context, pageID int64) ([]Page, error) {
	pages, err := g.store.OutgoingLinks(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("list outgoing links: %w", err)
	}
	return pages, nil
}
