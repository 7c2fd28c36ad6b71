// Package ingest orchestrates knowledge ingestion: it registers sources,
// runs the incremental crawler or the document extractors, chunks the
// resulting text and keeps the vector index consistent with the source
// registry.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/beaconchat/beacon/internal/chunk"
	"github.com/beaconchat/beacon/internal/crawler"
	"github.com/beaconchat/beacon/internal/extract"
	"github.com/beaconchat/beacon/internal/source"
	"github.com/beaconchat/beacon/internal/tenant"
	"github.com/beaconchat/beacon/internal/vectorstore"
)

// ErrNotOwned is returned when a mutation targets a source outside the
// caller's organization.
var ErrNotOwned = errors.New("source belongs to a different organization")

// ErrInvalidScope is returned when the tenant scope lacks an organization.
var ErrInvalidScope = errors.New("invalid scope: org id is required")

// Service coordinates ingestion across the crawler, extractors, chunker,
// vector store and source registry.
type Service struct {
	sources *source.Store
	vectors *vectorstore.Store
	crawler *crawler.Crawler
	chunker chunk.Chunker
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates the ingestion service.
func NewService(sources *source.Store, vectors *vectorstore.Store, cr *crawler.Crawler, chunker chunk.Chunker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources: sources,
		vectors: vectors,
		crawler: cr,
		chunker: chunker,
		logger:  logger.With("component", "ingest"),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockSource serializes ingestion per source so two concurrent runs for the
// same site cannot interleave delete/add on the index.
func (s *Service) lockSource(id int64) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// IngestWeb crawls a site incrementally and reindexes the pages whose
// content changed. Re-running against an unchanged site only refreshes the
// stored crawl cache. Returns the source and the changed/scanned page
// counts for usage recording.
func (s *Service) IngestWeb(ctx context.Context, rawURL string, maxPages, maxDepth int, scope tenant.Scope) (*source.Source, int, int, error) {
	if !scope.Valid() {
		return nil, 0, 0, ErrInvalidScope
	}

	startURL, err := crawler.NormalizeURL(rawURL)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("invalid start url %q: %w", rawURL, err)
	}

	src, err := s.sources.FindWebSource(ctx, scope, startURL)
	if errors.Is(err, source.ErrNotFound) {
		src = &source.Source{
			Scope: scope,
			Kind:  source.KindWeb,
			Name:  startURL,
			URL:   startURL,
		}
		if err := s.sources.Create(ctx, src); err != nil {
			return nil, 0, 0, err
		}
	} else if err != nil {
		return nil, 0, 0, err
	}

	unlock := s.lockSource(src.ID)
	defer unlock()

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "source_id", src.ID, "org_id", scope.OrgID)
	logger.Info("starting web ingestion", "url", startURL, "max_pages", maxPages, "max_depth", maxDepth)

	prior, err := crawler.ParseCache(string(src.CrawlCache))
	if err != nil {
		// A corrupt cache falls back to a full crawl.
		logger.Warn("discarding unreadable crawl cache", "error", err)
		prior = nil
	}

	result, err := s.crawler.Run(ctx, startURL, maxPages, maxDepth, prior)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("crawl failed: %w", err)
	}

	for _, page := range result.Changed {
		if err := s.reindexPage(ctx, src, page); err != nil {
			return nil, 0, 0, err
		}
	}

	encoded, err := result.Cache.Encode()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode crawl cache: %w", err)
	}
	if err := s.sources.UpdateCrawlState(ctx, src.ID, []byte(encoded), result.PagesScanned, result.PagesChanged); err != nil {
		return nil, 0, 0, err
	}

	src.CrawlCache = []byte(encoded)
	src.PagesScanned = result.PagesScanned
	src.PagesChanged = result.PagesChanged

	logger.Info("web ingestion finished",
		"pages_scanned", result.PagesScanned,
		"pages_changed", result.PagesChanged,
		"bytes_fetched", result.BytesFetched)
	return src, result.PagesChanged, result.PagesScanned, nil
}

// reindexPage replaces the chunks of one page. Prior chunks for the
// (source, url) pair go first so an edit never leaves stale neighbors.
func (s *Service) reindexPage(ctx context.Context, src *source.Source, page crawler.Page) error {
	if err := s.vectors.DeleteBySourceAndURL(ctx, src.ID, page.URL); err != nil {
		return err
	}

	pieces := s.chunker.Split(page.Content)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]vectorstore.Chunk, len(pieces))
	hash := crawler.ContentHash(page.Content)
	for i, text := range pieces {
		chunks[i] = vectorstore.Chunk{
			ID:          chunkID(src.Scope.OrgID, src.ID, page.URL, i),
			Text:        text,
			Scope:       src.Scope,
			SourceID:    src.ID,
			URL:         page.URL,
			Title:       page.Title,
			Position:    i,
			ContentHash: hash,
		}
	}
	return s.vectors.Add(ctx, chunks)
}

// IngestDocument extracts, chunks and indexes an uploaded file. Extraction
// and chunking run before any source row exists, so a broken upload leaves
// no trace. Uploads always create a new source: unlike pages, files carry
// no stable identity to reconcile against.
func (s *Service) IngestDocument(ctx context.Context, data []byte, filename string, kind extract.Kind, scope tenant.Scope) (*source.Source, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	text, err := extract.Extract(extract.Input{Kind: kind, Filename: filename, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to extract %q: %w", filename, err)
	}

	return s.indexStandalone(ctx, &source.Source{
		Scope:    scope,
		Kind:     source.Kind(kind),
		Name:     filename,
		Filename: filename,
	}, text, filename)
}

// IngestText indexes a raw text snippet as its own source.
func (s *Service) IngestText(ctx context.Context, text, title string, scope tenant.Scope) (*source.Source, error) {
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}
	if title == "" {
		title = "Text snippet"
	}

	normalized, err := extract.Extract(extract.Input{Kind: extract.KindText, Title: title, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest text %q: %w", title, err)
	}

	return s.indexStandalone(ctx, &source.Source{
		Scope: scope,
		Kind:  source.KindText,
		Name:  title,
	}, normalized, title)
}

func (s *Service) indexStandalone(ctx context.Context, src *source.Source, text, title string) (*source.Source, error) {
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, extract.ErrEmptyContent
	}

	if err := s.sources.Create(ctx, src); err != nil {
		return nil, err
	}

	unlock := s.lockSource(src.ID)
	defer unlock()

	chunks := make([]vectorstore.Chunk, len(pieces))
	hash := crawler.ContentHash(text)
	for i, piece := range pieces {
		chunks[i] = vectorstore.Chunk{
			ID:          chunkID(src.Scope.OrgID, src.ID, "", i),
			Text:        piece,
			Scope:       src.Scope,
			SourceID:    src.ID,
			Title:       title,
			Position:    i,
			ContentHash: hash,
		}
	}

	if err := s.vectors.Add(ctx, chunks); err != nil {
		// Index rejected the content; retire the just-created row rather
		// than leaving an active source with no vectors.
		if delErr := s.sources.MarkDeleted(ctx, src.ID); delErr != nil {
			s.logger.Error("failed to retire source after indexing failure",
				"source_id", src.ID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("indexed source", "source_id", src.ID, "org_id", src.Scope.OrgID,
		"kind", src.Kind, "chunks", len(chunks))
	return src, nil
}

// DeleteSource removes a source's vectors and marks the registry row
// deleted. Vectors go first: a crash in between leaves a source that looks
// active but has nothing to retrieve, never orphaned vectors. Deleting an
// already deleted source is a no-op.
func (s *Service) DeleteSource(ctx context.Context, sourceID int64, scope tenant.Scope) error {
	if !scope.Valid() {
		return ErrInvalidScope
	}

	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		return err
	}
	if !src.OwnedBy(scope) {
		return fmt.Errorf("source %d: %w", sourceID, ErrNotOwned)
	}
	if src.Status == source.StatusDeleted {
		return nil
	}

	unlock := s.lockSource(src.ID)
	defer unlock()

	if err := s.vectors.DeleteBySource(ctx, src.ID); err != nil {
		return err
	}
	if err := s.sources.MarkDeleted(ctx, src.ID); err != nil {
		return err
	}

	s.logger.Info("deleted source", "source_id", src.ID, "org_id", scope.OrgID)
	return nil
}

// chunkID derives the deterministic chunk identity from its coordinates, so
// re-ingesting identical content upserts in place.
func chunkID(orgID, sourceID int64, locator string, position int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d/%d/%s/%d", orgID, sourceID, locator, position))
	return hex.EncodeToString(sum[:])
}
