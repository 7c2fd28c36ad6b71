// Package vectorstore wraps an embedding index (chromem-go) behind a
// multi-tenant API: chunks are namespaced by organization, widget and
// source, queries run under the conjunction of whichever scope filters are
// set, and deletions target a source or a (source, url) pair.
//
// The store is constructed explicitly and injected from the composition
// root; tests build an isolated in-memory instance with chromem.NewDB()
// instead of sharing global state.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/beaconchat/beacon/internal/embed"
	"github.com/beaconchat/beacon/internal/tenant"
)

// CollectionName is the single chromem collection holding all tenants'
// chunks; isolation happens through metadata filters, not collections.
const CollectionName = "knowledge_base"

// Metadata keys attached to every stored chunk.
const (
	metaOrgID       = "org_id"
	metaWidgetID    = "widget_id"
	metaUserID      = "user_id"
	metaSourceID    = "source_id"
	metaURL         = "url"
	metaTitle       = "title"
	metaPosition    = "position"
	metaContentHash = "content_hash"
)

// Chunk is one bounded slice of source text to be stored with its embedding.
type Chunk struct {
	ID          string
	Text        string
	Scope       tenant.Scope
	SourceID    int64
	URL         string // web chunks only
	Title       string // page title or filename, used as provenance label
	Position    int
	ContentHash string
}

// Filter scopes a query. Zero fields are not applied; two or more set
// fields are combined as a conjunction.
type Filter struct {
	OrgID    int64
	WidgetID string
	UserID   int64
	SourceID int64
}

// Hit is one query result, ordered by ascending distance from the query
// embedding.
type Hit struct {
	ID       string
	Text     string
	Distance float32
	SourceID int64
	URL      string
	Title    string
}

// Record is one stored chunk as returned by the inspection dump.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Store manages chunk vectors in a chromem collection. It is safe for
// concurrent use; chromem provides its own locking.
type Store struct {
	col      *chromem.Collection
	embedder embed.Embedder
	logger   *slog.Logger
}

// New creates a Store on the given chromem database. The collection's
// embedding function delegates to the injected Embedder, so queries and
// inserts always go through the same provider.
func New(db *chromem.DB, embedder embed.Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	col, err := db.GetOrCreateCollection(CollectionName, nil, embeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", CollectionName, err)
	}

	return &Store{
		col:      col,
		embedder: embedder,
		logger:   logger.With("component", "vectorstore"),
	}, nil
}

// embeddingFunc bridges the Embedder interface to chromem's per-text
// embedding callback. chromem normalizes vectors itself.
func embeddingFunc(embedder embed.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embed.EmbedOne(ctx, embedder, text)
	}
}

// Add upserts chunks. Embeddings are generated here in one batch through
// the Embedder; callers never embed themselves. Embedding errors propagate
// and fail the ingestion.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vecs), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: vecs[i],
			Metadata:  chunkMetadata(c),
		}
	}

	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add %d chunks: %w", len(docs), err)
	}

	s.logger.Debug("added chunks", "count", len(docs))
	return nil
}

// Query embeds text and returns up to k hits matching the filter, ordered
// by ascending distance.
func (s *Store) Query(ctx context.Context, text string, k int, filter Filter) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem rejects nResults beyond the collection size; an empty
	// collection is simply an empty result.
	total := s.col.Count()
	if total == 0 {
		return nil, nil
	}
	if k > total {
		k = total
	}

	results, err := s.col.Query(ctx, text, k, filter.where(), nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:       r.ID,
			Text:     r.Content,
			Distance: 1 - r.Similarity,
			SourceID: parseID(r.Metadata[metaSourceID]),
			URL:      r.Metadata[metaURL],
			Title:    r.Metadata[metaTitle],
		})
	}
	return hits, nil
}

// DeleteBySource removes every chunk belonging to the source.
func (s *Store) DeleteBySource(ctx context.Context, sourceID int64) error {
	where := map[string]string{metaSourceID: strconv.FormatInt(sourceID, 10)}
	if err := s.col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete chunks for source %d: %w", sourceID, err)
	}
	return nil
}

// DeleteBySourceAndURL removes the chunks of one page within a source.
func (s *Store) DeleteBySourceAndURL(ctx context.Context, sourceID int64, url string) error {
	where := map[string]string{
		metaSourceID: strconv.FormatInt(sourceID, 10),
		metaURL:      url,
	}
	if err := s.col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete chunks for source %d url %q: %w", sourceID, url, err)
	}
	return nil
}

// Get returns a filtered dump of stored chunks for inspection. It feeds
// admin views, so any backend or embedding error degrades to an empty
// result instead of propagating.
func (s *Store) Get(ctx context.Context, filter Filter) []Record {
	total := s.col.Count()
	if total == 0 {
		return nil
	}

	// chromem has no listing API; a similarity query over the whole
	// collection with a fixed probe serves as the dump.
	probe, err := embed.EmbedOne(ctx, s.embedder, "knowledge base inspection")
	if err != nil {
		s.logger.Warn("inspection dump degraded to empty, probe embedding failed", "error", err)
		return nil
	}

	results, err := s.col.QueryEmbedding(ctx, probe, total, filter.where(), nil)
	if err != nil {
		s.logger.Warn("inspection dump degraded to empty, query failed", "error", err)
		return nil
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		records = append(records, Record{ID: r.ID, Text: r.Content, Metadata: r.Metadata})
	}
	return records
}

// Count returns the number of stored chunks across all tenants.
func (s *Store) Count() int {
	return s.col.Count()
}

// where builds the metadata conjunction for the set filter fields.
func (f Filter) where() map[string]string {
	w := make(map[string]string)
	if f.OrgID > 0 {
		w[metaOrgID] = strconv.FormatInt(f.OrgID, 10)
	}
	if f.WidgetID != "" {
		w[metaWidgetID] = f.WidgetID
	}
	if f.UserID > 0 {
		w[metaUserID] = strconv.FormatInt(f.UserID, 10)
	}
	if f.SourceID > 0 {
		w[metaSourceID] = strconv.FormatInt(f.SourceID, 10)
	}
	if len(w) == 0 {
		return nil
	}
	return w
}

func chunkMetadata(c Chunk) map[string]string {
	m := map[string]string{
		metaOrgID:    c.Scope.OrgKey(),
		metaSourceID: strconv.FormatInt(c.SourceID, 10),
		metaPosition: strconv.Itoa(c.Position),
	}
	if c.Scope.WidgetID != "" {
		m[metaWidgetID] = c.Scope.WidgetID
	}
	if uk := c.Scope.UserKey(); uk != "" {
		m[metaUserID] = uk
	}
	if c.URL != "" {
		m[metaURL] = c.URL
	}
	if c.Title != "" {
		m[metaTitle] = c.Title
	}
	if c.ContentHash != "" {
		m[metaContentHash] = c.ContentHash
	}
	return m
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
