// Package retrieval turns a visitor message into grounding context for the
// answer generator: it queries the vector store under the tenant scope,
// accepts hits relative to the best match rather than an absolute cutoff,
// and walks a fixed ladder of fallbacks before conceding an empty context.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beaconchat/beacon/internal/source"
	"github.com/beaconchat/beacon/internal/tenant"
	"github.com/beaconchat/beacon/internal/vectorstore"
)

// Conversation roles used in retrieval history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string
	Content string
}

// SourceRef identifies a source that contributed to the context.
type SourceRef struct {
	ID   int64
	Name string
	Kind string
	URL  string
}

// Context is the retrieval result. An exhausted fallback ladder yields a
// zero Context, not an error.
type Context struct {
	Text      string
	SourceIDs []int64
	Sources   []SourceRef
}

// Empty reports whether retrieval found nothing usable.
func (c Context) Empty() bool {
	return c.Text == ""
}

// Searcher is the vector store capability the pipeline needs.
type Searcher interface {
	Query(ctx context.Context, text string, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error)
}

// SourceResolver resolves source ids to display metadata.
type SourceResolver interface {
	GetByID(ctx context.Context, id int64) (*source.Source, error)
}

// Config carries the retrieval constants. Zero values are replaced with the
// defaults the rest of the system is tuned for.
type Config struct {
	Candidates         int     // primary candidate count
	DistanceCeiling    float64 // absolute bound for the primary acceptance
	DistanceMargin     float64 // relative band above the best hit
	FallbackCeiling    float64 // absolute bound every fallback stage keeps
	FallbackCandidates int     // candidate count for the widest attempt
	MaxContextChars    int     // upper bound on assembled context text
}

func (c Config) normalized() Config {
	if c.Candidates <= 0 {
		c.Candidates = 8
	}
	if c.DistanceCeiling <= 0 {
		c.DistanceCeiling = 0.75
	}
	if c.DistanceMargin <= 0 {
		c.DistanceMargin = 0.15
	}
	if c.FallbackCeiling <= 0 {
		c.FallbackCeiling = 0.85
	}
	if c.FallbackCandidates <= 0 {
		c.FallbackCandidates = 16
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 6000
	}
	return c
}

// Pipeline executes retrieval against a vector store and resolves source
// attribution through the source registry.
type Pipeline struct {
	store   Searcher
	sources SourceResolver
	cfg     Config
	logger  *slog.Logger
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(store Searcher, sources SourceResolver, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:   store,
		sources: sources,
		cfg:     cfg.normalized(),
		logger:  logger.With("component", "retrieval"),
	}
}

// Retrieve builds the grounding context for a message under the scope.
//
// Order of attempts:
//  1. primary query (message, possibly augmented with the prior user turn),
//     accepted within min(ceiling, best distance + margin)
//  2. topic-cluster query variants under the looser absolute fallback ceiling
//  3. stopword-stripped keyword query under the same ceiling
//  4. widened scope: widget and user filters dropped, larger candidate
//     count. The organization filter is never dropped.
func (p *Pipeline) Retrieve(ctx context.Context, message string, history []Turn, scope tenant.Scope) (Context, error) {
	if !scope.Valid() {
		return Context{}, fmt.Errorf("invalid scope: org id is required")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Context{}, nil
	}

	filter := scopeFilter(scope)
	query := buildQuery(message, history)

	hits, err := p.store.Query(ctx, query, p.cfg.Candidates, filter)
	if err != nil {
		return Context{}, fmt.Errorf("primary retrieval failed: %w", err)
	}
	accepted := acceptRelative(hits, p.cfg.DistanceCeiling, p.cfg.DistanceMargin)

	if len(accepted) == 0 {
		accepted = p.fallback(ctx, message, filter)
	}
	if len(accepted) == 0 {
		p.logger.Debug("retrieval exhausted, returning empty context", "org_id", scope.OrgID)
		return Context{}, nil
	}

	return p.assemble(ctx, accepted), nil
}

// fallback walks the remaining attempts in order, returning the first
// non-empty accepted set. Every stage keeps the absolute fallback ceiling so
// an unrelated corpus still yields nothing.
func (p *Pipeline) fallback(ctx context.Context, message string, filter vectorstore.Filter) []vectorstore.Hit {
	for _, variant := range topicVariants(message) {
		hits, err := p.store.Query(ctx, variant, p.cfg.Candidates, filter)
		if err != nil {
			p.logger.Warn("topic variant query failed", "error", err)
			continue
		}
		if accepted := acceptAbsolute(hits, p.cfg.FallbackCeiling); len(accepted) > 0 {
			p.logger.Debug("topic fallback matched", "variant", variant, "hits", len(accepted))
			return accepted
		}
	}

	if keywords := stripStopwords(message); keywords != "" && keywords != strings.ToLower(message) {
		hits, err := p.store.Query(ctx, keywords, p.cfg.Candidates, filter)
		if err != nil {
			p.logger.Warn("keyword query failed", "error", err)
		} else if accepted := acceptAbsolute(hits, p.cfg.FallbackCeiling); len(accepted) > 0 {
			p.logger.Debug("keyword fallback matched", "hits", len(accepted))
			return accepted
		}
	}

	wide := vectorstore.Filter{OrgID: filter.OrgID}
	hits, err := p.store.Query(ctx, message, p.cfg.FallbackCandidates, wide)
	if err != nil {
		p.logger.Warn("widened query failed", "error", err)
		return nil
	}
	return acceptAbsolute(hits, p.cfg.FallbackCeiling)
}

// assemble deduplicates hits, prefixes provenance, bounds the text and
// resolves source attribution.
func (p *Pipeline) assemble(ctx context.Context, hits []vectorstore.Hit) Context {
	var (
		parts     []string
		size      int
		seenText  = make(map[string]struct{})
		seenSrc   = make(map[int64]struct{})
		sourceIDs []int64
	)

	for _, hit := range hits {
		key := dedupeKey(hit.Text)
		if key == "" {
			continue
		}
		if _, ok := seenText[key]; ok {
			continue
		}

		part := hit.Text
		if label := provenance(hit); label != "" {
			part = "[" + label + "]\n" + part
		}

		if size+len(part) > p.cfg.MaxContextChars {
			if len(parts) > 0 {
				break
			}
			part = part[:p.cfg.MaxContextChars]
		}

		seenText[key] = struct{}{}
		parts = append(parts, part)
		size += len(part)

		if hit.SourceID > 0 {
			if _, ok := seenSrc[hit.SourceID]; !ok {
				seenSrc[hit.SourceID] = struct{}{}
				sourceIDs = append(sourceIDs, hit.SourceID)
			}
		}
	}

	if len(parts) == 0 {
		return Context{}
	}

	return Context{
		Text:      strings.Join(parts, "\n\n"),
		SourceIDs: sourceIDs,
		Sources:   p.resolveSources(ctx, sourceIDs),
	}
}

func (p *Pipeline) resolveSources(ctx context.Context, ids []int64) []SourceRef {
	refs := make([]SourceRef, 0, len(ids))
	for _, id := range ids {
		src, err := p.sources.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, source.ErrNotFound) {
				p.logger.Warn("failed to resolve source", "source_id", id, "error", err)
			}
			refs = append(refs, SourceRef{ID: id})
			continue
		}
		refs = append(refs, SourceRef{
			ID:   src.ID,
			Name: src.Name,
			Kind: string(src.Kind),
			URL:  src.URL,
		})
	}
	return refs
}

// acceptRelative keeps hits within min(ceiling, best+margin). Hits arrive
// ordered by ascending distance.
func acceptRelative(hits []vectorstore.Hit, ceiling, margin float64) []vectorstore.Hit {
	if len(hits) == 0 {
		return nil
	}
	threshold := float64(hits[0].Distance) + margin
	if ceiling < threshold {
		threshold = ceiling
	}
	return within(hits, threshold)
}

func acceptAbsolute(hits []vectorstore.Hit, ceiling float64) []vectorstore.Hit {
	return within(hits, ceiling)
}

func within(hits []vectorstore.Hit, threshold float64) []vectorstore.Hit {
	var kept []vectorstore.Hit
	for _, h := range hits {
		if float64(h.Distance) <= threshold {
			kept = append(kept, h)
		}
	}
	return kept
}

func scopeFilter(scope tenant.Scope) vectorstore.Filter {
	return vectorstore.Filter{
		OrgID:    scope.OrgID,
		WidgetID: scope.WidgetID,
		UserID:   scope.UserID,
	}
}

func provenance(hit vectorstore.Hit) string {
	if hit.Title != "" {
		return hit.Title
	}
	return hit.URL
}

func dedupeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
