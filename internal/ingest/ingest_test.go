package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconchat/beacon/internal/chunk"
	"github.com/beaconchat/beacon/internal/crawler"
	"github.com/beaconchat/beacon/internal/database"
	"github.com/beaconchat/beacon/internal/embed"
	"github.com/beaconchat/beacon/internal/extract"
	"github.com/beaconchat/beacon/internal/log"
	"github.com/beaconchat/beacon/internal/retrieval"
	"github.com/beaconchat/beacon/internal/source"
	"github.com/beaconchat/beacon/internal/tenant"
	"github.com/beaconchat/beacon/internal/vectorstore"
)

type env struct {
	svc     *Service
	sources *source.Store
	vectors *vectorstore.Store
	pipe    *retrieval.Pipeline
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	sources := source.NewStore(db, log.NewNop())

	vectors, err := vectorstore.New(chromem.NewDB(), embed.NewStatic(256), log.NewNop())
	require.NoError(t, err)

	cr := crawler.New(crawler.Config{
		Timeout:    5 * time.Second,
		BatchDelay: time.Millisecond,
		MaxWorkers: 4,
	}, log.NewNop())

	svc := NewService(sources, vectors, cr, chunk.New(1000, 200), log.NewNop())
	pipe := retrieval.NewPipeline(vectors, sources, retrieval.Config{}, log.NewNop())

	return &env{svc: svc, sources: sources, vectors: vectors, pipe: pipe}
}

// site is a mutable fake website.
type site struct {
	mu    sync.Mutex
	pages map[string]string
	srv   *httptest.Server
}

func newSite(t *testing.T, pages map[string]string) *site {
	t.Helper()

	s := &site{pages: pages}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) set(path, body string) {
	s.mu.Lock()
	s.pages[path] = body
	s.mu.Unlock()
}

func page(title, text string, links ...string) string {
	body := fmt.Sprintf("<p>%s</p>", text)
	for _, l := range links {
		body += fmt.Sprintf(`<a href=%q>%s</a>`, l, l)
	}
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", title, body)
}

func TestIngestWebCrawlRecrawlEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1"}

	web := newSite(t, map[string]string{
		"/":  page("Home", "Welcome to the demo shop.", "/a", "/b"),
		"/a": page("Refunds", "Our refund policy allows returns within thirty days of purchase."),
		"/b": page("Shipping", "Orders ship within two business days."),
	})

	// First ingestion indexes every reachable page.
	src, changed, scanned, err := e.svc.IngestWeb(ctx, web.srv.URL, 10, 3, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
	assert.Equal(t, 3, changed)
	require.NotNil(t, src)
	assert.Equal(t, source.KindWeb, src.Kind)
	assert.NotEmpty(t, src.CrawlCache)
	firstCount := e.vectors.Count()
	assert.Equal(t, 3, firstCount)

	// Re-ingesting the unchanged site is a no-op besides bookkeeping, and
	// reuses the registered source.
	src2, changed, scanned, err := e.svc.IngestWeb(ctx, web.srv.URL, 10, 3, scope)
	require.NoError(t, err)
	assert.Equal(t, src.ID, src2.ID)
	assert.Equal(t, 3, scanned)
	assert.Equal(t, 0, changed)
	assert.Equal(t, firstCount, e.vectors.Count())

	// Editing one page reindexes exactly that page.
	web.set("/b", page("Shipping", "Orders now ship within five business days."))
	_, changed, scanned, err = e.svc.IngestWeb(ctx, web.srv.URL, 10, 3, scope)
	require.NoError(t, err)
	assert.Equal(t, 3, scanned)
	assert.Equal(t, 1, changed)
	assert.Equal(t, firstCount, e.vectors.Count())

	records := e.vectors.Get(ctx, vectorstore.Filter{SourceID: src.ID})
	var shipping string
	for _, r := range records {
		if r.Metadata["title"] == "Shipping" {
			shipping = r.Text
		}
	}
	assert.Contains(t, shipping, "five business days")

	// Persisted counters reflect the last run.
	stored, err := e.sources.GetByID(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.PagesScanned)
	assert.Equal(t, 1, stored.PagesChanged)
}

func TestIngestWebThenRetrieve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1"}

	web := newSite(t, map[string]string{
		"/": page("Refunds", "Our refund policy allows returns within thirty days of purchase."),
	})

	src, _, _, err := e.svc.IngestWeb(ctx, web.srv.URL, 5, 2, scope)
	require.NoError(t, err)

	got, err := e.pipe.Retrieve(ctx, "what is your refund policy for returns", nil, scope)
	require.NoError(t, err)
	require.False(t, got.Empty())
	assert.Contains(t, got.Text, "thirty days")
	assert.Equal(t, []int64{src.ID}, got.SourceIDs)

	// Another organization sees nothing: the index filter, not distance,
	// guarantees isolation.
	other, err := e.pipe.Retrieve(ctx, "what is your refund policy for returns", nil, tenant.Scope{OrgID: 2})
	require.NoError(t, err)
	assert.True(t, other.Empty())
}

func TestIngestWebInvalidURL(t *testing.T) {
	e := newEnv(t)

	_, _, _, err := e.svc.IngestWeb(context.Background(), "ftp://example.com", 5, 2, tenant.Scope{OrgID: 1})
	assert.Error(t, err)

	_, _, _, err = e.svc.IngestWeb(context.Background(), "https://example.com", 5, 2, tenant.Scope{})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestIngestText(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1", UserID: 7}

	src, err := e.svc.IngestText(ctx, "Support is reachable on weekdays from nine to five.", "Support hours", scope)
	require.NoError(t, err)
	assert.Equal(t, source.KindText, src.Kind)
	assert.Equal(t, "Support hours", src.Name)
	assert.Equal(t, 1, e.vectors.Count())

	records := e.vectors.Get(ctx, vectorstore.Filter{SourceID: src.ID})
	require.Len(t, records, 1)
	assert.Equal(t, "Support hours", records[0].Metadata["title"])
	assert.Equal(t, "7", records[0].Metadata["user_id"])
}

func TestIngestTextEmptyCreatesNoSource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.IngestText(ctx, "   \n  ", "Empty", tenant.Scope{OrgID: 1})
	require.ErrorIs(t, err, extract.ErrEmptyContent)

	listed, err := e.sources.ListByOrg(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, listed)
	assert.Zero(t, e.vectors.Count())
}

func TestIngestDocumentText(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1}

	src, err := e.svc.IngestDocument(ctx, []byte("The onboarding guide lives in the handbook."), "handbook.txt", extract.KindText, scope)
	require.NoError(t, err)
	assert.Equal(t, source.KindText, src.Kind)
	assert.Equal(t, "handbook.txt", src.Filename)
	assert.Equal(t, 1, e.vectors.Count())
}

func TestDeleteSource(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1}

	keep, err := e.svc.IngestText(ctx, "This snippet stays around.", "Keep", scope)
	require.NoError(t, err)
	gone, err := e.svc.IngestText(ctx, "This snippet will be removed.", "Gone", scope)
	require.NoError(t, err)
	require.Equal(t, 2, e.vectors.Count())

	// Another organization cannot delete it.
	err = e.svc.DeleteSource(ctx, gone.ID, tenant.Scope{OrgID: 2})
	require.ErrorIs(t, err, ErrNotOwned)

	require.NoError(t, e.svc.DeleteSource(ctx, gone.ID, scope))
	assert.Equal(t, 1, e.vectors.Count())

	stored, err := e.sources.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, source.StatusDeleted, stored.Status)

	// Deleting again is a no-op.
	require.NoError(t, e.svc.DeleteSource(ctx, gone.ID, scope))

	// The other snippet is untouched.
	records := e.vectors.Get(ctx, vectorstore.Filter{SourceID: keep.ID})
	assert.Len(t, records, 1)

	err = e.svc.DeleteSource(ctx, 9999, scope)
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestChunkIDDeterministic(t *testing.T) {
	a := chunkID(1, 10, "https://example.com/a", 0)
	b := chunkID(1, 10, "https://example.com/a", 0)
	c := chunkID(1, 10, "https://example.com/a", 1)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
