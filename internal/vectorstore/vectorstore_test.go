package vectorstore

import (
	"context"
	"fmt"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconchat/beacon/internal/embed"
	"github.com/beaconchat/beacon/internal/log"
	"github.com/beaconchat/beacon/internal/tenant"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(chromem.NewDB(), embed.NewStatic(64), log.NewNop())
	require.NoError(t, err)
	return store
}

func chunkFor(scope tenant.Scope, sourceID int64, pos int, text string) Chunk {
	return Chunk{
		ID:       fmt.Sprintf("%d/%d/%d", scope.OrgID, sourceID, pos),
		Text:     text,
		Scope:    scope,
		SourceID: sourceID,
		URL:      fmt.Sprintf("https://example.com/p%d", sourceID),
		Title:    fmt.Sprintf("Page %d", sourceID),
		Position: pos,
	}
}

func TestAddAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1"}

	err := store.Add(ctx, []Chunk{
		chunkFor(scope, 10, 0, "refund policy covers returns within thirty days"),
		chunkFor(scope, 10, 1, "shipping takes three to five business days"),
		chunkFor(scope, 11, 0, "the office cat is named biscuit"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count())

	hits, err := store.Query(ctx, "what is the refund policy for returns", 2, Filter{OrgID: 1})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Contains(t, hits[0].Text, "refund policy")
	assert.Equal(t, int64(10), hits[0].SourceID)
	assert.Equal(t, "https://example.com/p10", hits[0].URL)
	assert.Equal(t, "Page 10", hits[0].Title)
	assert.LessOrEqual(t, hits[0].Distance, hits[1].Distance)
}

func TestQueryClampsToCollectionSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1}

	require.NoError(t, store.Add(ctx, []Chunk{
		chunkFor(scope, 10, 0, "only one chunk lives here"),
	}))

	hits, err := store.Query(ctx, "one chunk", 50, Filter{OrgID: 1})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestQueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.Query(context.Background(), "anything", 5, Filter{OrgID: 1})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQueryRejectsNonPositiveK(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Query(context.Background(), "anything", 0, Filter{})
	assert.Error(t, err)
}

func TestTenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Chunk{
		chunkFor(tenant.Scope{OrgID: 1, WidgetID: "w1"}, 10, 0, "org one pricing starts at ten dollars"),
		chunkFor(tenant.Scope{OrgID: 2, WidgetID: "w9"}, 20, 0, "org two pricing starts at ninety dollars"),
	}))

	hits, err := store.Query(ctx, "pricing dollars", 2, Filter{OrgID: 2})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(20), hits[0].SourceID)
}

func TestCompoundFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Chunk{
		chunkFor(tenant.Scope{OrgID: 1, WidgetID: "w1", UserID: 7}, 10, 0, "alpha notes about billing"),
		chunkFor(tenant.Scope{OrgID: 1, WidgetID: "w1", UserID: 8}, 11, 0, "beta notes about billing"),
		chunkFor(tenant.Scope{OrgID: 1, WidgetID: "w2", UserID: 7}, 12, 0, "gamma notes about billing"),
	}))

	hits, err := store.Query(ctx, "billing notes", 3, Filter{OrgID: 1, WidgetID: "w1", UserID: 7})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(10), hits[0].SourceID)

	hits, err = store.Query(ctx, "billing notes", 3, Filter{OrgID: 1, WidgetID: "w1"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestDeleteBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1"}

	require.NoError(t, store.Add(ctx, []Chunk{
		chunkFor(scope, 10, 0, "keep me around please"),
		chunkFor(scope, 20, 0, "delete all of this source"),
		chunkFor(scope, 20, 1, "and this part of it too"),
	}))

	require.NoError(t, store.DeleteBySource(ctx, 20))
	assert.Equal(t, 1, store.Count())

	hits, err := store.Query(ctx, "keep around", 1, Filter{OrgID: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(10), hits[0].SourceID)
}

func TestDeleteBySourceAndURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1, WidgetID: "w1"}

	a := chunkFor(scope, 10, 0, "first page content about apples")
	b := chunkFor(scope, 10, 1, "second page content about oranges")
	b.URL = "https://example.com/other"
	require.NoError(t, store.Add(ctx, []Chunk{a, b}))

	require.NoError(t, store.DeleteBySourceAndURL(ctx, 10, a.URL))
	assert.Equal(t, 1, store.Count())

	records := store.Get(ctx, Filter{SourceID: 10})
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "oranges")
}

func TestUpsertReplacesSameID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	scope := tenant.Scope{OrgID: 1}

	c := chunkFor(scope, 10, 0, "original text before the edit")
	require.NoError(t, store.Add(ctx, []Chunk{c}))

	c.Text = "replacement text after the edit"
	require.NoError(t, store.Add(ctx, []Chunk{c}))

	assert.Equal(t, 1, store.Count())
	records := store.Get(ctx, Filter{OrgID: 1})
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Text, "replacement")
}

func TestGetFiltersAndMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Chunk{
		chunkFor(tenant.Scope{OrgID: 1, WidgetID: "w1"}, 10, 0, "one"),
		chunkFor(tenant.Scope{OrgID: 2, WidgetID: "w2"}, 20, 0, "two"),
	}))

	records := store.Get(ctx, Filter{OrgID: 1})
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].Metadata["org_id"])
	assert.Equal(t, "w1", records[0].Metadata["widget_id"])
	assert.Equal(t, "10", records[0].Metadata["source_id"])
	assert.Equal(t, "0", records[0].Metadata["position"])

	all := store.Get(ctx, Filter{})
	assert.Len(t, all, 2)

	none := store.Get(ctx, Filter{OrgID: 99})
	assert.Empty(t, none)
}
