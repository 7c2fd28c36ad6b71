// Package crawler implements a stateful incremental crawler: a concurrent,
// depth- and page-bounded same-domain link follower that consults a per-URL
// cache of content hashes and HTTP validators to report only pages whose
// content changed since the cache was recorded.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/beaconchat/beacon/internal/extract"
)

// Default crawler parameters, overridable via Config.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultBatchDelay = 500 * time.Millisecond
	DefaultUserAgent  = "BeaconBot/1.0 (+https://beaconchat.dev)"
	DefaultMaxWorkers = 8
)

// Page is one crawled page whose content changed since the prior cache.
type Page struct {
	URL     string
	Title   string
	Content string
	Depth   int
}

// Result is the outcome of one crawl run. Cache covers every page fetched
// during the run, whether or not it changed.
type Result struct {
	Changed      []Page
	Cache        Cache
	PagesScanned int
	PagesChanged int
	BytesFetched int64
}

// Config tunes the crawler. Zero values fall back to the package defaults.
type Config struct {
	Timeout    time.Duration // per-fetch timeout
	BatchDelay time.Duration // politeness delay between worker batches
	UserAgent  string
	MaxWorkers int // upper bound on pool size regardless of page budget
}

// Crawler fetches same-domain pages concurrently. It is stateless between
// runs: all per-run state lives in Run, so one Crawler may serve many
// Sources, provided the orchestrator never runs two crawls against the same
// Source concurrently (the cache read-then-write is unsafe under concurrent
// writers).
type Crawler struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Crawler. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Crawler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Crawler{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger.With("component", "crawler"),
	}
}

// frontierEntry is a transient (url, depth) pair awaiting visit within one
// run; it is never persisted.
type frontierEntry struct {
	url   string
	depth int
}

// run holds the mutable state of one crawl. visited, Result fields and the
// cache delta are the only cross-worker structures and are guarded by mu.
type run struct {
	mu       sync.Mutex
	visited  map[string]bool
	enqueued map[string]bool
	frontier []frontierEntry
	result   Result
	prior    Cache
	host     string
	maxDepth int
}

// Run crawls from startURL within the page and depth budgets, consulting the
// prior cache to skip unchanged pages. It returns only changed pages plus a
// cache covering every page fetched. Individual fetch failures are logged
// and skipped; they never abort the run.
func (c *Crawler) Run(ctx context.Context, startURL string, maxPages, maxDepth int, prior Cache) (*Result, error) {
	start, err := NormalizeURL(startURL)
	if err != nil {
		return nil, err
	}
	parsed, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", startURL, err)
	}
	if maxPages < 1 {
		return nil, fmt.Errorf("page budget must be positive, got %d", maxPages)
	}
	// Workers read the prior cache concurrently; a private copy keeps the
	// run independent of the caller's map.
	prior = prior.Clone()

	st := &run{
		visited:  make(map[string]bool),
		enqueued: map[string]bool{start: true},
		frontier: []frontierEntry{{url: start, depth: 0}},
		result:   Result{Cache: Cache{}},
		prior:    prior,
		host:     parsed.Hostname(),
		maxDepth: maxDepth,
	}

	// Previously cached pages were reachable on the last run; seeding them
	// keeps change detection complete even when intermediate pages answer
	// 304 and therefore yield no links to follow.
	for cached := range prior {
		if !st.enqueued[cached] && sameHost(cached, st.host) {
			st.enqueued[cached] = true
			st.frontier = append(st.frontier, frontierEntry{url: cached, depth: 1})
		}
	}

	poolSize := min(maxPages, c.cfg.MaxWorkers)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	limiter := rate.NewLimiter(rate.Every(c.cfg.BatchDelay), 1)

	scheduled := 0
	for len(st.frontier) > 0 && scheduled < maxPages {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch := st.takeBatch(maxPages - scheduled)
		if len(batch) == 0 {
			break
		}
		scheduled += len(batch)

		var wg sync.WaitGroup
		for _, entry := range batch {
			wg.Add(1)
			if submitErr := pool.Submit(func() {
				defer wg.Done()
				c.visit(ctx, st, entry)
			}); submitErr != nil {
				// Pool rejected the task; visit inline rather than dropping
				// the page.
				c.visit(ctx, st, entry)
				wg.Done()
			}
		}
		wg.Wait()
	}

	c.logger.Info("crawl finished",
		"start_url", start,
		"scanned", st.result.PagesScanned,
		"changed", st.result.PagesChanged)

	res := st.result
	return &res, nil
}

// takeBatch dequeues up to n unvisited frontier entries, marking them
// visited so duplicates discovered later are ignored.
func (st *run) takeBatch(n int) []frontierEntry {
	st.mu.Lock()
	defer st.mu.Unlock()

	var batch []frontierEntry
	for len(st.frontier) > 0 && len(batch) < n {
		entry := st.frontier[0]
		st.frontier = st.frontier[1:]
		if st.visited[entry.url] {
			continue
		}
		st.visited[entry.url] = true
		batch = append(batch, entry)
	}
	return batch
}

// visit fetches one frontier URL, updates the cache entry, records the page
// when its content changed, and enqueues outbound same-domain links. All
// failures are logged and skipped.
func (c *Crawler) visit(ctx context.Context, st *run, entry frontierEntry) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, entry.url, nil)
	if err != nil {
		c.logger.Warn("skipping page, bad request", "url", entry.url, "error", err)
		return
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	prior, hadPrior := st.prior[entry.url]
	if hadPrior {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Could not determine change; skipped, not retried within the run.
		c.logger.Warn("skipping page, fetch failed", "url", entry.url, "error", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotModified {
		st.mu.Lock()
		st.result.PagesScanned++
		st.result.Cache[entry.url] = Entry{
			ContentHash:  prior.ContentHash,
			ETag:         prior.ETag,
			LastModified: prior.LastModified,
			CrawledAt:    time.Now().UTC(),
		}
		st.mu.Unlock()
		c.logger.Debug("page not modified", "url", entry.url)
		return
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("skipping page, unexpected status", "url", entry.url, "status", resp.StatusCode)
		return
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTML(ct) {
		c.logger.Debug("skipping non-HTML page", "url", entry.url, "content_type", ct)
		return
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		c.logger.Warn("skipping page, charset detection failed", "url", entry.url, "error", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		c.logger.Warn("skipping page, parse failed", "url", entry.url, "error", err)
		return
	}

	title := extract.HTMLTitle(doc)
	links := c.outboundLinks(doc, resp.Request.URL, st.host)
	// Link extraction must precede HTMLText, which prunes the document while
	// flattening it to text.
	content := extract.HTMLText(doc)
	hash := ContentHash(content)

	changed := !hadPrior || prior.ContentHash != hash

	st.mu.Lock()
	st.result.PagesScanned++
	st.result.BytesFetched += int64(len(content))
	// The cache entry is refreshed regardless of change so validators stay
	// current.
	st.result.Cache[entry.url] = Entry{
		ContentHash:  hash,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		CrawledAt:    time.Now().UTC(),
	}
	if changed {
		st.result.PagesChanged++
		st.result.Changed = append(st.result.Changed, Page{
			URL:     entry.url,
			Title:   title,
			Content: content,
			Depth:   entry.depth,
		})
	}
	if entry.depth+1 <= st.maxDepth {
		for _, link := range links {
			if !st.visited[link] && !st.enqueued[link] {
				st.enqueued[link] = true
				st.frontier = append(st.frontier, frontierEntry{url: link, depth: entry.depth + 1})
			}
		}
	}
	st.mu.Unlock()

	c.logger.Debug("crawled page", "url", entry.url, "depth", entry.depth, "changed", changed)
}

// outboundLinks collects normalized same-domain links from the document.
func (c *Crawler) outboundLinks(doc *goquery.Document, base *url.URL, host string) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		normalized, err := NormalizeURL(base.ResolveReference(ref).String())
		if err != nil {
			return
		}
		if !sameHost(normalized, host) || seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	return links
}

func isHTML(contentType string) bool {
	for _, prefix := range []string{"text/html", "application/xhtml"} {
		if len(contentType) >= len(prefix) && contentType[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
