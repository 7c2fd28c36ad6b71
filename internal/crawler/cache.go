package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Entry is the change-detection state for one normalized URL.
type Entry struct {
	ContentHash  string    `json:"content_hash"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	CrawledAt    time.Time `json:"crawled_at"`
}

// Cache maps normalized URLs to their change-detection state. It is stored
// as an opaque blob on the owning Source and read/written only by the
// crawler for that Source.
type Cache map[string]Entry

// ParseCache decodes a cache blob. An empty blob yields an empty cache.
func ParseCache(blob string) (Cache, error) {
	if blob == "" {
		return Cache{}, nil
	}

	var c Cache
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		return nil, fmt.Errorf("failed to decode crawl cache: %w", err)
	}
	if c == nil {
		c = Cache{}
	}
	return c, nil
}

// Encode serializes the cache for storage on its Source.
func (c Cache) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode crawl cache: %w", err)
	}
	return string(data), nil
}

// Clone returns a copy safe to mutate during a crawl run.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

var digits = regexp.MustCompile(`[0-9]+`)

// ContentHash computes a digits-insensitive hash of page text, so pages that
// differ only in counters, dates or timestamps are not reported as changed.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(digits.ReplaceAllString(text, "")))
	return hex.EncodeToString(sum[:])
}
