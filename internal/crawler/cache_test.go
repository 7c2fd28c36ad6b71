package crawler

import (
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := Cache{
		"http://example.com/a": {
			ContentHash:  "abc",
			ETag:         `"v1"`,
			LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
			CrawledAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	blob, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode() err = %v", err)
	}

	got, err := ParseCache(blob)
	if err != nil {
		t.Fatalf("ParseCache() err = %v", err)
	}
	entry, ok := got["http://example.com/a"]
	if !ok {
		t.Fatal("decoded cache missing entry")
	}
	if entry.ContentHash != "abc" || entry.ETag != `"v1"` {
		t.Errorf("decoded entry = %+v", entry)
	}
}

func TestParseCache_Empty(t *testing.T) {
	got, err := ParseCache("")
	if err != nil {
		t.Fatalf("ParseCache(\"\") err = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ParseCache(\"\") = %v, want empty cache", got)
	}
}

func TestParseCache_Corrupt(t *testing.T) {
	if _, err := ParseCache("{not json"); err == nil {
		t.Error("ParseCache() = nil error for corrupt blob")
	}
}

func TestContentHash_DigitsInsensitive(t *testing.T) {
	a := ContentHash("Updated 2024-01-02: 17 items in stock")
	b := ContentHash("Updated 2025-12-31: 4 items in stock")
	if a != b {
		t.Error("hashes differ for content that differs only in digits")
	}

	c := ContentHash("Updated: items out of stock")
	if a == c {
		t.Error("hashes equal for genuinely different content")
	}
}

func TestCacheClone(t *testing.T) {
	orig := Cache{"u": {ContentHash: "x"}}
	clone := orig.Clone()
	clone["u"] = Entry{ContentHash: "y"}

	if orig["u"].ContentHash != "x" {
		t.Error("mutating clone changed original")
	}
}
