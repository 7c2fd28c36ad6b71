package crawler

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "case-folded host and default port stripped",
			in:   "http://Example.com:80/a/",
			want: "http://example.com/a",
		},
		{
			name: "https default port stripped",
			in:   "HTTPS://EXAMPLE.COM:443/Docs",
			want: "https://example.com/Docs",
		},
		{
			name: "non-default port kept",
			in:   "http://example.com:8080/a",
			want: "http://example.com:8080/a",
		},
		{
			name: "fragment discarded",
			in:   "http://example.com/page#section-2",
			want: "http://example.com/page",
		},
		{
			name: "query kept",
			in:   "http://example.com/search?q=refund",
			want: "http://example.com/search?q=refund",
		},
		{
			name: "bare host gains root slash",
			in:   "http://example.com",
			want: "http://example.com/",
		},
		{
			name: "root slash kept",
			in:   "http://example.com/",
			want: "http://example.com/",
		},
		{
			name: "path case preserved",
			in:   "http://example.com/About/Team/",
			want: "http://example.com/About/Team",
		},
		{
			name:    "unsupported scheme",
			in:      "ftp://example.com/file",
			wantErr: true,
		},
		{
			name:    "missing host",
			in:      "http:///path-only",
			wantErr: true,
		},
		{
			name:    "garbage",
			in:      "http://exa mple.com/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeURL(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeURL(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_VariantsConverge(t *testing.T) {
	// The cache/visitation property: cosmetic variants are one page.
	variants := []string{
		"http://Example.com:80/a/",
		"http://example.com/a",
		"http://EXAMPLE.com/a#top",
	}

	first, err := NormalizeURL(variants[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range variants[1:] {
		got, err := NormalizeURL(v)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) err = %v", v, err)
		}
		if got != first {
			t.Errorf("NormalizeURL(%q) = %q, want %q", v, got, first)
		}
	}
}

func TestSameHost(t *testing.T) {
	if !sameHost("http://example.com/a", "example.com") {
		t.Error("sameHost() = false for matching host")
	}
	if sameHost("http://other.com/a", "example.com") {
		t.Error("sameHost() = true for different host")
	}
}
