package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for visitation and cache checks so that
// cosmetic variants of the same page are not re-crawled: scheme and host are
// case-folded, default ports stripped, the trailing slash removed on
// non-root paths, and the fragment discarded.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}

	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	} else if u.Path == "" {
		// Bare hosts and their slash-terminated form are the same page.
		u.Path = "/"
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// sameHost reports whether the normalized URL belongs to the given host.
func sameHost(normalized, host string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return u.Hostname() == host
}
