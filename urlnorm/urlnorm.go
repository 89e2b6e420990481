// Package urlnorm canonicalizes, validates, and compares URLs. All
// functions are pure; callers hold no shared state.
package urlnorm

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a URL is malformed or misses a usable
// scheme or host.
var ErrInvalidURL = errors.New("invalid url")

// IsValid reports whether raw parses with an http or https scheme and a
// non-empty host.
func IsValid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Normalize canonicalizes raw: trims whitespace, defaults the scheme to
// https, strips any fragment, and rebuilds the URL from scheme, host,
// path, and query. Normalizing an already-normalized URL is a fixed
// point.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	if i := strings.Index(raw, "://"); i >= 0 {
		if scheme := strings.ToLower(raw[:i]); scheme != "http" && scheme != "https" {
			return "", ErrInvalidURL
		}
	} else {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	normalized := u.Scheme + "://" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}

	if !IsValid(normalized) {
		return "", ErrInvalidURL
	}
	return normalized, nil
}

// Clean removes a single trailing slash unless the URL is a bare root.
// The slash-count guard keeps "https://example.com/" intact while
// stabilizing dedup keys for deeper paths.
func Clean(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "/") && strings.Count(raw, "/") > 3 {
		raw = raw[:len(raw)-1]
	}
	return raw
}

// Domain extracts the host component, subdomain included.
func Domain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidURL
	}
	return u.Host, nil
}

// SameDomain reports whether both URLs resolve to the same non-empty
// host. The match is exact: "www.x.com" and "x.com" are distinct.
func SameDomain(a, b string) bool {
	da, err := Domain(a)
	if err != nil {
		return false
	}
	db, err := Domain(b)
	if err != nil {
		return false
	}
	return da == db
}

// Absolute resolves ref against base per standard URL resolution. The
// result must independently validate.
func Absolute(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", ErrInvalidURL
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", ErrInvalidURL
	}
	abs := b.ResolveReference(r).String()
	if !IsValid(abs) {
		return "", ErrInvalidURL
	}
	return abs, nil
}
