package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL resolves relative product links.
	DefaultBaseURL = "https://www.shl.com"

	productPath = "/solutions/products/product-catalog/view/"
)

// CanonicalID turns a product link into the identifier used for deduplication
// and ground-truth comparison. Relative links are resolved against baseURL;
// scheme and host are lowercased, query and fragment dropped, and the
// trailing slash removed.
func CanonicalID(raw, baseURL string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty identifier")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing identifier %q: %w", raw, err)
	}

	if !u.IsAbs() && strings.TrimSpace(baseURL) != "" {
		base, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil {
			return "", fmt.Errorf("parsing base url %q: %w", baseURL, err)
		}
		if !strings.HasPrefix(u.Path, "/") {
			u.Path = "/" + u.Path
		}
		u = base.ResolveReference(u)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	id := u.String()
	if id == "" {
		return "", fmt.Errorf("identifier %q has no path", raw)
	}
	return id, nil
}

// slug builds a catalog path segment from a product name.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// looksLikeLink reports whether ref is a URL or a path rather than a product name.
func looksLikeLink(ref string) bool {
	ref = strings.TrimSpace(ref)
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "/")
}
