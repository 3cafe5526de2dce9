package engine

import (
	"net/url"
	"strings"
)

// trackingParams are query keys that never change which article a URL
// points at.
var trackingParams = map[string]bool{
	"fbclid": true, "gclid": true, "igshid": true, "mc_cid": true,
	"mc_eid": true, "ref": true, "ocid": true, "ref_src": true,
}

// CanonicalizeURL normalizes an article URL so the same article reached
// through different links maps to one stored row:
//   - lowercases scheme and host
//   - drops the fragment and default ports
//   - drops utm_* and other tracking query parameters
//
// The path is kept as-is; some sites route "/nota" and "/nota/" differently.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = u.Hostname()
	}

	if u.RawQuery != "" {
		params := u.Query()
		for key := range params {
			lower := strings.ToLower(key)
			if strings.HasPrefix(lower, "utm_") || trackingParams[lower] {
				params.Del(key)
			}
		}
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// linkSet keeps first-seen order of canonical article URLs for one run.
type linkSet struct {
	seen  map[string]struct{}
	order []string
}

func newLinkSet(capacity int) *linkSet {
	return &linkSet{seen: make(map[string]struct{}, capacity)}
}

// Add records rawURL and reports whether its canonical form was new.
func (s *linkSet) Add(rawURL string) bool {
	canonical := CanonicalizeURL(rawURL)
	if _, ok := s.seen[canonical]; ok {
		return false
	}
	s.seen[canonical] = struct{}{}
	s.order = append(s.order, canonical)
	return true
}

// URLs returns the canonical URLs in the order they were added.
func (s *linkSet) URLs() []string {
	return s.order
}

func (s *linkSet) Len() int {
	return len(s.order)
}
