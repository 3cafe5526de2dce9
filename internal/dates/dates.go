// Package dates parses the loosely formatted publish timestamps found in
// news page metadata.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	offsetRe   = regexp.MustCompile(`^(.*T\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?)([+-]\d{2}):?(\d{2})$`)
	fractionRe = regexp.MustCompile(`^(.*T\d{2}:\d{2}:\d{2})\.(\d+)(.*)$`)
)

// Parse reads an ISO-8601-ish timestamp. It accepts a trailing Z, a space
// instead of T, offsets without a colon, and fractions of any length.
// RFC 1123 style dates are accepted as well. Timestamps without an offset
// are taken as UTC, and ambiguous day/month orders are rejected.
func Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	iso := s
	if strings.HasSuffix(iso, "Z") || strings.HasSuffix(iso, "z") {
		iso = iso[:len(iso)-1] + "+00:00"
	}
	iso = strings.Replace(iso, " ", "T", 1)

	if m := offsetRe.FindStringSubmatch(iso); m != nil {
		iso = m[1] + m[2] + ":" + m[3]
	}
	if m := fractionRe.FindStringSubmatch(iso); m != nil {
		digits := m[2]
		if len(digits) > 6 {
			digits = digits[:6]
		} else {
			digits += strings.Repeat("0", 6-len(digits))
		}
		iso = m[1] + "." + digits + m[3]
	}

	for _, candidate := range []string{iso, s} {
		if t, err := dateparse.ParseStrict(candidate); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Format renders t in the canonical stored form.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Normalize returns the canonical form of raw when it parses, otherwise
// the trimmed input.
func Normalize(raw string) string {
	if t, ok := Parse(raw); ok {
		return Format(t)
	}
	return strings.TrimSpace(raw)
}
