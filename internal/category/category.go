// Package category maps raw section signals (meta tags, URL paths, keywords)
// onto the closed set of category labels articles may carry.
package category

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Overflow is the label assigned to anything outside the allowed set.
const Overflow = "Tendencias"

// Allowed is the closed set of labels an article may carry.
var Allowed = []string{
	"Política",
	"Deportes",
	"Salud",
	"Economía",
	"Música",
	"Tecnología",
	"Entretenimiento",
	"Videojuegos",
	Overflow,
}

// aliases maps cleaned section slugs to canonical labels. Some canonical
// labels (Mundo, Lima, ...) are not allowed and end up as Overflow.
var aliases = map[string]string{
	"politica":        "Política",
	"política":        "Política",
	"gobierno":        "Política",
	"congreso":        "Política",
	"judiciales":      "Judiciales",
	"justicia":        "Judiciales",
	"deportes":        "Deportes",
	"deporte":         "Deportes",
	"futbol":          "Deportes",
	"fútbol":          "Deportes",
	"economia":        "Economía",
	"economía":        "Economía",
	"negocios":        "Economía",
	"finanzas":        "Economía",
	"tecnologia":      "Tecnología",
	"tecnología":      "Tecnología",
	"tecno":           "Tecnología",
	"ciencia":         "Ciencia",
	"salud":           "Salud",
	"vital":           "Salud",
	"musica":          "Música",
	"música":          "Música",
	"peru":            "Perú",
	"perú":            "Perú",
	"méxico":          "México",
	"mexico":          "México",
	"mundo":           "Mundo",
	"internacional":   "Mundo",
	"lima":            "Lima",
	"policiales":      "Policiales",
	"seguridad":       "Policiales",
	"entretenimiento": "Entretenimiento",
	"espectaculos":    "Entretenimiento",
	"espectáculos":    "Entretenimiento",
	"videojuegos":     "Videojuegos",
	"opinion":         "Opinión",
	"opinión":         "Opinión",
}

// genericSections are path segments that name a site area rather than a topic.
var genericSections = map[string]bool{
	"":                 true,
	"home":             true,
	"inicio":           true,
	"ultimas-noticias": true,
	"últimas-noticias": true,
	"portada":          true,
	"principal":        true,
	"buscar":           true,
	"videos":           true,
	"audio":            true,
	"podcast":          true,
	"programas":        true,
}

var (
	noiseRe    = regexp.MustCompile(`[^a-záéíóúüñ0-9\s-]`)
	tokenRe    = regexp.MustCompile(`[/\s\-|,;:]+`)
	keywordsRe = regexp.MustCompile(`[,;|/]+`)
)

var canonicalLabels = func() map[string]bool {
	m := make(map[string]bool, len(aliases))
	for _, label := range aliases {
		m[label] = true
	}
	return m
}()

// Normalize cleans a raw signal and looks it up in the alias table, whole
// and then token by token. Without a match it returns the raw input
// capitalized. Blank input returns "".
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	key := strings.ToLower(trimmed)
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSpace(noiseRe.ReplaceAllString(key, ""))
	if key == "" {
		return capitalize(trimmed)
	}

	if label, ok := aliases[key]; ok {
		return label
	}
	for _, tok := range tokenRe.Split(key, -1) {
		if label, ok := aliases[strings.TrimSpace(tok)]; ok {
			return label
		}
	}
	return capitalize(trimmed)
}

// Gate coerces a label into the allowed set: exact match, then
// case-insensitive match, else Overflow.
func Gate(label string) string {
	for _, a := range Allowed {
		if label == a {
			return a
		}
	}
	for _, a := range Allowed {
		if strings.EqualFold(label, a) {
			return a
		}
	}
	return Overflow
}

// Resolve normalizes raw and gates the result. It never returns "".
func Resolve(raw string) string {
	return Gate(Normalize(raw))
}

// IsAllowed reports whether label is a member of the allowed set.
func IsAllowed(label string) bool {
	for _, a := range Allowed {
		if label == a {
			return true
		}
	}
	return false
}

// IsKnown reports whether label is one of the alias table's canonical labels.
func IsKnown(label string) bool {
	return canonicalLabels[label]
}

// FromKeywords checks each token of a keywords meta value and returns the
// first that normalizes to a known canonical label.
func FromKeywords(content string) string {
	for _, tok := range keywordsRe.Split(content, -1) {
		if label := Normalize(tok); IsKnown(label) {
			return label
		}
	}
	return ""
}

// FromURL infers a label from the first path segment, or the second when
// the first is a generic site area such as /home or /ultimas-noticias.
func FromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}

	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	candidate := strings.ToLower(parts[0])
	if genericSections[candidate] {
		if len(parts) < 2 {
			return ""
		}
		candidate = strings.ToLower(parts[1])
	}
	if unescaped, err := url.PathUnescape(candidate); err == nil {
		candidate = unescaped
	}
	return Normalize(candidate)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
