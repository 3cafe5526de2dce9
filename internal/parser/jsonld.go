package parser

import (
	"encoding/json"
	"strings"
)

// JSONLDItem is the subset of a schema.org item used for extraction.
// Article is set when any @type names an article type.
type JSONLDItem struct {
	Type          string
	Article       bool
	Headline      string
	DatePublished string
	Section       string
	Image         string
}

// parseJSONLD decodes a JSON-LD block and returns its items.
// Top-level arrays and @graph containers are flattened.
func parseJSONLD(raw string) ([]JSONLDItem, error) {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}

	var out []JSONLDItem
	for _, obj := range flattenJSONLD(data) {
		typ, ok := articleType(obj["@type"])
		out = append(out, JSONLDItem{
			Type:          typ,
			Article:       ok,
			Headline:      firstString(obj, "headline", "name"),
			DatePublished: firstString(obj, "datePublished", "dateCreated"),
			Section:       sectionValue(obj["articleSection"], obj["section"]),
			Image:         imageValue(obj["image"]),
		})
	}
	return out, nil
}

func flattenJSONLD(data any) []map[string]any {
	var out []map[string]any
	switch v := data.(type) {
	case []any:
		for _, elem := range v {
			out = append(out, flattenJSONLD(elem)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			out = append(out, flattenJSONLD(graph)...)
		}
		_, typed := v["@type"]
		_, graph := v["@graph"]
		if typed || !graph {
			out = append(out, v)
		}
	}
	return out
}

// articleType reports whether an @type value (string or list) names an
// article type. It returns the matching type name, or the first name
// when none matches.
func articleType(v any) (string, bool) {
	var names []string
	switch t := v.(type) {
	case string:
		names = []string{t}
	case []any:
		for _, elem := range t {
			if s, ok := elem.(string); ok {
				names = append(names, s)
			}
		}
	}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "article") {
			return name, true
		}
	}
	if len(names) > 0 {
		return names[0], false
	}
	return "", false
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// sectionValue returns the first non-empty string, taking the first
// element of list values.
func sectionValue(values ...any) string {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case []any:
			for _, elem := range t {
				if s, ok := elem.(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return ""
}

// imageValue accepts an ImageObject, a plain URL string, or a list of either.
func imageValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if s, ok := t["url"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []any:
		for _, elem := range t {
			if s := imageValue(elem); s != "" {
				return s
			}
		}
	}
	return ""
}
