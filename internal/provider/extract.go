package provider

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// lookupPath walks a decoded JSON document along a dot-separated path.
// Numeric segments index into arrays, so "data.0.url" reaches the first
// element of the top-level "data" array.
func lookupPath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// extracted holds the outcome of applying extraction rules to a JSON body:
// either a hosted image URL or decoded inline image bytes.
type extracted struct {
	url  string
	data []byte
}

// extractImage applies ordered extraction rules to a decoded JSON response.
// URL paths are tried first, then base64 payload paths, matching the
// observation that providers return either a hosted URL or inline data.
func extractImage(doc any, urlPaths, b64Paths []string) (extracted, bool) {
	for _, path := range urlPaths {
		v, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return extracted{url: strings.TrimSpace(s)}, true
		}
	}
	for _, path := range b64Paths {
		v, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		s = strings.TrimSpace(s)
		// Some providers prefix inline payloads with a data URI header.
		if idx := strings.Index(s, "base64,"); idx >= 0 {
			s = s[idx+len("base64,"):]
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil || len(raw) == 0 {
			continue
		}
		return extracted{data: raw}, true
	}
	return extracted{}, false
}
