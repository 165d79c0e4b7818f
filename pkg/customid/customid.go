// Package customid builds and parses the custom_id strings that tie a
// request store row to its manufacturer, field, extraction stage and chunk
// offsets:
//
//	etld1 ">" field ">" ["kind" ">"] "chunk" ">" start ":" end
//
// The optional kind segment is present only for concept fields, where it is
// one of "llm_search" or "mapping"; binary/basic/keyword fields omit it.
package customid

import (
	"fmt"
	"strings"
)

const (
	KindLLMSearch = "llm_search"
	KindMapping   = "mapping"

	segmentChunk = "chunk"
	separator    = ">"
)

// ID is a parsed custom_id.
type ID struct {
	ETLD1  string
	Field  string
	Kind   string // "" for binary/basic/keyword fields
	Bounds string // "start:end"
}

// Build renders a plain (non-concept) custom ID: etld1>field>chunk>bounds.
func Build(etld1, field, bounds string) string {
	return strings.Join([]string{etld1, field, segmentChunk, bounds}, separator)
}

// BuildWithKind renders a concept-field custom ID:
// etld1>field>kind>chunk>bounds.
func BuildWithKind(etld1, field, kind, bounds string) string {
	return strings.Join([]string{etld1, field, kind, segmentChunk, bounds}, separator)
}

// Parse decodes a custom ID produced by Build or BuildWithKind.
func Parse(customID string) (ID, error) {
	parts := strings.Split(customID, separator)

	switch len(parts) {
	case 4:
		if parts[2] != segmentChunk {
			return ID{}, fmt.Errorf("customid: malformed id %q: expected %q segment", customID, segmentChunk)
		}
		return ID{ETLD1: parts[0], Field: parts[1], Bounds: parts[3]}, nil
	case 5:
		if parts[3] != segmentChunk {
			return ID{}, fmt.Errorf("customid: malformed id %q: expected %q segment", customID, segmentChunk)
		}
		kind := parts[2]
		if kind != KindLLMSearch && kind != KindMapping {
			return ID{}, fmt.Errorf("customid: malformed id %q: unknown kind %q", customID, kind)
		}
		return ID{ETLD1: parts[0], Field: parts[1], Kind: kind, Bounds: parts[4]}, nil
	default:
		return ID{}, fmt.Errorf("customid: malformed id %q: expected 4 or 5 segments, got %d", customID, len(parts))
	}
}

// PrefixForField returns the range-scan lower bound used by
// delete_by_prefix-style operations: every custom ID for (etld1, field)
// starts with this prefix, regardless of kind or chunk bounds.
func PrefixForField(etld1, field string) string {
	return etld1 + separator + field + separator
}
