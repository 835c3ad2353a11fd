package model

import "strings"

// Record is a single opaque object returned by a vendor list endpoint.
// The vendor owns the schema; scanexport never interprets record fields
// beyond the dotted-path lookups below, which are used only for the
// identifiers the export engine itself supplied in its filters.
//
// Design decision: We use a plain map rather than typed structs because
// findings and scan results are passthrough payloads. Typing them would
// couple this tool to a vendor schema it does not control, and any field
// the vendor adds or removes would silently be dropped or break decoding.
type Record map[string]any

// StringAt returns the string value at a dotted path such as "meta.name"
// or "tenant_meta.namespace". It returns the empty string if any path
// segment is missing, is not an object, or if the leaf is not a string.
func (r Record) StringAt(path string) string {
	cur := map[string]any(r)
	for {
		head, rest, found := strings.Cut(path, ".")
		if !found {
			s, _ := cur[head].(string)
			return s
		}
		next, ok := cur[head].(map[string]any)
		if !ok {
			return ""
		}
		cur = next
		path = rest
	}
}

// UUID returns the record's top-level "uuid" field, or "" if absent.
func (r Record) UUID() string {
	return r.StringAt("uuid")
}

// Name returns the record's "meta.name" field, or "" if absent.
func (r Record) Name() string {
	return r.StringAt("meta.name")
}
