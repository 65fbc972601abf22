// Package profile defines the structured candidate record produced by the
// structuring stage and the recursive sanitization applied before persistence.
package profile

import (
	"encoding/json"
	"fmt"
)

// IDKey is the reserved section name carrying the record identifier.
const IDKey = "id"

// Record is a structured candidate profile. Sections hold a nested mapping of
// section name to content, where content is a string, a nested mapping, or a
// list of either. The shape is dynamic: different CVs produce different
// sections, so values are traversed recursively rather than bound to a schema.
type Record struct {
	ID       string
	Sections map[string]any
}

// FromJSON parses a JSON object into a Record, applying Prune to every value.
// The "id" key, if present, is lifted out of the section map. Keys other than
// strings cannot occur in JSON objects, so parsing enforces the string-key
// invariant for free.
func FromJSON(data []byte) (*Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return FromMap(raw)
}

// FromMap builds a Record from a decoded JSON object, pruning empty values.
func FromMap(raw map[string]any) (*Record, error) {
	rec := &Record{Sections: map[string]any{}}

	if v, ok := raw[IDKey]; ok {
		if s, ok := v.(string); ok {
			rec.ID = s
		}
		delete(raw, IDKey)
	}

	pruned := Prune(raw)
	sections, ok := pruned.(map[string]any)
	if !ok {
		// Everything pruned away; an empty record is still a record, the
		// caller decides whether to reject it.
		sections = map[string]any{}
	}
	rec.Sections = sections
	return rec, nil
}

// Empty reports whether the record carries no sections at all.
func (r *Record) Empty() bool {
	return len(r.Sections) == 0
}

// MarshalJSON serializes the record as a single flat JSON object with the
// identifier stored under "id" alongside the sections.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Sections)+1)
	for k, v := range r.Sections {
		out[k] = v
	}
	if r.ID != "" {
		out[IDKey] = r.ID
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a record persisted by MarshalJSON. Values are pruned
// again on the way in; pruning is idempotent so this is a no-op for records
// that went through FromJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := FromJSON(data)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}
