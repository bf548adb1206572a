// Package models provides the data structures that flow through the sync
// engine: query windows, page results, raw source records and the entity
// envelope that carries each record's sync status back to the caller.
package models

// RawRecord is a structured document as returned by the source system.
// The engine never mutates a RawRecord it did not create.
type RawRecord map[string]interface{}

// Get returns the value stored under key, or nil.
func (r RawRecord) Get(key string) interface{} {
	if r == nil {
		return nil
	}
	return r[key]
}

// Clone returns a shallow copy of the record.
func (r RawRecord) Clone() RawRecord {
	if r == nil {
		return nil
	}
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
