package mapping

import (
	"strings"

	"github.com/ajitpratap0/nsagency/pkg/models"
)

// CustomFieldKeys names the keys of a record's extension-field collection.
type CustomFieldKeys struct {
	// List is the record key holding the collection.
	List string
	// Entries is the key inside the collection holding the entry list.
	// When the collection is itself a list, Entries is ignored.
	Entries string
	// ID and Value are the keys of one entry.
	ID    string
	Value string
	// Sigil is stripped from the requested identifier before matching.
	Sigil string
}

// DefaultCustomFieldKeys matches the SuiteTalk record shape.
var DefaultCustomFieldKeys = CustomFieldKeys{
	List:    "customFieldList",
	Entries: "customField",
	ID:      "scriptId",
	Value:   "value",
	Sigil:   "@",
}

// Resolver looks up extension fields by identifier.
type Resolver struct {
	keys CustomFieldKeys
}

// NewResolver creates a resolver for the given key layout.
func NewResolver(keys CustomFieldKeys) *Resolver {
	return &Resolver{keys: keys}
}

// Resolve returns the value of the single extension field whose identifier
// equals fieldID with the sigil stripped. It reports false when the record
// carries no collection, or when zero or more than one entry matches.
func (r *Resolver) Resolve(raw models.RawRecord, fieldID string) (interface{}, bool) {
	collection, ok := raw[r.keys.List]
	if !ok || collection == nil {
		return nil, false
	}

	entries, ok := asList(collection)
	if !ok {
		m, isMap := asMap(collection)
		if !isMap {
			return nil, false
		}
		if entries, ok = asList(m[r.keys.Entries]); !ok {
			return nil, false
		}
	}

	id := strings.ReplaceAll(fieldID, r.keys.Sigil, "")
	var (
		value   interface{}
		matches int
	)
	for _, e := range entries {
		entry, ok := asMap(e)
		if !ok {
			continue
		}
		if sid, _ := entry[r.keys.ID].(string); sid == id {
			matches++
			value = entry[r.keys.Value]
		}
	}
	if matches != 1 {
		return nil, false
	}
	return value, true
}

var defaultResolver = NewResolver(DefaultCustomFieldKeys)

// ResolveCustomField resolves fieldID with the default key layout and
// returns nil when it is not found exactly once.
func ResolveCustomField(raw models.RawRecord, fieldID string) interface{} {
	v, _ := defaultResolver.Resolve(raw, fieldID)
	return v
}
