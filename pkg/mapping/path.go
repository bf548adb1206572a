package mapping

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/nsagency/pkg/models"
)

// Lookup walks a dotted path through nested maps and lists. Numeric segments
// index into lists. The second return value is false when any segment is
// missing; a present key holding nil reports true.
func Lookup(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, doc != nil
	}
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case models.RawRecord:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		case []map[string]interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// asMap converts the document shapes the source may return into a plain map.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case models.RawRecord:
		return m, true
	default:
		return nil, false
	}
}

// asList converts the list shapes the source may return into []interface{}.
func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []map[string]interface{}:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	case []models.RawRecord:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = map[string]interface{}(m)
		}
		return out, true
	default:
		return nil, false
	}
}
