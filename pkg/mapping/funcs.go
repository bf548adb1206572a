package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Func computes a target value from already resolved arguments.
type Func func(args []interface{}) (interface{}, error)

// Funcs is a registry of computed-field functions keyed by name.
type Funcs map[string]Func

// DefaultFuncs returns the built-in function set. The returned map is a
// fresh copy the caller may extend.
func DefaultFuncs() Funcs {
	return Funcs{
		"concat":   concat,
		"join":     join,
		"coalesce": coalesce,
		"upper":    unary(func(s string) interface{} { return strings.ToUpper(s) }),
		"lower":    unary(func(s string) interface{} { return strings.ToLower(s) }),
		"string":   toString,
		"int":      toInt,
		"float":    toFloat,
		"utc":      toUTC,
	}
}

func concat(args []interface{}) (interface{}, error) {
	var b strings.Builder
	for _, a := range args {
		if a != nil {
			b.WriteString(stringify(a))
		}
	}
	return b.String(), nil
}

// join uses its first argument as the separator.
func join(args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return "", nil
	}
	sep := stringify(args[0])
	parts := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		if a != nil {
			parts = append(parts, stringify(a))
		}
	}
	return strings.Join(parts, sep), nil
}

func coalesce(args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil && a != "" {
			return a, nil
		}
	}
	return nil, nil
}

func unary(fn func(string) interface{}) Func {
	return func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		if args[0] == nil {
			return nil, nil
		}
		return fn(stringify(args[0])), nil
	}
}

func toString(args []interface{}) (interface{}, error) {
	return unary(func(s string) interface{} { return s })(args)
}

func toInt(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", v)
	}
}

func toFloat(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
}

// toUTC normalises a timestamp to an RFC 3339 UTC string.
func toUTC(args []interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	if args[0] == nil {
		return nil, nil
	}
	t, err := ParseTime(args[0])
	if err != nil {
		return nil, err
	}
	return t.UTC().Format(time.RFC3339), nil
}

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts a time.Time or a string in one of the layouts the
// source emits. Strings without a zone are read as UTC.
func ParseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", t)
	default:
		return time.Time{}, fmt.Errorf("cannot read %T as timestamp", v)
	}
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
