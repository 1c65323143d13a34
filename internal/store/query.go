package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Op string

const (
	Eq  Op = "="
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

// Filter matches a top-level JSON field of the record against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects records of one collection. An empty OrderBy keeps insertion order.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func (q Query) Validate() error {
	for _, f := range q.Filters {
		switch f.Op {
		case Eq, Gt, Gte, Lt, Lte:
		default:
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if f.Field == "" || strings.ContainsAny(f.Field, ".'\"") {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
	}
	return nil
}

// Normalize converts a Go value into its JSON form (float64, string, bool, nil)
// so it can be compared with a decoded record field.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compare orders two normalized JSON values. ok is false when the values are
// of different kinds and cannot be ordered.
func Compare(a, b any) (cmp int, ok bool) {
	switch av := a.(type) {
	case float64:
		bv, isNum := b.(float64)
		if !isNum {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case nil:
		return 0, b == nil
	}
	return 0, false
}

// Matches evaluates the filters against a decoded record body.
func Matches(fields map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		want, err := Normalize(f.Value)
		if err != nil {
			return false, fmt.Errorf("filter %s: %w", f.Field, err)
		}
		got, present := fields[f.Field]
		if !present {
			return false, nil
		}
		c, ok := Compare(got, want)
		if !ok {
			return false, nil
		}
		var pass bool
		switch f.Op {
		case Eq:
			pass = c == 0
		case Gt:
			pass = c > 0
		case Gte:
			pass = c >= 0
		case Lt:
			pass = c < 0
		case Lte:
			pass = c <= 0
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

func marshal(collection, id string, v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return b, nil
}
