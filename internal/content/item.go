package content

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fields holds type-specific column values normalized by kind: string,
// int64, float64 or bool.
type Fields map[string]any

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Item is one row of a content collection.
type Item struct {
	ID        string
	Fields    Fields
	Position  int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get returns a field rendered as text, or "" when absent.
func (i Item) Get(name string) string {
	switch v := i.Fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns an integer field, or 0.
func (i Item) Int(name string) int64 {
	n, _ := i.Fields[name].(int64)
	return n
}

// Float returns a numeric field, or 0.
func (i Item) Float(name string) float64 {
	switch v := i.Fields[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns a boolean field, or false.
func (i Item) Bool(name string) bool {
	b, _ := i.Fields[name].(bool)
	return b
}

// Values flattens the item into editable column values, including the
// reserved position and is_active columns when the type has them.
func (i Item) Values(t *Type) Fields {
	out := i.Fields.Clone()
	if t.Ordered {
		out[ColPosition] = i.Position
	}
	if t.Activatable {
		out[ColIsActive] = i.IsActive
	}
	return out
}

// MarshalJSON flattens fields next to the reserved columns so admin
// clients see one flat record per row.
func (i Item) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Fields)+5)
	for k, v := range i.Fields {
		out[k] = v
	}
	out[ColID] = i.ID
	out[ColPosition] = i.Position
	out[ColIsActive] = i.IsActive
	out[ColCreatedAt] = i.CreatedAt
	out[ColUpdatedAt] = i.UpdatedAt
	return json.Marshal(out)
}

// Clone returns a copy that shares no mutable state with i.
func (i Item) Clone() Item {
	i.Fields = i.Fields.Clone()
	return i
}

// ItemFromRow decodes a store row keyed by column name.
func (t *Type) ItemFromRow(row map[string]any) (Item, error) {
	id, ok := row[ColID].(string)
	if !ok || id == "" {
		return Item{}, fmt.Errorf("content: %s row: missing id", t.Key)
	}
	it := Item{ID: id, Fields: Fields{}}

	for _, f := range t.Fields {
		v, err := normalize(f.Kind, row[f.Name])
		if err != nil {
			return Item{}, fmt.Errorf("content: %s row %s: column %s: %w", t.Key, id, f.Name, err)
		}
		it.Fields[f.Name] = v
	}

	if t.Ordered {
		n, err := normalize(KindInt, row[ColPosition])
		if err != nil {
			return Item{}, fmt.Errorf("content: %s row %s: position: %w", t.Key, id, err)
		}
		it.Position = int(n.(int64))
	}
	if t.Activatable {
		it.IsActive, _ = row[ColIsActive].(bool)
	} else {
		it.IsActive = true
	}
	it.CreatedAt, _ = row[ColCreatedAt].(time.Time)
	it.UpdatedAt, _ = row[ColUpdatedAt].(time.Time)
	return it, nil
}

// normalize converts a driver value into the kind's canonical Go type.
// NULL becomes the zero value.
func normalize(kind Kind, v any) (any, error) {
	if v == nil {
		return Zero(kind), nil
	}
	switch kind {
	case KindString, KindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int32:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s", v, kind)
}

// Sort orders items by the type's ordering terms. The sort is stable, so
// equal keys keep their incoming (insertion) order.
func Sort(t *Type, items []Item) {
	terms := t.Ordering()
	sort.SliceStable(items, func(a, b int) bool {
		for _, o := range terms {
			c := compareColumn(o.Column, items[a], items[b])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareColumn(col string, a, b Item) int {
	switch col {
	case ColPosition:
		return a.Position - b.Position
	case ColCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case ColUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return compareValues(a.Fields[col], b.Fields[col])
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case float64:
		y, _ := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case bool:
		y, _ := b.(bool)
		switch {
		case !x && y:
			return -1
		case x && !y:
			return 1
		}
	}
	return 0
}
