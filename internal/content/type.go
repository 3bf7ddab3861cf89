// Package content declares the content types the site manages: their
// fields, ordering and flags, the generic Item shape every row shares, and
// the compiled-in default collections shown when the store has nothing to
// offer.
//
// Each table carries at minimum an id, created_at and updated_at column.
// Ordered types add a position column, activatable types add is_active.
package content

import (
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind is the storage kind of a type-specific field.
type Kind string

// Field kinds. String and Text are both stored as TEXT; Text only hints a
// multi-line editor input.
const (
	KindString Kind = "string"
	KindText   Kind = "text"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// Reserved column names shared by every content table.
const (
	ColID        = "id"
	ColPosition  = "position"
	ColIsActive  = "is_active"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

// Field describes one type-specific column.
type Field struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Type is the schema declaration for one content collection. The generic
// store, resolver and editor are all driven by it.
type Type struct {
	Key    string
	Table  string
	Label  string
	Fields []Field

	// Ordered types carry a position column; rendering order is ascending
	// position with ties broken by insertion order.
	Ordered bool

	// Activatable types carry an is_active column. Only active rows are
	// eligible for public rendering.
	Activatable bool

	// Singleton collections hold at most one row.
	Singleton bool

	// Fixed rows are seeded once and only ever updated by the admin UI.
	Fixed bool

	// Public types are resolvable for the public site and must ship
	// non-empty defaults.
	Public bool

	// KeyField names a unique natural key column (e.g. section_key).
	KeyField string

	// Order overrides the default ordering.
	Order []Order
}

// Field returns the declared field with the given name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Ordering returns the ORDER BY terms for the type. Ordered types sort by
// position, everything else by insertion time. created_at is always the
// final tie-breaker.
func (t *Type) Ordering() []Order {
	var terms []Order
	switch {
	case len(t.Order) > 0:
		terms = append(terms, t.Order...)
	case t.Ordered:
		terms = append(terms, Order{Column: ColPosition})
	}
	for _, o := range terms {
		if o.Column == ColCreatedAt {
			return terms
		}
	}
	return append(terms, Order{Column: ColCreatedAt})
}

// Columns lists every column of the type's table in a stable order.
func (t *Type) Columns() []string {
	cols := []string{ColID}
	for _, f := range t.Fields {
		cols = append(cols, f.Name)
	}
	if t.Ordered {
		cols = append(cols, ColPosition)
	}
	if t.Activatable {
		cols = append(cols, ColIsActive)
	}
	return append(cols, ColCreatedAt, ColUpdatedAt)
}

// Writable reports whether an editor may set the named column.
func (t *Type) Writable(name string) bool {
	switch name {
	case ColPosition:
		return t.Ordered
	case ColIsActive:
		return t.Activatable
	}
	_, ok := t.Field(name)
	return ok
}

// Coerce converts raw editor input (decoded JSON or form values) into
// typed Fields. Unknown keys are dropped. Coercion failures are returned
// as validation.Errors keyed by field name.
func (t *Type) Coerce(input map[string]any) (Fields, error) {
	out := Fields{}
	errs := validation.Errors{}
	for name, raw := range input {
		if !t.Writable(name) {
			continue
		}
		kind, label, required := t.describe(name)
		v, err := coerce(kind, raw)
		if err != nil {
			errs[name] = validation.NewError("content.coerce", label+" "+err.Error())
			continue
		}
		if v == nil {
			if required && (kind == KindInt || kind == KindFloat) {
				errs[name] = validation.NewError("content.required", label+" is required")
				continue
			}
			v = Zero(kind)
		}
		if name == ColPosition {
			v = int(v.(int64))
		}
		out[name] = v
	}
	return out, errs.Filter()
}

// Validate checks that every required text field carries a non-blank
// value.
func (t *Type) Validate(f Fields) error {
	errs := validation.Errors{}
	for _, field := range t.Fields {
		if !field.Required {
			continue
		}
		switch field.Kind {
		case KindString, KindText:
			s, _ := f[field.Name].(string)
			errs[field.Name] = validation.Validate(strings.TrimSpace(s),
				validation.Required.Error(field.Label+" is required"))
		default:
			if _, ok := f[field.Name]; !ok {
				errs[field.Name] = validation.NewError("content.required", field.Label+" is required")
			}
		}
	}
	return errs.Filter()
}

func (t *Type) describe(name string) (Kind, string, bool) {
	switch name {
	case ColPosition:
		return KindInt, "Position", false
	case ColIsActive:
		return KindBool, "Active", false
	}
	f, _ := t.Field(name)
	return f.Kind, f.Label, f.Required
}

// coerce returns nil for blank input.
func coerce(kind Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && kind != KindString && kind != KindText {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = s
	}

	switch kind {
	case KindString, KindText:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64, int, int64, bool:
			return fmt.Sprint(v), nil
		}
		return nil, fmt.Errorf("must be text")

	case KindInt:
		switch v := raw.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("must be a whole number")
			}
			return n, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("must be a whole number")
			}
			return int64(v), nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		}
		return nil, fmt.Errorf("must be a whole number")

	case KindFloat:
		switch v := raw.(type) {
		case string:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("must be a number")
			}
			return n, nil
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, fmt.Errorf("must be a number")

	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if v == "on" {
				return true, nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("must be true or false")
			}
			return b, nil
		}
		return nil, fmt.Errorf("must be true or false")
	}
	return nil, fmt.Errorf("has unsupported kind %q", kind)
}

// Zero is the value a NULL or missing field of the given kind takes.
func Zero(kind Kind) any {
	switch kind {
	case KindInt:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindBool:
		return false
	}
	return ""
}
