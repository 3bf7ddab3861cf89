package content

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults maps a type key to its compiled-in default collection.
type Defaults map[string][]Item

// For returns a copy of the default collection for a type key.
func (d Defaults) For(key string) []Item {
	src := d[key]
	out := make([]Item, len(src))
	for i, it := range src {
		out[i] = it.Clone()
	}
	return out
}

// ByKey returns the default row whose key field equals value.
func (d Defaults) ByKey(t *Type, value string) (Item, bool) {
	for _, it := range d[t.Key] {
		if it.Get(t.KeyField) == value {
			return it.Clone(), true
		}
	}
	return Item{}, false
}

var (
	builtinDefaultsOnce sync.Once
	builtinDefaults     Defaults
)

// BuiltinDefaults returns the defaults embedded in the binary, parsed
// against the builtin registry. The embedded file is part of the build,
// so a parse failure is a programming error and panics.
func BuiltinDefaults() Defaults {
	builtinDefaultsOnce.Do(func() {
		d, err := LoadDefaults(Builtin(), defaultsYAML)
		if err != nil {
			panic(err)
		}
		builtinDefaults = d
	})
	return builtinDefaults
}

// LoadDefaults parses a YAML document of the form
//
//	<type key>:
//	  - {field: value, ...}
//
// into typed default items. Every public type in reg must have at least
// one entry and every entry must pass the type's validation.
func LoadDefaults(reg *Registry, data []byte) (Defaults, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("content: parse defaults: %w", err)
	}

	out := make(Defaults, len(raw))
	for key, entries := range raw {
		t, ok := reg.Get(key)
		if !ok {
			return nil, fmt.Errorf("content: defaults for unknown type %q", key)
		}
		items := make([]Item, 0, len(entries))
		for n, entry := range entries {
			fields, err := t.Coerce(entry)
			if err != nil {
				return nil, fmt.Errorf("content: defaults %s[%d]: %w", key, n, err)
			}
			for _, f := range t.Fields {
				if _, ok := fields[f.Name]; !ok {
					fields[f.Name] = Zero(f.Kind)
				}
			}
			if err := t.Validate(fields); err != nil {
				return nil, fmt.Errorf("content: defaults %s[%d]: %w", key, n, err)
			}
			delete(fields, ColPosition)
			delete(fields, ColIsActive)
			items = append(items, Item{
				ID:       fmt.Sprintf("default:%s:%d", key, n+1),
				Fields:   fields,
				Position: n + 1,
				IsActive: true,
			})
		}
		out[key] = items
	}

	for _, t := range reg.Public() {
		if len(out[t.Key]) == 0 {
			return nil, fmt.Errorf("content: public type %q has no defaults", t.Key)
		}
	}
	return out, nil
}
