// Package resolver turns store state plus compiled-in defaults into the
// content the public site renders.
//
// Resolution never fails. A store error or an empty active set yields the
// type's default collection unchanged; otherwise exactly the store rows
// are returned, with no merging of store rows and defaults. Deactivating
// every row of a type therefore brings the defaults back; hiding a section
// is done with a section setting instead.
package resolver

import (
	"context"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Source reports where a resolved collection came from.
type Source string

const (
	SourceStore    Source = "store"
	SourceDefaults Source = "defaults"
)

// Resolver reads public content collections.
type Resolver struct {
	store    store.Store
	reg      *content.Registry
	defaults content.Defaults
	log      *zap.Logger
}

// New creates a Resolver over the given store.
func New(s store.Store, reg *content.Registry, defaults content.Defaults, log *zap.Logger) *Resolver {
	return &Resolver{store: s, reg: reg, defaults: defaults, log: log.Named("resolver")}
}

// Resolve returns the active items of a type in display order. The result
// is non-empty for every public type.
func (r *Resolver) Resolve(ctx context.Context, key string) []content.Item {
	items, _ := r.ResolveSource(ctx, key)
	return items
}

// ResolveSource is Resolve that also reports whether the result came from
// the store or from the defaults.
func (r *Resolver) ResolveSource(ctx context.Context, key string) ([]content.Item, Source) {
	t, ok := r.reg.Get(key)
	if !ok || !t.Public {
		r.log.Warn("resolve unknown content type", zap.String("type", key))
		return []content.Item{}, SourceDefaults
	}

	q := store.Query{ActiveOnly: true}
	if t.Singleton {
		q.Limit = 1
	}
	items, err := r.store.Select(ctx, t, q)
	if err != nil {
		r.log.Warn("store read failed, using defaults", zap.String("type", key), zap.Error(err))
		return r.defaults.For(key), SourceDefaults
	}

	active := items[:0]
	for _, it := range items {
		if it.IsActive {
			active = append(active, it)
		}
	}
	if len(active) == 0 {
		r.log.Debug("no active rows, using defaults", zap.String("type", key))
		return r.defaults.For(key), SourceDefaults
	}
	content.Sort(t, active)
	return active, SourceStore
}

// Single resolves a singleton type and returns its one item.
func (r *Resolver) Single(ctx context.Context, key string) content.Item {
	items := r.Resolve(ctx, key)
	if len(items) == 0 {
		return content.Item{Fields: content.Fields{}}
	}
	return items[0]
}

// Heading returns the section heading for a section key. A store failure
// or a missing row falls back to the compiled-in heading; ok is false only
// when neither exists.
func (r *Resolver) Heading(ctx context.Context, sectionKey string) (content.Item, bool) {
	t := r.reg.MustGet(content.TypeSectionHeadings)
	rows, err := r.store.Select(ctx, t, store.Query{
		Where: map[string]any{t.KeyField: sectionKey},
		Limit: 1,
	})
	switch {
	case err != nil:
		r.log.Warn("heading read failed, using default", zap.String("section", sectionKey), zap.Error(err))
	case len(rows) > 0:
		return rows[0], true
	}
	return r.defaults.ByKey(t, sectionKey)
}

// Headings returns every resolved heading keyed by section key. A stored
// row replaces the default for its key; keys with no row keep the default.
func (r *Resolver) Headings(ctx context.Context) map[string]content.Item {
	t := r.reg.MustGet(content.TypeSectionHeadings)
	out := map[string]content.Item{}
	for _, it := range r.defaults.For(t.Key) {
		out[it.Get(t.KeyField)] = it
	}
	rows, err := r.store.Select(ctx, t, store.Query{})
	if err != nil {
		r.log.Warn("headings read failed, using defaults", zap.Error(err))
		return out
	}
	for _, it := range rows {
		out[it.Get(t.KeyField)] = it
	}
	return out
}
