// Package settings holds the section visibility toggles. A section with no
// settings row is visible, and so is any section whose setting cannot be
// read.
package settings

import (
	"context"
	"fmt"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Sections that can be switched off from the admin console.
const (
	Team         = "team"
	Testimonials = "testimonials"
	Stats        = "stats"
)

// Known lists the toggleable sections in console order.
var Known = []string{Team, Testimonials, Stats}

// Setting is one section's visibility.
type Setting struct {
	SectionKey string `json:"sectionKey"`
	Visible    bool   `json:"visible"`
	Stored     bool   `json:"stored"`
}

// ChangeSink is told about every successful toggle.
type ChangeSink interface {
	Record(ctx context.Context, typeKey, action, id string)
}

// Settings reads and writes section visibility.
type Settings struct {
	store store.Store
	t     *content.Type
	sink  ChangeSink
	log   *zap.Logger
}

// New creates a Settings over the section_settings type in reg. sink may
// be nil.
func New(s store.Store, reg *content.Registry, sink ChangeSink, log *zap.Logger) *Settings {
	return &Settings{
		store: s,
		t:     reg.MustGet(content.TypeSectionSettings),
		sink:  sink,
		log:   log.Named("settings"),
	}
}

// Visible reports whether a section should render.
func (s *Settings) Visible(ctx context.Context, sectionKey string) bool {
	rows, err := s.store.Select(ctx, s.t, store.Query{
		Where: map[string]any{content.SectionKey: sectionKey},
		Limit: 1,
	})
	if err != nil {
		s.log.Warn("read visibility failed, showing section", zap.String("section", sectionKey), zap.Error(err))
		return true
	}
	if len(rows) == 0 {
		return true
	}
	return rows[0].Bool("is_visible")
}

// VisibleAll reads every setting in one query. Sections without a row,
// and every section when the read fails, map to true.
func (s *Settings) VisibleAll(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(Known))
	for _, k := range Known {
		out[k] = true
	}
	rows, err := s.store.Select(ctx, s.t, store.Query{})
	if err != nil {
		s.log.Warn("read visibility failed, showing all sections", zap.Error(err))
		return out
	}
	for _, it := range rows {
		out[it.Get(content.SectionKey)] = it.Bool("is_visible")
	}
	return out
}

// SetVisible upserts the setting for sectionKey.
func (s *Settings) SetVisible(ctx context.Context, sectionKey string, visible bool) (Setting, error) {
	if sectionKey == "" {
		return Setting{}, fmt.Errorf("settings: section key is required")
	}
	it, err := s.store.Upsert(ctx, s.t, content.SectionKey, content.Item{
		Fields: content.Fields{content.SectionKey: sectionKey, "is_visible": visible},
	})
	if err != nil {
		return Setting{}, fmt.Errorf("settings: set %s: %w", sectionKey, err)
	}
	if s.sink != nil {
		s.sink.Record(ctx, s.t.Key, "update", it.ID)
	}
	return Setting{SectionKey: sectionKey, Visible: it.Bool("is_visible"), Stored: true}, nil
}

// List returns the known sections plus any other stored keys. Unlike the
// public reads, a store failure here is returned to the caller.
func (s *Settings) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.store.Select(ctx, s.t, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("settings: list: %w", err)
	}
	stored := make(map[string]content.Item, len(rows))
	for _, it := range rows {
		stored[it.Get(content.SectionKey)] = it
	}

	out := make([]Setting, 0, len(Known)+len(rows))
	for _, k := range Known {
		st := Setting{SectionKey: k, Visible: true}
		if it, ok := stored[k]; ok {
			st.Visible, st.Stored = it.Bool("is_visible"), true
			delete(stored, k)
		}
		out = append(out, st)
	}
	for _, it := range rows {
		if _, extra := stored[it.Get(content.SectionKey)]; extra {
			out = append(out, Setting{SectionKey: it.Get(content.SectionKey), Visible: it.Bool("is_visible"), Stored: true})
		}
	}
	return out, nil
}
