package editor

import (
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// MenuEntry is one item of the admin console's left-hand menu.
type MenuEntry struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Singleton bool            `json:"singleton"`
	Fixed     bool            `json:"fixed"`
	Ordered   bool            `json:"ordered"`
	Fields    []content.Field `json:"fields"`
}

// Set holds one editor per public content type.
type Set struct {
	order   []string
	editors map[string]*Editor
}

// NewSet builds editors for every public type in reg. Section settings and
// form submissions have their own admin surfaces and are not included.
func NewSet(reg *content.Registry, s store.Store, sink ChangeSink, log *zap.Logger) *Set {
	set := &Set{editors: map[string]*Editor{}}
	for _, t := range reg.Public() {
		set.order = append(set.order, t.Key)
		set.editors[t.Key] = New(t, s, sink, log)
	}
	return set
}

// Get returns the editor for a type key.
func (s *Set) Get(key string) (*Editor, bool) {
	e, ok := s.editors[key]
	return e, ok
}

// Menu lists the editors in declaration order.
func (s *Set) Menu() []MenuEntry {
	out := make([]MenuEntry, 0, len(s.order))
	for _, key := range s.order {
		t := s.editors[key].t
		out = append(out, MenuEntry{
			Key:       t.Key,
			Label:     t.Label,
			Singleton: t.Singleton,
			Fixed:     t.Fixed,
			Ordered:   t.Ordered,
			Fields:    t.Fields,
		})
	}
	return out
}
