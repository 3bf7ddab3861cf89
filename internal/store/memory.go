package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/primal-host/primal-site/internal/content"
)

// Memory is an in-process Store. Rows are kept per table in insertion
// order, so ties in the type's ordering resolve the same way Postgres
// resolves them through created_at.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]content.Item
	now    func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]content.Item),
		now:    time.Now,
	}
}

// WithClock replaces the timestamp source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Select(_ context.Context, t *content.Type, q Query) ([]content.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []content.Item{}
	for _, it := range m.tables[t.Table] {
		if q.ActiveOnly && t.Activatable && !it.IsActive {
			continue
		}
		if !matches(it, q.Where) {
			continue
		}
		out = append(out, it.Clone())
	}
	content.Sort(t, out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, t *content.Type, item content.Item) (content.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.KeyField != "" {
		if _, ok := m.indexByKey(t, item.Get(t.KeyField)); ok {
			return content.Item{}, fmt.Errorf("%w: insert %s: %s %q", ErrDuplicateKey, t.Table, t.KeyField, item.Get(t.KeyField))
		}
	}
	row := m.prepare(t, item)
	m.tables[t.Table] = append(m.tables[t.Table], row)
	return row.Clone(), nil
}

func (m *Memory) Update(_ context.Context, t *content.Type, id string, p Patch) (content.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[t.Table]
	for i := range rows {
		if rows[i].ID != id {
			continue
		}
		if !p.IfUpdatedAt.IsZero() && !rows[i].UpdatedAt.Equal(p.IfUpdatedAt) {
			return content.Item{}, fmt.Errorf("%w: %s %s", ErrConflict, t.Table, id)
		}
		if v, ok := p.Fields[t.KeyField]; ok && t.KeyField != "" {
			if j, taken := m.indexByKey(t, fmt.Sprint(v)); taken && j != i {
				return content.Item{}, fmt.Errorf("%w: update %s: %s %q", ErrDuplicateKey, t.Table, t.KeyField, v)
			}
		}
		if err := apply(t, &rows[i], p.Fields); err != nil {
			return content.Item{}, err
		}
		rows[i].UpdatedAt = m.stamp(rows[i].UpdatedAt)
		return rows[i].Clone(), nil
	}
	return content.Item{}, fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
}

func (m *Memory) Delete(_ context.Context, t *content.Type, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[t.Table]
	for i := range rows {
		if rows[i].ID == id {
			m.tables[t.Table] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
}

func (m *Memory) Upsert(_ context.Context, t *content.Type, keyField string, item content.Item) (content.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.indexByField(t, keyField, item.Get(keyField)); ok {
		row := &m.tables[t.Table][i]
		for k, v := range item.Fields {
			row.Fields[k] = v
		}
		row.UpdatedAt = m.stamp(row.UpdatedAt)
		return row.Clone(), nil
	}
	row := m.prepare(t, item)
	m.tables[t.Table] = append(m.tables[t.Table], row)
	return row.Clone(), nil
}

// prepare assigns an id and timestamps to a row about to be inserted.
// Callers hold m.mu.
func (m *Memory) prepare(t *content.Type, item content.Item) content.Item {
	row := item.Clone()
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Fields == nil {
		row.Fields = content.Fields{}
	}
	for _, f := range t.Fields {
		if _, ok := row.Fields[f.Name]; !ok {
			row.Fields[f.Name] = content.Zero(f.Kind)
		}
	}
	if !t.Activatable {
		row.IsActive = true
	}
	row.CreatedAt = m.stamp(m.lastCreated(t))
	row.UpdatedAt = row.CreatedAt
	return row
}

// stamp returns the current time, nudged past prev so timestamps within
// one table are strictly increasing even when the clock is coarse.
func (m *Memory) stamp(prev time.Time) time.Time {
	now := m.now().UTC()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (m *Memory) lastCreated(t *content.Type) time.Time {
	var last time.Time
	for _, it := range m.tables[t.Table] {
		if it.CreatedAt.After(last) {
			last = it.CreatedAt
		}
	}
	return last
}

func (m *Memory) indexByKey(t *content.Type, value string) (int, bool) {
	return m.indexByField(t, t.KeyField, value)
}

func (m *Memory) indexByField(t *content.Type, field, value string) (int, bool) {
	for i, it := range m.tables[t.Table] {
		if it.Get(field) == value {
			return i, true
		}
	}
	return 0, false
}

func matches(it content.Item, where map[string]any) bool {
	for col, want := range where {
		var got any
		switch col {
		case content.ColID:
			got = it.ID
		case content.ColIsActive:
			got = it.IsActive
		case content.ColPosition:
			got = it.Position
		default:
			got = it.Fields[col]
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func apply(t *content.Type, row *content.Item, fields content.Fields) error {
	for k, v := range fields {
		switch k {
		case content.ColPosition:
			n, ok := v.(int)
			if !ok {
				return fmt.Errorf("store: update %s: position must be int, got %T", t.Table, v)
			}
			row.Position = n
		case content.ColIsActive:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("store: update %s: is_active must be bool, got %T", t.Table, v)
			}
			row.IsActive = b
		default:
			if !t.Writable(k) {
				return fmt.Errorf("store: update %s: unknown column %q", t.Table, k)
			}
			row.Fields[k] = v
		}
	}
	return nil
}
