package store

import (
	"context"
	"testing"
	"time"

	"github.com/primal-host/primal-site/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reg = content.Builtin()

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestMemoryInsertAssignsIDAndTimestamps(t *testing.T) {
	m := NewMemory().WithClock(fixedClock())
	nav := reg.MustGet(content.TypeNavigation)

	a, err := m.Insert(context.Background(), nav, content.Item{Fields: content.Fields{"label": "Home", "href": "/"}, Position: 1, IsActive: true})
	require.NoError(t, err)
	b, err := m.Insert(context.Background(), nav, content.Item{Fields: content.Fields{"label": "About"}, Position: 1, IsActive: true})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, b.CreatedAt.After(a.CreatedAt), "created_at must be strictly increasing")
	assert.Equal(t, "", b.Get("href"), "missing fields are zero filled")
}

func TestMemorySelectOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	nav := reg.MustGet(content.TypeNavigation)

	for _, it := range []content.Item{
		{Fields: content.Fields{"label": "C"}, Position: 3, IsActive: true},
		{Fields: content.Fields{"label": "A"}, Position: 1, IsActive: true},
		{Fields: content.Fields{"label": "Hidden"}, Position: 2, IsActive: false},
		{Fields: content.Fields{"label": "A2"}, Position: 1, IsActive: true},
	} {
		_, err := m.Insert(ctx, nav, it)
		require.NoError(t, err)
	}

	all, err := m.Select(ctx, nav, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A2", "Hidden", "C"}, labels(all))

	active, err := m.Select(ctx, nav, Query{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A2", "C"}, labels(active))

	one, err := m.Select(ctx, nav, Query{Where: map[string]any{"label": "C"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, labels(one))

	limited, err := m.Select(ctx, nav, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemorySelectReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	nav := reg.MustGet(content.TypeNavigation)
	_, err := m.Insert(ctx, nav, content.Item{Fields: content.Fields{"label": "Home"}, IsActive: true})
	require.NoError(t, err)

	got, _ := m.Select(ctx, nav, Query{})
	got[0].Fields["label"] = "mutated"

	again, _ := m.Select(ctx, nav, Query{})
	assert.Equal(t, "Home", again[0].Get("label"))
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	nav := reg.MustGet(content.TypeNavigation)
	it, err := m.Insert(ctx, nav, content.Item{Fields: content.Fields{"label": "Home", "href": "/"}, Position: 1, IsActive: true})
	require.NoError(t, err)

	up, err := m.Update(ctx, nav, it.ID, Patch{Fields: content.Fields{"label": "Start", content.ColIsActive: false, content.ColPosition: 4}})
	require.NoError(t, err)
	assert.Equal(t, "Start", up.Get("label"))
	assert.Equal(t, "/", up.Get("href"))
	assert.False(t, up.IsActive)
	assert.Equal(t, 4, up.Position)
	assert.True(t, up.UpdatedAt.After(it.UpdatedAt))

	_, err = m.Update(ctx, nav, "missing", Patch{Fields: content.Fields{"label": "x"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Update(ctx, nav, it.ID, Patch{Fields: content.Fields{"bogus": "x"}})
	assert.ErrorContains(t, err, "unknown column")
}

func TestMemoryUpdateConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	nav := reg.MustGet(content.TypeNavigation)
	it, err := m.Insert(ctx, nav, content.Item{Fields: content.Fields{"label": "Home"}, IsActive: true})
	require.NoError(t, err)

	first, err := m.Update(ctx, nav, it.ID, Patch{Fields: content.Fields{"label": "One"}, IfUpdatedAt: it.UpdatedAt})
	require.NoError(t, err)

	_, err = m.Update(ctx, nav, it.ID, Patch{Fields: content.Fields{"label": "Two"}, IfUpdatedAt: it.UpdatedAt})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = m.Update(ctx, nav, it.ID, Patch{Fields: content.Fields{"label": "Two"}, IfUpdatedAt: first.UpdatedAt})
	assert.NoError(t, err)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	team := reg.MustGet(content.TypeTeam)
	a, _ := m.Insert(ctx, team, content.Item{Fields: content.Fields{"name": "A"}, IsActive: true})
	b, _ := m.Insert(ctx, team, content.Item{Fields: content.Fields{"name": "B"}, IsActive: true})

	require.NoError(t, m.Delete(ctx, team, a.ID))
	rest, _ := m.Select(ctx, team, Query{})
	require.Len(t, rest, 1)
	assert.Equal(t, b.ID, rest[0].ID)

	assert.ErrorIs(t, m.Delete(ctx, team, a.ID), ErrNotFound)
}

func TestMemoryUpsertByKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	settings := reg.MustGet(content.TypeSectionSettings)

	first, err := m.Upsert(ctx, settings, content.SectionKey, content.Item{Fields: content.Fields{content.SectionKey: "team", "is_visible": false}})
	require.NoError(t, err)
	second, err := m.Upsert(ctx, settings, content.SectionKey, content.Item{Fields: content.Fields{content.SectionKey: "team", "is_visible": true}})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	rows, _ := m.Select(ctx, settings, Query{})
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Bool("is_visible"))
}

func TestMemoryInsertRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	headings := reg.MustGet(content.TypeSectionHeadings)
	_, err := m.Insert(ctx, headings, content.Item{Fields: content.Fields{content.SectionKey: "services", "title": "A"}})
	require.NoError(t, err)
	_, err = m.Insert(ctx, headings, content.Item{Fields: content.Fields{content.SectionKey: "services", "title": "B"}})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryUpdateRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	headings := reg.MustGet(content.TypeSectionHeadings)
	a, err := m.Insert(ctx, headings, content.Item{Fields: content.Fields{content.SectionKey: "services", "title": "A"}})
	require.NoError(t, err)
	_, err = m.Insert(ctx, headings, content.Item{Fields: content.Fields{content.SectionKey: "stats", "title": "B"}})
	require.NoError(t, err)

	_, err = m.Update(ctx, headings, a.ID, Patch{Fields: content.Fields{content.SectionKey: "stats"}})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = m.Update(ctx, headings, a.ID, Patch{Fields: content.Fields{content.SectionKey: "services", "title": "C"}})
	assert.NoError(t, err, "keeping its own key is allowed")
}

func TestSQLFragments(t *testing.T) {
	links := reg.MustGet(content.TypeFooterLinks)
	assert.Equal(t, `"section", "position", "created_at"`, orderBy(links))
	assert.Equal(t,
		`id::text AS id, "section", "label", "href", "position", "is_active", "created_at", "updated_at"`,
		selectList(links))
	assert.Equal(t, "$1, $2, $3", placeholders(3))

	subs := reg.MustGet(content.TypeFormSubmissions)
	assert.Equal(t, `"created_at" DESC`, orderBy(subs))
}

func TestInsertColumnsFillsZeroValues(t *testing.T) {
	stats := reg.MustGet(content.TypeStats)
	cols, args := insertColumns(stats, content.Item{Fields: content.Fields{"label": "Uptime"}, Position: 2, IsActive: true})
	assert.Equal(t, []string{"id", "label", "value", "suffix", "decimals", "position", "is_active"}, cols)
	assert.Len(t, args, len(cols))
	assert.Equal(t, float64(0), args[2])
	assert.Equal(t, int64(0), args[4])
	assert.Equal(t, 2, args[5])
}

func labels(items []content.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Get("label")
	}
	return out
}
