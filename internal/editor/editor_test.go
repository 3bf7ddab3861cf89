package editor

import (
	"context"
	"sync"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"github.com/primal-host/primal-site/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var reg = content.Builtin()

type recorded struct{ typ, action, id string }

type sinkSpy struct {
	mu      sync.Mutex
	changes []recorded
}

func (s *sinkSpy) Record(_ context.Context, typ, action, id string) {
	s.mu.Lock()
	s.changes = append(s.changes, recorded{typ, action, id})
	s.mu.Unlock()
}

type patchSpy struct {
	store.Store
	patches []store.Patch
}

func (p *patchSpy) Update(ctx context.Context, t *content.Type, id string, patch store.Patch) (content.Item, error) {
	p.patches = append(p.patches, patch)
	return p.Store.Update(ctx, t, id, patch)
}

var clock = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newEditor(t *testing.T, key string, s store.Store, sink ChangeSink) *Editor {
	e := New(reg.MustGet(key), s, sink, zaptest.NewLogger(t))
	e.now = func() time.Time { return clock }
	return e
}

func labels(items []content.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Get("label")
	}
	return out
}

func TestCreateOnEmptyAssignsPositionOne(t *testing.T) {
	e := newEditor(t, content.TypeNavigation, store.NewMemory(), nil)
	v, err := e.Create(context.Background(), map[string]any{"label": "Home", "href": "/"})
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 1, v.Items[0].Position)
	assert.True(t, v.Items[0].IsActive)
	require.NotNil(t, v.Notice)
	assert.Equal(t, NoticeSuccess, v.Notice.Kind)
	assert.Equal(t, clock.Add(3*time.Second), v.Notice.ExpiresAt)
	assert.Nil(t, v.Form)
}

func TestCreateAppendsAfterMaxPosition(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	nav := reg.MustGet(content.TypeNavigation)
	storetest.Seed(m, nav,
		content.Fields{"label": "Home", "href": "/"},
		content.Fields{"label": "About", "href": "/about"},
	)
	sink := &sinkSpy{}
	e := newEditor(t, content.TypeNavigation, m, sink)

	v, err := e.Create(ctx, map[string]any{"label": "Pricing", "href": "/pricing", "position": "1", "is_active": false})
	require.NoError(t, err)
	require.Len(t, v.Items, 3)
	assert.Equal(t, "Pricing", v.Items[2].Get("label"))
	assert.Equal(t, 3, v.Items[2].Position)
	assert.True(t, v.Items[2].IsActive)

	require.Len(t, sink.changes, 1)
	assert.Equal(t, recorded{content.TypeNavigation, ActionCreate, v.Items[2].ID}, sink.changes[0])
}

func TestCreateValidationKeepsFormAndSkipsStore(t *testing.T) {
	s := storetest.NewScripted(nil)
	e := newEditor(t, content.TypeNavigation, s, nil)

	input := map[string]any{"label": "  ", "href": "/pricing"}
	v, err := e.Create(context.Background(), input)

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Zero(t, s.Calls(storetest.OpInsert))
	require.NotNil(t, v.Form)
	assert.Equal(t, FormCreate, v.Form.Mode)
	assert.Equal(t, input, v.Form.Values)
	assert.Equal(t, map[string]string{"label": "Label is required"}, v.Form.Errors)
	assert.Equal(t, NoticeError, v.Notice.Kind)
	assert.Equal(t, "Label is required", v.Notice.Text)
}

func TestCreateNumericValidation(t *testing.T) {
	e := newEditor(t, content.TypeStats, store.NewMemory(), nil)
	v, err := e.Create(context.Background(), map[string]any{"label": "Clients", "value": "many"})
	require.Error(t, err)
	assert.Equal(t, "Value must be a number", v.Form.Errors["value"])

	v, err = e.Create(context.Background(), map[string]any{"label": "Clients"})
	require.Error(t, err)
	assert.Equal(t, "Value is required", v.Form.Errors["value"])
}

func TestCreateStoreFailureKeepsInput(t *testing.T) {
	s := storetest.NewScripted(nil).FailOn(storetest.OpInsert, nil)
	e := newEditor(t, content.TypeTeam, s, nil)

	input := map[string]any{"name": "Ann", "title": "Engineer"}
	v, err := e.Create(context.Background(), input)
	require.ErrorIs(t, err, storetest.ErrUnreachable)
	require.NotNil(t, v.Form)
	assert.Equal(t, input, v.Form.Values)
	assert.Contains(t, v.Notice.Text, "Error creating item")
}

func TestUpdateSendsOnlyChangedFields(t *testing.T) {
	ctx := context.Background()
	spy := &patchSpy{Store: store.NewMemory()}
	nav := reg.MustGet(content.TypeNavigation)
	rows := storetest.Seed(spy, nav, content.Fields{"label": "Home", "href": "/"})

	e := newEditor(t, content.TypeNavigation, spy, nil)
	v, err := e.Update(ctx, rows[0].ID, map[string]any{"label": "Start", "href": "/", "position": 1}, time.Time{})
	require.NoError(t, err)
	require.Len(t, spy.patches, 1)
	assert.Equal(t, content.Fields{"label": "Start"}, spy.patches[0].Fields)
	assert.Nil(t, v.Form)
	assert.Equal(t, "Start", v.Items[0].Get("label"))
	assert.True(t, v.Items[0].UpdatedAt.After(rows[0].UpdatedAt))
}

func TestUpdateValidatesAgainstCurrentRow(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rows := storetest.Seed(m, reg.MustGet(content.TypeNavigation), content.Fields{"label": "Home", "href": "/"})
	e := newEditor(t, content.TypeNavigation, m, nil)

	_, err := e.Update(ctx, rows[0].ID, map[string]any{"href": "/home"}, time.Time{})
	require.NoError(t, err, "omitted required fields keep their stored value")

	v, err := e.Update(ctx, rows[0].ID, map[string]any{"label": ""}, time.Time{})
	require.Error(t, err)
	assert.Equal(t, FormEdit, v.Form.Mode)
	assert.Equal(t, rows[0].ID, v.Form.ID)
	assert.Equal(t, "Label is required", v.Form.Errors["label"])
}

func TestUpdateConflict(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rows := storetest.Seed(m, reg.MustGet(content.TypeNavigation), content.Fields{"label": "Home", "href": "/"})
	e := newEditor(t, content.TypeNavigation, m, nil)

	_, err := e.Update(ctx, rows[0].ID, map[string]any{"label": "First"}, rows[0].UpdatedAt)
	require.NoError(t, err)

	v, err := e.Update(ctx, rows[0].ID, map[string]any{"label": "Second"}, rows[0].UpdatedAt)
	require.ErrorIs(t, err, store.ErrConflict)
	require.NotNil(t, v.Form)
	assert.Equal(t, "Second", v.Form.Values["label"])
	assert.Contains(t, v.Notice.Text, "changed in another session")
	assert.Equal(t, "First", v.Items[0].Get("label"))
}

func TestUpdateMissingRow(t *testing.T) {
	e := newEditor(t, content.TypeNavigation, store.NewMemory(), nil)
	v, err := e.Update(context.Background(), "nope", map[string]any{"label": "x"}, time.Time{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "This item no longer exists.", v.Notice.Text)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewScripted(nil)
	team := reg.MustGet(content.TypeTeam)
	rows := storetest.Seed(s, team, content.Fields{"name": "A", "title": "x"}, content.Fields{"name": "B", "title": "y"})
	e := newEditor(t, content.TypeTeam, s, nil)

	v, err := e.Delete(ctx, rows[0].ID, false)
	require.NoError(t, err)
	require.NotNil(t, v.Confirm)
	assert.Equal(t, rows[0].ID, v.Confirm.ID)
	assert.Zero(t, s.Calls(storetest.OpDelete))
	assert.Zero(t, s.Calls(storetest.OpSelect))

	v, err = e.Delete(ctx, rows[0].ID, true)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, rows[1].ID, v.Items[0].ID)
	assert.Equal(t, 1, s.Calls(storetest.OpDelete))

	_, err = e.Delete(ctx, rows[0].ID, true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleActive(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rows := storetest.Seed(m, reg.MustGet(content.TypeNavigation), content.Fields{"label": "Home", "href": "/"})
	e := newEditor(t, content.TypeNavigation, m, nil)

	v, err := e.ToggleActive(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.False(t, v.Items[0].IsActive)
	assert.Equal(t, "Item hidden", v.Notice.Text)

	v, err = e.ToggleActive(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.True(t, v.Items[0].IsActive)

	_, err = newEditor(t, content.TypeHero, m, nil).ToggleActive(ctx, "x")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	spy := &patchSpy{Store: store.NewMemory()}
	nav := reg.MustGet(content.TypeNavigation)
	rows := storetest.Seed(spy, nav,
		content.Fields{"label": "A", "href": "/a"},
		content.Fields{"label": "B", "href": "/b"},
		content.Fields{"label": "C", "href": "/c"},
	)
	e := newEditor(t, content.TypeNavigation, spy, nil)

	v, err := e.Reorder(ctx, []string{rows[2].ID, rows[1].ID, rows[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, labels(v.Items))
	assert.Len(t, spy.patches, 2, "B keeps position 2 and is not written")

	_, err = e.Reorder(ctx, []string{rows[0].ID, rows[1].ID})
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = e.Reorder(ctx, []string{rows[0].ID, rows[0].ID, rows[1].ID})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestFixedHeadingsCannotBeCreatedOrDeleted(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	rows := storetest.Seed(m, reg.MustGet(content.TypeSectionHeadings),
		content.Fields{content.SectionKey: "services", "title": "Services"})
	s := storetest.NewScripted(m)
	e := newEditor(t, content.TypeSectionHeadings, s, nil)

	_, err := e.Create(ctx, map[string]any{content.SectionKey: "new", "title": "New"})
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = e.Delete(ctx, rows[0].ID, true)
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Zero(t, s.Calls(storetest.OpInsert))
	assert.Zero(t, s.Calls(storetest.OpDelete))

	v, err := e.Update(ctx, rows[0].ID, map[string]any{"title": "What We Do"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "What We Do", v.Items[0].Get("title"))
}

func TestHeadingSectionKeyCannotBeRenamed(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	headings := reg.MustGet(content.TypeSectionHeadings)
	rows := storetest.Seed(m, headings,
		content.Fields{content.SectionKey: "services", "title": "Services"},
		content.Fields{content.SectionKey: "cybersecurity", "title": "Security"},
	)
	spy := &patchSpy{Store: m}
	e := newEditor(t, content.TypeSectionHeadings, spy, nil)

	v, err := e.Update(ctx, rows[0].ID, map[string]any{content.SectionKey: "cybersecurity"}, time.Time{})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, v.Form.Errors, content.SectionKey)
	assert.Empty(t, spy.patches)

	keyed, err := m.Select(ctx, headings, store.Query{Where: map[string]any{content.SectionKey: "cybersecurity"}})
	require.NoError(t, err)
	assert.Len(t, keyed, 1)

	_, err = e.Update(ctx, rows[0].ID, map[string]any{content.SectionKey: "services", "title": "What We Do"}, time.Time{})
	require.NoError(t, err, "resending the unchanged key is fine")
	require.Len(t, spy.patches, 1)
	assert.Equal(t, content.Fields{"title": "What We Do"}, spy.patches[0].Fields)
}

func TestSingletonSave(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	e := newEditor(t, content.TypeHero, m, nil)

	v, err := e.Save(ctx, map[string]any{"headline": "Hello"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	first := v.Items[0]

	v, err = e.Save(ctx, map[string]any{"headline": "Hello again", "cta_text": "Go"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, first.ID, v.Items[0].ID)
	assert.Equal(t, "Hello again", v.Items[0].Get("headline"))

	_, err = e.Create(ctx, map[string]any{"headline": "Second"})
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = newEditor(t, content.TypeNavigation, m, nil).Save(ctx, map[string]any{}, time.Time{})
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestListFailureShowsBanner(t *testing.T) {
	e := newEditor(t, content.TypeNavigation, storetest.Failing{}, nil)
	v, err := e.List(context.Background())
	require.Error(t, err)
	assert.Empty(t, v.Items)
	assert.Equal(t, NoticeError, v.Notice.Kind)
	assert.Contains(t, v.Notice.Text, "Failed to load Navigation Menu")
}

func TestListIncludesInactive(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	nav := reg.MustGet(content.TypeNavigation)
	_, err := m.Insert(ctx, nav, content.Item{Fields: content.Fields{"label": "Off", "href": "/"}, Position: 1, IsActive: false})
	require.NoError(t, err)

	v, err := newEditor(t, content.TypeNavigation, m, nil).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Off"}, labels(v.Items))
}

func TestMenu(t *testing.T) {
	set := NewSet(reg, store.NewMemory(), nil, zaptest.NewLogger(t))
	menu := set.Menu()
	require.NotEmpty(t, menu)
	assert.Equal(t, content.TypeNavigation, menu[0].Key)
	for _, m := range menu {
		assert.NotEqual(t, content.TypeSectionSettings, m.Key)
		assert.NotEqual(t, content.TypeFormSubmissions, m.Key)
	}
	_, ok := set.Get(content.TypeHero)
	assert.True(t, ok)
	_, ok = set.Get(content.TypeFormSubmissions)
	assert.False(t, ok)
}
