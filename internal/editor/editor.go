// Package editor is the admin CRUD engine shared by every content type.
//
// One Editor serves one type declaration. Every operation returns a View
// holding a fresh list read from the store after the mutation, an optional
// banner, and, when the form must stay open, the operator's input. Store and
// validation failures are reported in the View and as the returned error.
package editor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/store"
	"go.uber.org/zap"
)

// Sentinel errors for editor operations.
var (
	ErrNotAllowed = errors.New("editor: operation not allowed for this content type")
	ErrNotFound   = errors.New("editor: item not found")
)

// Change actions reported to the ChangeSink.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionReorder = "reorder"
)

// ChangeSink is told about every successful mutation.
type ChangeSink interface {
	Record(ctx context.Context, typeKey, action, id string)
}

// Editor is the admin surface for one content type.
type Editor struct {
	t     *content.Type
	store store.Store
	sink  ChangeSink
	log   *zap.Logger
	now   func() time.Time
	ttl   time.Duration
}

// Option configures an Editor.
type Option func(*Editor)

// WithNoticeTTL overrides NoticeTTL for this editor's banners.
func WithNoticeTTL(d time.Duration) Option {
	return func(e *Editor) { e.ttl = d }
}

// New creates an editor for t. sink may be nil.
func New(t *content.Type, s store.Store, sink ChangeSink, log *zap.Logger, opts ...Option) *Editor {
	e := &Editor{
		t:     t,
		store: s,
		sink:  sink,
		log:   log.Named("editor").With(zap.String("type", t.Key)),
		now:   time.Now,
		ttl:   NoticeTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Type returns the declaration this editor serves.
func (e *Editor) Type() *content.Type { return e.t }

// List returns every row, inactive ones included. Defaults are never
// shown here; a failed read yields an empty list and an error banner.
func (e *Editor) List(ctx context.Context) (View, error) {
	items, err := e.store.Select(ctx, e.t, store.Query{})
	if err != nil {
		e.log.Info("list failed", zap.Error(err))
		v := e.view(nil)
		v.Notice = e.notice(NoticeError, fmt.Sprintf("Failed to load %s: %v", e.t.Label, err))
		return v, fmt.Errorf("editor: list %s: %w", e.t.Key, err)
	}
	return e.view(items), nil
}

// Create validates input and inserts a new active row at the end of the
// collection.
func (e *Editor) Create(ctx context.Context, input map[string]any) (View, error) {
	form := &Form{Mode: FormCreate, Values: input}
	if e.t.Fixed {
		return e.refuse(ctx, form, "Items of this section cannot be added")
	}

	fields, err := e.t.Coerce(input)
	if err == nil {
		e.fill(fields)
		err = e.t.Validate(fields)
	}
	if err != nil {
		return e.invalid(ctx, form, err)
	}

	var existing []content.Item
	if e.t.Ordered || e.t.Singleton {
		existing, err = e.store.Select(ctx, e.t, store.Query{})
		if err != nil {
			return e.failed(ctx, form, "Error creating item", err)
		}
	}
	if e.t.Singleton && len(existing) > 0 {
		return e.refuse(ctx, form, e.t.Label+" already exists; edit it instead")
	}

	item := content.Item{Fields: fields, IsActive: true}
	delete(item.Fields, content.ColPosition)
	delete(item.Fields, content.ColIsActive)
	if e.t.Ordered {
		item.Position = nextPosition(existing)
	}

	created, err := e.store.Insert(ctx, e.t, item)
	if err != nil {
		return e.failed(ctx, form, "Error creating item", err)
	}
	e.record(ctx, ActionCreate, created.ID)
	return e.done(ctx, "Item created successfully")
}

// Update validates input against the current row and writes only the
// fields that changed. A non-zero ifUpdatedAt makes the write conditional
// on the row not having changed since the operator loaded it.
func (e *Editor) Update(ctx context.Context, id string, input map[string]any, ifUpdatedAt time.Time) (View, error) {
	form := &Form{Mode: FormEdit, ID: id, Values: input}

	current, err := e.get(ctx, id)
	if err != nil {
		return e.failed(ctx, form, "Error updating item", err)
	}

	fields, err := e.t.Coerce(input)
	if err == nil {
		err = e.keyUnchanged(current, fields)
	}
	if err == nil {
		merged := current.Values(e.t)
		for k, v := range fields {
			merged[k] = v
		}
		err = e.t.Validate(merged)
	}
	if err != nil {
		return e.invalid(ctx, form, err)
	}

	changed := content.Fields{}
	was := current.Values(e.t)
	for k, v := range fields {
		if !reflect.DeepEqual(was[k], v) {
			changed[k] = v
		}
	}

	if _, err := e.store.Update(ctx, e.t, id, store.Patch{Fields: changed, IfUpdatedAt: ifUpdatedAt}); err != nil {
		return e.failed(ctx, form, "Error updating item", err)
	}
	e.record(ctx, ActionUpdate, id)
	return e.done(ctx, "Item updated successfully")
}

// Save writes a singleton: the existing row is updated, or the row is
// created when the collection is still empty.
func (e *Editor) Save(ctx context.Context, input map[string]any, ifUpdatedAt time.Time) (View, error) {
	if !e.t.Singleton {
		return e.refuse(ctx, &Form{Mode: FormEdit, Values: input}, "Save applies to single-entry sections only")
	}
	rows, err := e.store.Select(ctx, e.t, store.Query{Limit: 1})
	if err != nil {
		return e.failed(ctx, &Form{Mode: FormEdit, Values: input}, "Error saving", err)
	}
	if len(rows) == 0 {
		return e.Create(ctx, input)
	}
	return e.Update(ctx, rows[0].ID, input, ifUpdatedAt)
}

// Delete removes a row. Without confirmed it only returns a confirmation
// request and touches nothing.
func (e *Editor) Delete(ctx context.Context, id string, confirmed bool) (View, error) {
	if e.t.Fixed {
		return e.refuse(ctx, nil, "Items of this section cannot be deleted")
	}
	if !confirmed {
		v := e.view(nil)
		v.Confirm = &Confirmation{ID: id, Prompt: "Are you sure you want to delete this item?"}
		return v, nil
	}
	if err := e.store.Delete(ctx, e.t, id); err != nil {
		return e.failed(ctx, nil, "Error deleting item", err)
	}
	e.record(ctx, ActionDelete, id)
	return e.done(ctx, "Item deleted successfully")
}

// ToggleActive flips is_active without opening the form.
func (e *Editor) ToggleActive(ctx context.Context, id string) (View, error) {
	if !e.t.Activatable {
		return e.refuse(ctx, nil, e.t.Label+" items cannot be hidden")
	}
	current, err := e.get(ctx, id)
	if err != nil {
		return e.failed(ctx, nil, "Error updating item", err)
	}
	patch := store.Patch{Fields: content.Fields{content.ColIsActive: !current.IsActive}}
	if _, err := e.store.Update(ctx, e.t, id, patch); err != nil {
		return e.failed(ctx, nil, "Error updating item", err)
	}
	e.record(ctx, ActionUpdate, id)
	if current.IsActive {
		return e.done(ctx, "Item hidden")
	}
	return e.done(ctx, "Item shown")
}

// Reorder assigns positions 1..n following ids, which must name exactly
// the current rows. Rows already in place are not written.
func (e *Editor) Reorder(ctx context.Context, ids []string) (View, error) {
	if !e.t.Ordered {
		return e.refuse(ctx, nil, e.t.Label+" cannot be reordered")
	}
	rows, err := e.store.Select(ctx, e.t, store.Query{})
	if err != nil {
		return e.failed(ctx, nil, "Error reordering items", err)
	}

	byID := make(map[string]content.Item, len(rows))
	for _, it := range rows {
		byID[it.ID] = it
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := byID[id]; !ok || seen[id] {
			return e.refuse(ctx, nil, "The list changed; reload and try again")
		}
		seen[id] = true
	}
	if len(ids) != len(rows) {
		return e.refuse(ctx, nil, "The list changed; reload and try again")
	}

	for n, id := range ids {
		if byID[id].Position == n+1 {
			continue
		}
		patch := store.Patch{Fields: content.Fields{content.ColPosition: n + 1}}
		if _, err := e.store.Update(ctx, e.t, id, patch); err != nil {
			return e.failed(ctx, nil, "Error reordering items", err)
		}
	}
	e.record(ctx, ActionReorder, "")
	return e.done(ctx, "Order saved")
}

func (e *Editor) get(ctx context.Context, id string) (content.Item, error) {
	rows, err := e.store.Select(ctx, e.t, store.Query{Where: map[string]any{content.ColID: id}, Limit: 1})
	if err != nil {
		return content.Item{}, err
	}
	if len(rows) == 0 {
		return content.Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rows[0], nil
}

// fill zero-fills fields the form left out so validation sees them.
func (e *Editor) fill(f content.Fields) {
	for _, field := range e.t.Fields {
		if _, ok := f[field.Name]; ok {
			continue
		}
		if field.Kind == content.KindString || field.Kind == content.KindText {
			f[field.Name] = ""
		}
	}
}

func (e *Editor) record(ctx context.Context, action, id string) {
	if e.sink != nil {
		e.sink.Record(ctx, e.t.Key, action, id)
	}
}

// done refetches after a successful mutation.
func (e *Editor) done(ctx context.Context, msg string) (View, error) {
	v, err := e.List(ctx)
	if err != nil {
		return v, nil
	}
	v.Notice = e.notice(NoticeSuccess, msg)
	return v, nil
}

// failed reports a store failure, keeping form open when there is one.
func (e *Editor) failed(ctx context.Context, form *Form, what string, cause error) (View, error) {
	e.log.Info(what, zap.Error(cause))
	v, _ := e.List(ctx)

	text := fmt.Sprintf("%s: %v", what, cause)
	switch {
	case errors.Is(cause, store.ErrConflict):
		text = "This item was changed in another session. Reload it and try again."
	case errors.Is(cause, store.ErrDuplicateKey):
		text = "Another item already uses this " + strings.ToLower(e.keyLabel()) + "."
	case errors.Is(cause, store.ErrNotFound), errors.Is(cause, ErrNotFound):
		text = "This item no longer exists."
	}
	v.Notice = e.notice(NoticeError, text)
	v.Form = form
	return v, fmt.Errorf("editor: %s: %w", e.t.Key, cause)
}

// keyUnchanged rejects edits to a keyed type's key column. Rows of such
// types are addressed by key, so the key is fixed once the row exists.
func (e *Editor) keyUnchanged(current content.Item, fields content.Fields) error {
	if e.t.KeyField == "" {
		return nil
	}
	v, ok := fields[e.t.KeyField]
	if !ok || v == current.Get(e.t.KeyField) {
		return nil
	}
	return validation.Errors{e.t.KeyField: errors.New(e.keyLabel() + " cannot be changed")}
}

func (e *Editor) keyLabel() string {
	if f, ok := e.t.Field(e.t.KeyField); ok {
		return f.Label
	}
	return e.t.KeyField
}

func (e *Editor) invalid(ctx context.Context, form *Form, err error) (View, error) {
	v, _ := e.List(ctx)
	form.Errors = fieldErrors(err)
	v.Form = form
	v.Notice = e.notice(NoticeError, summary(form.Errors))
	return v, err
}

func (e *Editor) refuse(ctx context.Context, form *Form, msg string) (View, error) {
	v, _ := e.List(ctx)
	v.Notice = e.notice(NoticeError, msg)
	v.Form = form
	return v, fmt.Errorf("%w: %s", ErrNotAllowed, msg)
}

func nextPosition(items []content.Item) int {
	top := 0
	for _, it := range items {
		if it.Position > top {
			top = it.Position
		}
	}
	return top + 1
}
