// Package store persists content collections. Every operation is a single
// independent statement; there is no cross-call transaction discipline and
// concurrent writers to the same row race with last-write-wins semantics
// unless the caller supplies Patch.IfUpdatedAt.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/primal-host/primal-site/internal/content"
)

// Sentinel errors for store operations.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrConflict     = errors.New("store: row changed since it was loaded")
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Query narrows a Select. Ordering always comes from the type declaration.
type Query struct {
	// ActiveOnly restricts activatable types to is_active = true rows.
	ActiveOnly bool

	// Where holds equality filters keyed by column name.
	Where map[string]any

	// Limit caps the number of rows returned; 0 means no limit.
	Limit int
}

// Patch is a partial update. Fields may include the reserved position and
// is_active columns. updated_at is always refreshed by the store.
type Patch struct {
	Fields content.Fields

	// IfUpdatedAt, when non-zero, makes the update conditional on the row's
	// current updated_at. A mismatch yields ErrConflict.
	IfUpdatedAt time.Time
}

// Store is the record store surface consumed by the resolver, the editor
// engine, section settings and the submission sink.
type Store interface {
	Select(ctx context.Context, t *content.Type, q Query) ([]content.Item, error)
	Insert(ctx context.Context, t *content.Type, item content.Item) (content.Item, error)
	Update(ctx context.Context, t *content.Type, id string, p Patch) (content.Item, error)
	Delete(ctx context.Context, t *content.Type, id string) error

	// Upsert inserts item or, when a row with the same keyField value
	// exists, overwrites that row's fields.
	Upsert(ctx context.Context, t *content.Type, keyField string, item content.Item) (content.Item, error)
}
