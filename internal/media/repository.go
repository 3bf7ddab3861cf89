package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/primal-host/primal-site/internal/database"
)

// Postgres stores media in the media_items table.
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a Postgres repository.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

const itemColumns = `id, filename, mime_type, size, alt_text, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Filename, &it.MimeType, &it.Size, &it.AltText, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (p *Postgres) Put(ctx context.Context, item Item, data []byte) (Item, error) {
	_, err := p.db.Pool.Exec(ctx,
		`INSERT INTO media_items (id, filename, mime_type, size, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID, item.Filename, item.MimeType, item.Size, data,
	)
	if err != nil {
		return Item{}, fmt.Errorf("media: insert: %w", err)
	}
	it, err := scanItem(p.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE id = $1`, item.ID))
	if err != nil {
		return Item{}, fmt.Errorf("media: reload %s: %w", item.ID, err)
	}
	return it, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Item, []byte, error) {
	var (
		it   Item
		data []byte
	)
	err := p.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+`, data FROM media_items WHERE id = $1`, id,
	).Scan(&it.ID, &it.Filename, &it.MimeType, &it.Size, &it.AltText, &it.CreatedAt, &it.UpdatedAt, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, nil, ErrNotFound
	}
	if err != nil {
		return Item{}, nil, fmt.Errorf("media: get %s: %w", id, err)
	}
	return it, data, nil
}

func (p *Postgres) List(ctx context.Context) ([]Item, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM media_items ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("media: list: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, fmt.Errorf("media: list: %w", err)
	}
	return items, nil
}

func (p *Postgres) SetAlt(ctx context.Context, id, alt string) (Item, error) {
	it, err := scanItem(p.db.Pool.QueryRow(ctx,
		`UPDATE media_items SET alt_text = $2, updated_at = NOW() WHERE id = $1
		 RETURNING `+itemColumns, id, alt))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("media: set alt %s: %w", id, err)
	}
	return it, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Pool.Exec(ctx, `DELETE FROM media_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("media: delete %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Memory is an in-process Repository.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Item
	data  map[string][]byte
	now   func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{items: map[string]Item{}, data: map[string][]byte{}, now: time.Now}
}

func (m *Memory) Put(_ context.Context, item Item, data []byte) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.items[item.ID]; ok {
		return existing, nil
	}
	item.CreatedAt = m.now().UTC()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = item
	m.data[item.ID] = append([]byte(nil), data...)
	return item, nil
}

func (m *Memory) Get(_ context.Context, id string) (Item, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return Item{}, nil, ErrNotFound
	}
	return it, append([]byte(nil), m.data[id]...), nil
}

func (m *Memory) List(context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (m *Memory) SetAlt(_ context.Context, id, alt string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	it.AltText = alt
	it.UpdatedAt = m.now().UTC()
	m.items[id] = it
	return it, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	delete(m.data, id)
	return nil
}
