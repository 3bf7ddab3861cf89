package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Persister stores changes in the content_changes table.
type Persister struct {
	pool *pgxpool.Pool
}

// NewPersister creates a Persister backed by the site DB pool.
func NewPersister(pool *pgxpool.Pool) *Persister {
	return &Persister{pool: pool}
}

// Append inserts a change and returns the assigned sequence number. The
// BIGSERIAL column provides monotonic ordering.
func (p *Persister) Append(ctx context.Context, c Change) (int64, error) {
	var seq int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO content_changes (content_type, action, item_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING seq`,
		c.Type, c.Action, c.ID, c.At,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("persist: insert change: %w", err)
	}
	return seq, nil
}

// Since reads changes with seq > since. Used for cursor-based replay on
// WebSocket connect and for the changes endpoint.
func (p *Persister) Since(ctx context.Context, since int64, limit int) ([]Change, error) {
	sql := `SELECT seq, content_type, action, item_id, created_at FROM content_changes
		 WHERE seq > $1 ORDER BY seq ASC`
	args := []any{since}
	if limit > 0 {
		sql += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("replay: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Change, error) {
		var c Change
		err := row.Scan(&c.Seq, &c.Type, &c.Action, &c.ID, &c.At)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("replay: scan: %w", err)
	}
	return out, nil
}

// MemoryLog is an in-process Log.
type MemoryLog struct {
	mu      sync.Mutex
	changes []Change
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, c Change) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.Seq = int64(len(l.changes) + 1)
	l.changes = append(l.changes, c)
	return c.Seq, nil
}

func (l *MemoryLog) Since(_ context.Context, since int64, limit int) ([]Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Change{}
	for _, c := range l.changes {
		if c.Seq <= since {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
