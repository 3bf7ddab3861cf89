package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/primal-host/primal-site/internal/content"
	"github.com/primal-host/primal-site/internal/database"
)

// Querier is the subset of a pgx pool the Postgres store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a Store backed by one table per content type. Column names
// only ever come from type declarations and are quoted with
// pgx.Identifier; values always travel as parameters.
type Postgres struct {
	q Querier
}

// NewPostgres creates a Postgres store on an open database.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{q: db.Pool}
}

// NewPostgresQuerier creates a Postgres store on any pgx querier, such as
// a transaction.
func NewPostgresQuerier(q Querier) *Postgres {
	return &Postgres{q: q}
}

func (p *Postgres) Select(ctx context.Context, t *content.Type, q Query) ([]content.Item, error) {
	var (
		sb    strings.Builder
		args  []any
		conds []string
	)
	fmt.Fprintf(&sb, "SELECT %s FROM %s", selectList(t), ident(t.Table))

	if q.ActiveOnly && t.Activatable {
		conds = append(conds, ident(content.ColIsActive)+" = true")
	}
	for _, col := range sortedKeys(q.Where) {
		if col != content.ColID && !t.Writable(col) {
			return nil, fmt.Errorf("store: select %s: unknown column %q", t.Table, col)
		}
		args = append(args, q.Where[col])
		if col == content.ColID {
			conds = append(conds, fmt.Sprintf("id::text = $%d", len(args)))
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", ident(col), len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY " + orderBy(t))
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := p.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: select %s: %w", t.Table, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("store: select %s: %w", t.Table, err)
	}
	return decode(t, maps)
}

func (p *Postgres) Insert(ctx context.Context, t *content.Type, item content.Item) (content.Item, error) {
	cols, args := insertColumns(t, item)
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		ident(t.Table), identList(cols), placeholders(len(cols)), selectList(t))
	it, err := p.one(ctx, t, sql, args...)
	if err != nil {
		return content.Item{}, fmt.Errorf("store: insert %s: %w", t.Table, err)
	}
	return it, nil
}

func (p *Postgres) Update(ctx context.Context, t *content.Type, id string, patch Patch) (content.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return content.Item{}, fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
	}

	var (
		sets []string
		args []any
	)
	for _, col := range sortedKeys(patch.Fields) {
		if !t.Writable(col) {
			return content.Item{}, fmt.Errorf("store: update %s: unknown column %q", t.Table, col)
		}
		args = append(args, patch.Fields[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(col), len(args)))
	}
	sets = append(sets, ident(content.ColUpdatedAt)+" = NOW()")

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if !patch.IfUpdatedAt.IsZero() {
		args = append(args, patch.IfUpdatedAt)
		where += fmt.Sprintf(" AND date_trunc('microseconds', updated_at) = date_trunc('microseconds', $%d::timestamptz)", len(args))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		ident(t.Table), strings.Join(sets, ", "), where, selectList(t))
	it, err := p.one(ctx, t, sql, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		if !patch.IfUpdatedAt.IsZero() && p.exists(ctx, t, id) {
			return content.Item{}, fmt.Errorf("%w: %s %s", ErrConflict, t.Table, id)
		}
		return content.Item{}, fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
	}
	if err != nil {
		return content.Item{}, fmt.Errorf("store: update %s %s: %w", t.Table, id, err)
	}
	return it, nil
}

func (p *Postgres) Delete(ctx context.Context, t *content.Type, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
	}
	tag, err := p.q.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", ident(t.Table)), id)
	if err != nil {
		return fmt.Errorf("store: delete %s %s: %w", t.Table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, t.Table, id)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, t *content.Type, keyField string, item content.Item) (content.Item, error) {
	if _, ok := t.Field(keyField); !ok {
		return content.Item{}, fmt.Errorf("store: upsert %s: unknown key column %q", t.Table, keyField)
	}
	cols, args := insertColumns(t, item)

	var sets []string
	for _, col := range cols {
		if col == content.ColID || col == keyField {
			continue
		}
		if _, given := item.Fields[col]; !given {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(col), ident(col)))
	}
	sets = append(sets, ident(content.ColUpdatedAt)+" = NOW()")

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		ident(t.Table), identList(cols), placeholders(len(cols)), ident(keyField),
		strings.Join(sets, ", "), selectList(t))
	it, err := p.one(ctx, t, sql, args...)
	if err != nil {
		return content.Item{}, fmt.Errorf("store: upsert %s: %w", t.Table, err)
	}
	return it, nil
}

func (p *Postgres) one(ctx context.Context, t *content.Type, sql string, args ...any) (content.Item, error) {
	rows, err := p.q.Query(ctx, sql, args...)
	if err != nil {
		return content.Item{}, uniqueViolation(err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		return content.Item{}, uniqueViolation(err)
	}
	return t.ItemFromRow(m)
}

// uniqueViolation maps SQLSTATE 23505 onto ErrDuplicateKey.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func (p *Postgres) exists(ctx context.Context, t *content.Type, id string) bool {
	rows, err := p.q.Query(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = $1", ident(t.Table)), id)
	if err != nil {
		return false
	}
	n, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	return err == nil && len(n) > 0
}

// insertColumns returns the columns and values of a new row. Type fields
// missing from item are written as their zero value so NOT NULL columns
// without defaults are satisfied.
func insertColumns(t *content.Type, item content.Item) ([]string, []any) {
	id := item.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	cols := []string{content.ColID}
	args := []any{id}
	for _, f := range t.Fields {
		v, ok := item.Fields[f.Name]
		if !ok {
			v = content.Zero(f.Kind)
		}
		cols = append(cols, f.Name)
		args = append(args, v)
	}
	if t.Ordered {
		cols = append(cols, content.ColPosition)
		args = append(args, item.Position)
	}
	if t.Activatable {
		cols = append(cols, content.ColIsActive)
		args = append(args, item.IsActive)
	}
	return cols, args
}

func decode(t *content.Type, maps []map[string]any) ([]content.Item, error) {
	out := make([]content.Item, 0, len(maps))
	for _, m := range maps {
		it, err := t.ItemFromRow(m)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func selectList(t *content.Type) string {
	cols := t.Columns()
	parts := make([]string, len(cols))
	for i, c := range cols {
		if c == content.ColID {
			parts[i] = "id::text AS id"
			continue
		}
		parts[i] = ident(c)
	}
	return strings.Join(parts, ", ")
}

func orderBy(t *content.Type) string {
	terms := t.Ordering()
	parts := make([]string, len(terms))
	for i, o := range terms {
		parts[i] = ident(o.Column)
		if o.Desc {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = ident(c)
	}
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
