package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/rowguard/internal/store"
)

// Querier runs read queries; *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type view[T any] struct {
	q     Querier
	t     *table
	conds []store.Cond
}

func (v view[T]) Where(conds ...store.Cond) store.View[T] {
	next := make([]store.Cond, 0, len(v.conds)+len(conds))
	next = append(next, v.conds...)
	next = append(next, conds...)
	return view[T]{q: v.q, t: v.t, conds: next}
}

func (v view[T]) List(ctx context.Context) ([]T, error) {
	if err := store.Validate(v.conds...); err != nil {
		return nil, fmt.Errorf("pgstore: select %s: %w", v.t.name, err)
	}
	sql, args := selectSQL(v.t, v.conds, 0)
	rows, err := v.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: select %s: %w", v.t.name, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, fmt.Errorf("pgstore: scan %s: %w", v.t.name, err)
	}
	return items, nil
}

func (v view[T]) First(ctx context.Context) (T, error) {
	var zero T
	if err := store.Validate(v.conds...); err != nil {
		return zero, fmt.Errorf("pgstore: select %s: %w", v.t.name, err)
	}
	sql, args := selectSQL(v.t, v.conds, 1)
	rows, err := v.q.Query(ctx, sql, args...)
	if err != nil {
		return zero, fmt.Errorf("pgstore: select %s: %w", v.t.name, err)
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("pgstore: scan %s: %w", v.t.name, err)
	}
	return item, nil
}

func (v view[T]) Count(ctx context.Context) (int64, error) {
	if err := store.Validate(v.conds...); err != nil {
		return 0, fmt.Errorf("pgstore: count %s: %w", v.t.name, err)
	}
	sql, args := countSQL(v.t, v.conds)
	var n int64
	if err := v.q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count %s: %w", v.t.name, err)
	}
	return n, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func selectSQL(t *table, conds []store.Cond, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(ident(t.key))
	for _, c := range t.columns {
		b.WriteString(", ")
		b.WriteString(ident(c))
	}
	b.WriteString(" FROM ")
	b.WriteString(ident(t.name))
	args := whereClause(&b, conds)
	b.WriteString(" ORDER BY ")
	b.WriteString(ident(t.key))
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	return b.String(), args
}

func countSQL(t *table, conds []store.Cond) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM ")
	b.WriteString(ident(t.name))
	args := whereClause(&b, conds)
	return b.String(), args
}

func whereClause(b *strings.Builder, conds []store.Cond) []any {
	if len(conds) == 0 {
		return nil
	}
	sql, args := store.RenderAll(conds, placeholder, nil)
	b.WriteString(" WHERE ")
	b.WriteString(sql)
	return args
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
