package pgstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/rowguard/internal/platform/db"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// ErrConflict wraps unique and foreign key violations raised during commit.
var ErrConflict = errors.New("pgstore: conflict")

// DB is the connection a unit of work reads from and commits through.
type DB interface {
	Querier
	db.Beginner
}

type opKind uint8

const (
	opInsert opKind = iota + 1
	opUpdate
	opDelete
)

type pendingOp struct {
	kind   opKind
	t      *table
	entity any
}

// UnitOfWork tracks staged mutations for one request. Entity values are read at commit time.
// It is not safe for concurrent use.
type UnitOfWork struct {
	db      DB
	schema  *Schema
	pending []pendingOp
}

var _ store.Session = (*UnitOfWork)(nil)

// NewUnitOfWork opens a unit of work over the schema's tables.
func NewUnitOfWork(conn DB, schema *Schema) *UnitOfWork {
	return &UnitOfWork{db: conn, schema: schema}
}

// Add stages an insert.
func (u *UnitOfWork) Add(ctx context.Context, entity any) error {
	return u.stage(ctx, opInsert, entity)
}

// Update stages an update by key.
func (u *UnitOfWork) Update(ctx context.Context, entity any) error {
	return u.stage(ctx, opUpdate, entity)
}

// Remove stages a delete by key.
func (u *UnitOfWork) Remove(ctx context.Context, entity any) error {
	return u.stage(ctx, opDelete, entity)
}

// Pending returns the number of staged mutations.
func (u *UnitOfWork) Pending() int {
	return len(u.pending)
}

// Discard drops every staged mutation.
func (u *UnitOfWork) Discard() {
	u.pending = nil
}

// View returns the unfiltered view for typ.
func (u *UnitOfWork) View(typ reflect.Type) (any, error) {
	t, ok := u.schema.lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %v", store.ErrUnknownEntity, typ)
	}
	return t.newView(u.db), nil
}

func (u *UnitOfWork) stage(ctx context.Context, kind opKind, entity any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	typ := store.EntityType(entity)
	t, ok := u.schema.lookup(typ)
	if !ok {
		return fmt.Errorf("%w: %v", store.ErrUnknownEntity, typ)
	}
	u.pending = append(u.pending, pendingOp{kind: kind, t: t, entity: entity})
	return nil
}

// Commit applies every staged mutation in one transaction. Staged mutations are kept when
// the commit fails so the caller can retry or Discard.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if len(u.pending) == 0 {
		return ctx.Err()
	}
	type generated struct {
		dst *int64
		id  int64
	}
	var keys []generated
	err := db.WithTx(ctx, u.db, func(tx pgx.Tx) error {
		for _, op := range u.pending {
			switch op.kind {
			case opInsert:
				dst, id, err := insert(ctx, tx, op)
				if err != nil {
					return err
				}
				if dst != nil {
					keys = append(keys, generated{dst: dst, id: id})
				}
			case opUpdate:
				if err := update(ctx, tx, op); err != nil {
					return err
				}
			case opDelete:
				if err := remove(ctx, tx, op); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		*k.dst = k.id
	}
	u.pending = nil
	return nil
}

func insert(ctx context.Context, tx pgx.Tx, op pendingOp) (*int64, int64, error) {
	vals, err := op.t.values(op.entity)
	if err != nil {
		return nil, 0, err
	}
	dst, err := op.t.keyOf(op.entity)
	if err != nil {
		return nil, 0, err
	}
	var id int64
	if err := tx.QueryRow(ctx, insertSQL(op.t), vals...).Scan(&id); err != nil {
		return nil, 0, translate(op.t, "insert", err)
	}
	return dst, id, nil
}

func update(ctx context.Context, tx pgx.Tx, op pendingOp) error {
	vals, err := op.t.values(op.entity)
	if err != nil {
		return err
	}
	key, err := op.t.keyOf(op.entity)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateSQL(op.t), append(vals, *key)...)
	if err != nil {
		return translate(op.t, "update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %d", store.ErrNotFound, op.t.name, *key)
	}
	return nil
}

func remove(ctx context.Context, tx pgx.Tx, op pendingOp) error {
	key, err := op.t.keyOf(op.entity)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, deleteSQL(op.t), *key)
	if err != nil {
		return translate(op.t, "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %d", store.ErrNotFound, op.t.name, *key)
	}
	return nil
}

func translate(t *table, verb string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%w: %s %s: %w", ErrConflict, verb, t.name, err)
		}
	}
	return fmt.Errorf("pgstore: %s %s: %w", verb, t.name, err)
}

func insertSQL(t *table) string {
	cols := make([]string, len(t.columns))
	phs := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = ident(c)
		phs[i] = placeholder(i + 1)
	}
	return "INSERT INTO " + ident(t.name) + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.Join(phs, ", ") + ") RETURNING " + ident(t.key)
}

func updateSQL(t *table) string {
	sets := make([]string, len(t.columns))
	for i, c := range t.columns {
		sets[i] = ident(c) + " = " + placeholder(i+1)
	}
	return "UPDATE " + ident(t.name) + " SET " + strings.Join(sets, ", ") +
		" WHERE " + ident(t.key) + " = " + placeholder(len(t.columns)+1)
}

func deleteSQL(t *table) string {
	return "DELETE FROM " + ident(t.name) + " WHERE " + ident(t.key) + " = $1"
}
