// Package pgstore implements store.Session on PostgreSQL through pgx.
package pgstore

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrDuplicateTable is returned when a type is registered twice.
var ErrDuplicateTable = errors.New("pgstore: table already registered")

// Table maps the entity type T onto a PostgreSQL table. Rows are scanned by name using the
// `db` struct tags of T, so the key and every column must be tagged.
type Table[T any] struct {
	Name string
	// Key is the generated bigint primary key column.
	Key string
	// Columns lists the writable columns in the order returned by Values.
	Columns []string
	Values  func(*T) []any
	// KeyOf returns a pointer to the key field so inserts can write the generated key back.
	KeyOf func(*T) *int64
}

type table struct {
	typ     reflect.Type
	name    string
	key     string
	columns []string
	values  func(any) ([]any, error)
	keyOf   func(any) (*int64, error)
	newView func(q Querier) any
}

// Schema is the set of tables a unit of work can touch. Populate it at startup.
type Schema struct {
	tables map[reflect.Type]*table
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{tables: make(map[reflect.Type]*table)}
}

// Register adds the table for T.
func Register[T any](s *Schema, t Table[T]) error {
	switch {
	case t.Name == "" || t.Key == "":
		return errors.New("pgstore: table name and key required")
	case len(t.Columns) == 0:
		return fmt.Errorf("pgstore: table %s has no columns", t.Name)
	case t.Values == nil || t.KeyOf == nil:
		return fmt.Errorf("pgstore: table %s needs Values and KeyOf", t.Name)
	}
	typ := reflect.TypeFor[T]()
	if _, exists := s.tables[typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, typ)
	}
	entry := &table{
		typ:     typ,
		name:    t.Name,
		key:     t.Key,
		columns: append([]string(nil), t.Columns...),
		values: func(e any) ([]any, error) {
			p, err := entityPointer[T](e)
			if err != nil {
				return nil, err
			}
			vals := t.Values(p)
			if len(vals) != len(t.Columns) {
				return nil, fmt.Errorf("pgstore: table %s: %d values for %d columns", t.Name, len(vals), len(t.Columns))
			}
			return vals, nil
		},
		keyOf: func(e any) (*int64, error) {
			p, err := entityPointer[T](e)
			if err != nil {
				return nil, err
			}
			return t.KeyOf(p), nil
		},
	}
	entry.newView = func(q Querier) any {
		return view[T]{q: q, t: entry}
	}
	s.tables[typ] = entry
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister[T any](s *Schema, t Table[T]) {
	if err := Register(s, t); err != nil {
		panic(err)
	}
}

func (s *Schema) lookup(typ reflect.Type) (*table, bool) {
	if s == nil || typ == nil {
		return nil, false
	}
	t, ok := s.tables[typ]
	return t, ok
}

func entityPointer[T any](e any) (*T, error) {
	switch v := e.(type) {
	case *T:
		if v == nil {
			return nil, errors.New("pgstore: nil entity")
		}
		return v, nil
	case T:
		return &v, nil
	}
	return nil, fmt.Errorf("pgstore: entity %T is not %s", e, reflect.TypeFor[T]())
}
