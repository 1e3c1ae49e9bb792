// Package store defines the unit-of-work contract the access layer runs on top of.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotFound indicates that no row matched.
	ErrNotFound = errors.New("store: not found")
	// ErrUnknownEntity indicates an entity type without a registered table.
	ErrUnknownEntity = errors.New("store: unknown entity type")
)

// View is an immutable, lazily evaluated row set of T.
type View[T any] interface {
	// Where returns a copy of the view narrowed by conds.
	Where(conds ...Cond) View[T]
	List(ctx context.Context) ([]T, error)
	// First returns the first row or ErrNotFound.
	First(ctx context.Context) (T, error)
	Count(ctx context.Context) (int64, error)
}

// Session is one unit-of-work against the underlying store. Mutations are staged until Commit.
type Session interface {
	Add(ctx context.Context, entity any) error
	Update(ctx context.Context, entity any) error
	Remove(ctx context.Context, entity any) error
	// Commit applies every staged mutation atomically.
	Commit(ctx context.Context) error
	// Discard drops staged mutations.
	Discard()
	// View returns the unfiltered View[T] for the entity type t, boxed.
	View(t reflect.Type) (any, error)
}

// All returns the unfiltered view of T from the session.
func All[T any](s Session) (View[T], error) {
	t := reflect.TypeFor[T]()
	raw, err := s.View(t)
	if err != nil {
		return nil, err
	}
	view, ok := raw.(View[T])
	if !ok {
		return nil, fmt.Errorf("store: view for %s has type %T", t, raw)
	}
	return view, nil
}

// EntityType returns the type identifier used for entity lookups; pointers resolve to their element.
func EntityType(entity any) reflect.Type {
	t := reflect.TypeOf(entity)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
