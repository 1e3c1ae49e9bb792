// Package storetest provides an in-memory store.Session that records what it was asked to do.
package storetest

import (
	"context"
	"fmt"
	"reflect"

	"github.com/odyssey-erp/rowguard/internal/store"
)

// View is a fixed row set that records the conditions applied to it.
type View[T any] struct {
	Name  string
	Rows  []T
	Conds []store.Cond
	Err   error
}

// NewView returns a named view over rows.
func NewView[T any](name string, rows ...T) *View[T] {
	return &View[T]{Name: name, Rows: rows}
}

// Where returns a copy carrying the extra conditions. Rows are not filtered.
func (v *View[T]) Where(conds ...store.Cond) store.View[T] {
	next := &View[T]{Name: v.Name, Rows: v.Rows, Err: v.Err}
	next.Conds = append(append(next.Conds, v.Conds...), conds...)
	return next
}

func (v *View[T]) List(ctx context.Context) ([]T, error) {
	if err := v.err(); err != nil {
		return nil, err
	}
	out := make([]T, len(v.Rows))
	copy(out, v.Rows)
	return out, nil
}

func (v *View[T]) First(ctx context.Context) (T, error) {
	var zero T
	if err := v.err(); err != nil {
		return zero, err
	}
	if len(v.Rows) == 0 {
		return zero, store.ErrNotFound
	}
	return v.Rows[0], nil
}

func (v *View[T]) Count(ctx context.Context) (int64, error) {
	if err := v.err(); err != nil {
		return 0, err
	}
	return int64(len(v.Rows)), nil
}

func (v *View[T]) err() error {
	if v.Err != nil {
		return v.Err
	}
	return store.Validate(v.Conds...)
}

// Call is one recorded staging call.
type Call struct {
	Op     string
	Entity any
}

// Session is an in-memory store.Session.
type Session struct {
	views map[reflect.Type]any

	Calls   []Call
	Commits int
	Staged  int

	AddErr    error
	UpdateErr error
	RemoveErr error
	CommitErr error
}

var _ store.Session = (*Session)(nil)

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{views: make(map[reflect.Type]any)}
}

// Serve makes v the unfiltered view of T.
func Serve[T any](s *Session, v *View[T]) {
	s.views[reflect.TypeFor[T]()] = store.View[T](v)
}

func (s *Session) Add(ctx context.Context, entity any) error {
	return s.record(ctx, "add", entity, s.AddErr)
}

func (s *Session) Update(ctx context.Context, entity any) error {
	return s.record(ctx, "update", entity, s.UpdateErr)
}

func (s *Session) Remove(ctx context.Context, entity any) error {
	return s.record(ctx, "remove", entity, s.RemoveErr)
}

func (s *Session) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Commits++
	if s.CommitErr != nil {
		return s.CommitErr
	}
	s.Staged = 0
	return nil
}

func (s *Session) Discard() {
	s.Staged = 0
}

func (s *Session) View(t reflect.Type) (any, error) {
	v, ok := s.views[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", store.ErrUnknownEntity, t)
	}
	return v, nil
}

// Count returns how many times op was called.
func (s *Session) Count(op string) int {
	n := 0
	for _, c := range s.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *Session) record(ctx context.Context, op string, entity any, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.Calls = append(s.Calls, Call{Op: op, Entity: entity})
	if err != nil {
		return err
	}
	s.Staged++
	return nil
}
