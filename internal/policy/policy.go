// Package policy holds the per entity type row policies and the registry that resolves them.
package policy

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/store"
)

var (
	// ErrDuplicatePolicy is returned when a second policy is registered for the same type.
	ErrDuplicatePolicy = errors.New("policy: duplicate registration")
	// ErrEntityType is returned when an entity does not have the policy's type.
	ErrEntityType = errors.New("policy: entity type mismatch")
)

// Policy protects the rows of entity type T.
type Policy[T any] interface {
	// Filter narrows base to the rows identityID may see at the given level.
	Filter(base store.View[T], identityID int64, level access.Rights) store.View[T]
	// Authorize decides a single write. Errors are store failures, not denials.
	Authorize(ctx context.Context, obj *T, identityID int64, op access.Operation, level access.Rights) (bool, error)
}

// Funcs adapts two functions into a Policy.
type Funcs[T any] struct {
	FilterFunc    func(base store.View[T], identityID int64, level access.Rights) store.View[T]
	AuthorizeFunc func(ctx context.Context, obj *T, identityID int64, op access.Operation, level access.Rights) (bool, error)
}

// Filter calls FilterFunc, or returns an empty view when it is nil.
func (f Funcs[T]) Filter(base store.View[T], identityID int64, level access.Rights) store.View[T] {
	if f.FilterFunc == nil {
		return base.Where(store.Or())
	}
	return f.FilterFunc(base, identityID, level)
}

// Authorize calls AuthorizeFunc, or denies when it is nil.
func (f Funcs[T]) Authorize(ctx context.Context, obj *T, identityID int64, op access.Operation, level access.Rights) (bool, error) {
	if f.AuthorizeFunc == nil {
		return false, nil
	}
	return f.AuthorizeFunc(ctx, obj, identityID, op, level)
}

// Authorizer is the type-erased write check of a registered policy.
type Authorizer func(ctx context.Context, obj any, identityID int64, op access.Operation, level access.Rights) (bool, error)

type entry struct {
	policy    any
	authorize Authorizer
}

// Registry maps entity types to their policy. Register everything at startup; lookups are
// safe for concurrent use afterwards.
type Registry struct {
	entries map[reflect.Type]entry
	order   []reflect.Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[reflect.Type]entry)}
}

// Register adds p as the policy of T. A second policy for T is rejected.
func Register[T any](r *Registry, p Policy[T]) error {
	if p == nil {
		return errors.New("policy: nil policy")
	}
	typ := reflect.TypeFor[T]()
	if _, exists := r.entries[typ]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePolicy, typ)
	}
	r.entries[typ] = entry{
		policy: p,
		authorize: func(ctx context.Context, obj any, identityID int64, op access.Operation, level access.Rights) (bool, error) {
			var target *T
			switch v := obj.(type) {
			case *T:
				target = v
			case T:
				target = &v
			}
			if target == nil {
				return false, fmt.Errorf("%w: %T is not %s", ErrEntityType, obj, typ)
			}
			return p.Authorize(ctx, target, identityID, op, level)
		},
	}
	r.order = append(r.order, typ)
	return nil
}

// MustRegister is Register that panics on error.
func MustRegister[T any](r *Registry, p Policy[T]) {
	if err := Register(r, p); err != nil {
		panic(err)
	}
}

// Lookup returns the policy registered for T.
func Lookup[T any](r *Registry) (Policy[T], bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	p, ok := e.policy.(Policy[T])
	return p, ok
}

// Authorizer returns the write check for the entity type typ.
func (r *Registry) Authorizer(typ reflect.Type) (Authorizer, bool) {
	if r == nil || typ == nil {
		return nil, false
	}
	e, ok := r.entries[typ]
	if !ok {
		return nil, false
	}
	return e.authorize, true
}

// Types lists the protected entity types in registration order.
func (r *Registry) Types() []reflect.Type {
	if r == nil {
		return nil
	}
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}
