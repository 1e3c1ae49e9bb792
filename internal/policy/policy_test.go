package policy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/internal/store/storetest"
)

type invoice struct {
	ID      int64
	OwnerID int64
}

type memo struct{ ID int64 }

func ownerPolicy() Funcs[invoice] {
	return Funcs[invoice]{
		FilterFunc: func(base store.View[invoice], identityID int64, level access.Rights) store.View[invoice] {
			return base.Where(store.Eq("owner_id", identityID))
		},
		AuthorizeFunc: func(ctx context.Context, obj *invoice, identityID int64, op access.Operation, level access.Rights) (bool, error) {
			return obj.OwnerID == identityID, nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[invoice](r, ownerPolicy()))

	p, ok := Lookup[invoice](r)
	require.True(t, ok)
	view := p.Filter(storetest.NewView[invoice]("invoices"), 5, access.Read)
	assert.Len(t, view.(*storetest.View[invoice]).Conds, 1)

	_, ok = Lookup[memo](r)
	assert.False(t, ok)

	var nilRegistry *Registry
	_, ok = Lookup[invoice](nilRegistry)
	assert.False(t, ok)
}

func TestRegisterRejectsAmbiguousPolicies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register[invoice](r, ownerPolicy()))

	err := Register[invoice](r, Funcs[invoice]{})
	assert.ErrorIs(t, err, ErrDuplicatePolicy)
	assert.Panics(t, func() { MustRegister[invoice](r, Funcs[invoice]{}) })

	assert.Error(t, Register[memo](r, nil))
}

func TestTypesKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	MustRegister[memo](r, Funcs[memo]{})
	MustRegister[invoice](r, ownerPolicy())

	assert.Equal(t, []reflect.Type{reflect.TypeFor[memo](), reflect.TypeFor[invoice]()}, r.Types())
}

func TestAuthorizerAcceptsPointerAndValue(t *testing.T) {
	r := NewRegistry()
	MustRegister[invoice](r, ownerPolicy())

	authorize, ok := r.Authorizer(reflect.TypeFor[invoice]())
	require.True(t, ok)

	ctx := context.Background()
	allowed, err := authorize(ctx, &invoice{OwnerID: 3}, 3, access.Update, access.ReadWrite)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = authorize(ctx, invoice{OwnerID: 3}, 4, access.Update, access.ReadWrite)
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = authorize(ctx, &memo{}, 3, access.Update, access.ReadWrite)
	assert.True(t, errors.Is(err, ErrEntityType))

	_, ok = r.Authorizer(reflect.TypeFor[memo]())
	assert.False(t, ok)
}

func TestFuncsDefaultsAreRestrictive(t *testing.T) {
	var p Funcs[memo]
	allowed, err := p.Authorize(context.Background(), &memo{}, 1, access.Insert, access.ReadWrite)
	require.NoError(t, err)
	assert.False(t, allowed)

	view := p.Filter(storetest.NewView[memo]("memos", memo{ID: 1}), 1, access.Read)
	assert.Len(t, view.(*storetest.View[memo]).Conds, 1)
}
