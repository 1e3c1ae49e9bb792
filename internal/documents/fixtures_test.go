package documents_test

import (
	"context"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/documents"
	"github.com/odyssey-erp/rowguard/internal/identity"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// fakeLookup answers access lookups from in-memory owners and grants.
type fakeLookup struct {
	owners map[int64]int64
	grants map[[2]int64]access.Rights
	stored map[int64]int64
	err    error
	calls  int
}

func newLookup() *fakeLookup {
	return &fakeLookup{owners: make(map[int64]int64), grants: make(map[[2]int64]access.Rights), stored: make(map[int64]int64)}
}

func (f *fakeLookup) own(documentID, ownerID int64) *fakeLookup {
	f.owners[documentID] = ownerID
	return f
}

func (f *fakeLookup) grant(documentID, userID int64, rights access.Rights) *fakeLookup {
	f.grants[[2]int64{documentID, userID}] = rights
	return f
}

// storedGrant records that grant grantID is stored on documentID.
func (f *fakeLookup) storedGrant(grantID, documentID int64) *fakeLookup {
	f.stored[grantID] = documentID
	return f
}

func (f *fakeLookup) GrantDocument(ctx context.Context, grantID int64) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	documentID, ok := f.stored[grantID]
	if !ok {
		return 0, fmt.Errorf("grant %d: %w", grantID, store.ErrNotFound)
	}
	return documentID, nil
}

func (f *fakeLookup) Access(ctx context.Context, documentID, userID int64) (documents.Access, error) {
	f.calls++
	if f.err != nil {
		return documents.Access{}, f.err
	}
	owner, ok := f.owners[documentID]
	if !ok {
		return documents.Access{}, fmt.Errorf("document %d: %w", documentID, store.ErrNotFound)
	}
	return documents.Access{OwnerID: owner, Granted: f.grants[[2]int64{documentID, userID}]}, nil
}

func caller(id int64, roles ...string) *identity.Identity {
	claims := []identity.Claim{{Type: identity.ClaimNameIdentifier, Value: strconv.FormatInt(id, 10)}}
	for _, r := range roles {
		claims = append(claims, identity.Claim{Type: identity.ClaimRole, Value: r})
	}
	return identity.FromClaims(claims)
}

func pg(n int) string { return "$" + strconv.Itoa(n) }
