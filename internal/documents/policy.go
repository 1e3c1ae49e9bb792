package documents

import (
	"context"
	"errors"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/store"
)

const (
	grantedDocuments = "id IN (SELECT document_id FROM document_grants WHERE user_id = ? AND rights & ? = ?)"
	ownedDocuments   = "document_id IN (SELECT id FROM documents WHERE owner_id = ?)"
)

// DocumentPolicy lets owners do anything and grantees what their grant covers.
type DocumentPolicy struct {
	lookup AccessLookup
}

var _ policy.Policy[Document] = DocumentPolicy{}

// NewDocumentPolicy constructs a DocumentPolicy.
func NewDocumentPolicy(lookup AccessLookup) DocumentPolicy {
	return DocumentPolicy{lookup: lookup}
}

// Filter keeps owned documents and documents granted with at least level.
func (p DocumentPolicy) Filter(base store.View[Document], identityID int64, level access.Rights) store.View[Document] {
	if identityID <= 0 {
		return base.Where(store.Or())
	}
	bits := int16(level)
	return base.Where(store.Or(
		store.Eq("owner_id", identityID),
		store.Raw(grantedDocuments, identityID, bits, bits),
	))
}

// Authorize checks a write against the stored owner and grant. Deleting a document or
// handing it to someone else needs Owner.
func (p DocumentPolicy) Authorize(ctx context.Context, doc *Document, identityID int64, op access.Operation, level access.Rights) (bool, error) {
	if identityID <= 0 {
		return false, nil
	}
	if op == access.Insert {
		return doc.OwnerID == identityID, nil
	}
	held, err := p.lookup.Access(ctx, doc.ID, identityID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if op == access.Delete || doc.OwnerID != held.OwnerID {
		level = access.Owner
	}
	return held.Effective(identityID).Satisfies(level), nil
}

// GrantPolicy lets document owners manage grants. Grantees can read their own grants.
type GrantPolicy struct {
	lookup AccessLookup
}

var _ policy.Policy[Grant] = GrantPolicy{}

// NewGrantPolicy constructs a GrantPolicy.
func NewGrantPolicy(lookup AccessLookup) GrantPolicy {
	return GrantPolicy{lookup: lookup}
}

// Filter keeps grants on owned documents, plus grants addressed to the caller when only
// Read is required.
func (p GrantPolicy) Filter(base store.View[Grant], identityID int64, level access.Rights) store.View[Grant] {
	if identityID <= 0 {
		return base.Where(store.Or())
	}
	owned := store.Raw(ownedDocuments, identityID)
	if level != access.Read {
		return base.Where(owned)
	}
	return base.Where(store.Or(store.Eq("user_id", identityID), owned))
}

// Authorize allows writes by the owner of the grant's document. Updates and deletes are
// checked against the document the grant is stored on, and moving a grant to another
// document also needs ownership of the target.
func (p GrantPolicy) Authorize(ctx context.Context, g *Grant, identityID int64, op access.Operation, level access.Rights) (bool, error) {
	if identityID <= 0 {
		return false, nil
	}
	if op != access.Insert {
		stored, err := p.lookup.GrantDocument(ctx, g.ID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		ok, err := p.owns(ctx, stored, identityID)
		if err != nil || !ok {
			return false, err
		}
		if op == access.Delete || stored == g.DocumentID {
			return true, nil
		}
	}
	return p.owns(ctx, g.DocumentID, identityID)
}

func (p GrantPolicy) owns(ctx context.Context, documentID, identityID int64) (bool, error) {
	held, err := p.lookup.Access(ctx, documentID, identityID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return held.OwnerID == identityID, nil
}

// RegisterPolicies adds the document and grant policies to r.
func RegisterPolicies(r *policy.Registry, lookup AccessLookup) error {
	return errors.Join(
		policy.Register[Document](r, NewDocumentPolicy(lookup)),
		policy.Register[Grant](r, NewGrantPolicy(lookup)),
	)
}
