package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/guard"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// ErrNoneGrant is returned when a grant would carry no rights.
var ErrNoneGrant = errors.New("documents: grant rights must not be None")

// DocumentInput carries the writable fields of a document.
type DocumentInput struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=65536"`
}

// GrantInput carries a new grant.
type GrantInput struct {
	UserID int64         `json:"user_id" validate:"required,gt=0"`
	Rights access.Rights `json:"rights" validate:"required"`
}

// Service implements the document use cases inside one guarded unit of work.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// List returns the documents visible to the caller. A rights level other than None narrows
// the list to documents held with at least that level.
func (s *Service) List(ctx context.Context, u *guard.Unit, rights access.Rights) ([]Document, error) {
	view, err := secured[Document](u, rights)
	if err != nil {
		return nil, err
	}
	return view.List(ctx)
}

// Get returns one visible document.
func (s *Service) Get(ctx context.Context, u *guard.Unit, id int64, rights access.Rights) (Document, error) {
	view, err := secured[Document](u, rights)
	if err != nil {
		return Document{}, err
	}
	return byID(ctx, view, id)
}

// Create stores a document owned by the caller.
func (s *Service) Create(ctx context.Context, u *guard.Unit, in DocumentInput) (Document, error) {
	doc := Document{OwnerID: u.Facts().ID(), Title: in.Title, Body: in.Body}
	if err := u.Commands().Insert(ctx, &doc, guard.WithPersist(true)); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Update rewrites a document the caller may edit.
func (s *Service) Update(ctx context.Context, u *guard.Unit, id int64, in DocumentInput) (Document, error) {
	view, err := secured[Document](u, access.ReadWrite)
	if err != nil {
		return Document{}, err
	}
	doc, err := byID(ctx, view, id)
	if err != nil {
		return Document{}, err
	}
	doc.Title = in.Title
	doc.Body = in.Body
	if err := u.Commands().Update(ctx, &doc, guard.WithPersist(true)); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes a document the caller owns.
func (s *Service) Delete(ctx context.Context, u *guard.Unit, id int64) error {
	view, err := secured[Document](u, access.Owner)
	if err != nil {
		return err
	}
	doc, err := byID(ctx, view, id)
	if err != nil {
		return err
	}
	return u.Commands().Delete(ctx, &doc, guard.WithPersist(true))
}

// ListGrants returns the visible grants of a visible document.
func (s *Service) ListGrants(ctx context.Context, u *guard.Unit, documentID int64) ([]Grant, error) {
	if _, err := s.Get(ctx, u, documentID, access.None); err != nil {
		return nil, err
	}
	grants, err := secured[Grant](u, access.None)
	if err != nil {
		return nil, err
	}
	return grants.Where(store.Eq("document_id", documentID)).List(ctx)
}

// AddGrant shares a visible document with another user.
func (s *Service) AddGrant(ctx context.Context, u *guard.Unit, documentID int64, in GrantInput) (Grant, error) {
	if in.Rights == access.None {
		return Grant{}, ErrNoneGrant
	}
	if _, err := s.Get(ctx, u, documentID, access.None); err != nil {
		return Grant{}, err
	}
	g := Grant{DocumentID: documentID, UserID: in.UserID, Rights: in.Rights}
	if err := u.Commands().Insert(ctx, &g, guard.WithPersist(true)); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func secured[T any](u *guard.Unit, rights access.Rights) (store.View[T], error) {
	if rights != access.None {
		if err := u.Require(rights); err != nil {
			return nil, err
		}
	}
	return guard.Secure[T](u.Queries())
}

func byID(ctx context.Context, view store.View[Document], id int64) (Document, error) {
	doc, err := view.Where(store.Eq("id", id)).First(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("documents: document %d: %w", id, err)
	}
	return doc, nil
}
