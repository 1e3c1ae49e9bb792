package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/internal/store/pgstore"
)

// AccessLookup resolves what a user holds on a stored document.
type AccessLookup interface {
	// Access returns store.ErrNotFound when the document does not exist.
	Access(ctx context.Context, documentID, userID int64) (Access, error)
	// GrantDocument returns the document a stored grant belongs to, or store.ErrNotFound.
	GrantDocument(ctx context.Context, grantID int64) (int64, error)
}

// Repository reads committed ownership and grant rows.
type Repository struct {
	db pgstore.Querier
}

var _ AccessLookup = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(db pgstore.Querier) *Repository {
	return &Repository{db: db}
}

const accessQuery = `SELECT d.owner_id, COALESCE(g.rights, 0)
FROM documents d
LEFT JOIN document_grants g ON g.document_id = d.id AND g.user_id = $2
WHERE d.id = $1`

// Access implements AccessLookup.
func (r *Repository) Access(ctx context.Context, documentID, userID int64) (Access, error) {
	var (
		out     Access
		granted int16
	)
	err := r.db.QueryRow(ctx, accessQuery, documentID, userID).Scan(&out.OwnerID, &granted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Access{}, fmt.Errorf("documents: document %d: %w", documentID, store.ErrNotFound)
		}
		return Access{}, fmt.Errorf("documents: access lookup: %w", err)
	}
	out.Granted = access.Rights(granted)
	return out, nil
}

const grantDocumentQuery = `SELECT document_id FROM document_grants WHERE id = $1`

// GrantDocument implements AccessLookup.
func (r *Repository) GrantDocument(ctx context.Context, grantID int64) (int64, error) {
	var documentID int64
	err := r.db.QueryRow(ctx, grantDocumentQuery, grantID).Scan(&documentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("documents: grant %d: %w", grantID, store.ErrNotFound)
		}
		return 0, fmt.Errorf("documents: grant lookup: %w", err)
	}
	return documentID, nil
}
