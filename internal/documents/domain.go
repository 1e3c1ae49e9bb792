// Package documents holds the reference protected entities: owner scoped documents and the
// per user grants that share them.
package documents

import (
	"github.com/odyssey-erp/rowguard/internal/access"
)

// Document is a text owned by one user.
type Document struct {
	ID      int64  `db:"id" json:"id"`
	OwnerID int64  `db:"owner_id" json:"owner_id"`
	Title   string `db:"title" json:"title"`
	Body    string `db:"body" json:"body"`
}

// Grant gives UserID the listed rights on a document.
type Grant struct {
	ID         int64         `db:"id" json:"id"`
	DocumentID int64         `db:"document_id" json:"document_id"`
	UserID     int64         `db:"user_id" json:"user_id"`
	Rights     access.Rights `db:"rights" json:"rights"`
}

// Access is what a user holds on one document.
type Access struct {
	OwnerID int64
	Granted access.Rights
}

// Effective returns Owner for the document owner, else the granted rights.
func (a Access) Effective(userID int64) access.Rights {
	if userID > 0 && a.OwnerID == userID {
		return access.Owner
	}
	return a.Granted
}
