package documents

import (
	"errors"

	"github.com/odyssey-erp/rowguard/internal/store/pgstore"
)

// DocumentsTable maps Document onto the documents table.
var DocumentsTable = pgstore.Table[Document]{
	Name:    "documents",
	Key:     "id",
	Columns: []string{"owner_id", "title", "body"},
	Values: func(d *Document) []any {
		return []any{d.OwnerID, d.Title, d.Body}
	},
	KeyOf: func(d *Document) *int64 { return &d.ID },
}

// GrantsTable maps Grant onto the document_grants table.
var GrantsTable = pgstore.Table[Grant]{
	Name:    "document_grants",
	Key:     "id",
	Columns: []string{"document_id", "user_id", "rights"},
	Values: func(g *Grant) []any {
		return []any{g.DocumentID, g.UserID, int16(g.Rights)}
	},
	KeyOf: func(g *Grant) *int64 { return &g.ID },
}

// RegisterTables adds the document tables to schema.
func RegisterTables(schema *pgstore.Schema) error {
	return errors.Join(
		pgstore.Register(schema, DocumentsTable),
		pgstore.Register(schema, GrantsTable),
	)
}
