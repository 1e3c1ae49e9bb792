package shared

import "errors"

var (
	// ErrAuditNotConfigured is returned when an audit record is written without a database.
	ErrAuditNotConfigured = errors.New("audit logger not initialised")
	// ErrAuditIncomplete is returned when an audit record misses its action or entity.
	ErrAuditIncomplete = errors.New("audit log requires action/entity")
)
