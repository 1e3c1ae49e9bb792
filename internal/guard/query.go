// Package guard enforces row policies on reads and writes issued through a unit of work.
package guard

import (
	"io"
	"log/slog"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/identity"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// Queries is the secured read side of a unit of work.
type Queries struct {
	session     store.Session
	facts       identity.Facts
	requirement *access.Requirement
	policies    *policy.Registry
}

// NewQueries builds the read side. facts defaults to anonymous, requirement to a fresh one.
func NewQueries(session store.Session, facts identity.Facts, requirement *access.Requirement, policies *policy.Registry) *Queries {
	if facts == nil {
		facts = identity.Anonymous()
	}
	if requirement == nil {
		requirement = access.NewRequirement()
	}
	return &Queries{session: session, facts: facts, requirement: requirement, policies: policies}
}

// Secure returns the rows of T the caller may see at the current requirement level.
// Privileged callers and unprotected types get the unfiltered view. The only error is a
// session that does not know T.
func Secure[T any](q *Queries) (store.View[T], error) {
	base, err := store.All[T](q.session)
	if err != nil {
		return nil, err
	}
	if q.facts.HasRole(identity.RoleSuperAdmin) {
		return base, nil
	}
	if p, ok := policy.Lookup[T](q.policies); ok {
		return p.Filter(base, q.facts.ID(), q.requirement.Level()), nil
	}
	return base, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
