package guard

import (
	"context"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/identity"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// Unit is one unit of work: a caller, a store session and the access requirement they share.
// A Unit must not be used from more than one goroutine at a time.
type Unit struct {
	facts       identity.Facts
	requirement *access.Requirement
	session     store.Session
	queries     *Queries
	commands    *Commands
}

// Begin opens a unit of work for facts over session.
func Begin(facts identity.Facts, session store.Session, policies *policy.Registry, opts ...Option) *Unit {
	if facts == nil {
		facts = identity.Anonymous()
	}
	req := access.NewRequirement()
	return &Unit{
		facts:       facts,
		requirement: req,
		session:     session,
		queries:     NewQueries(session, facts, req, policies),
		commands:    NewCommands(session, facts, req, policies, opts...),
	}
}

// Require sets the rights level for the next secured operation.
func (u *Unit) Require(level access.Rights) error {
	return u.requirement.Set(level)
}

// Requirement exposes the shared access requirement.
func (u *Unit) Requirement() *access.Requirement { return u.requirement }

// Facts returns the caller.
func (u *Unit) Facts() identity.Facts { return u.facts }

// Queries returns the secured read side.
func (u *Unit) Queries() *Queries { return u.queries }

// Commands returns the secured write side.
func (u *Unit) Commands() *Commands { return u.commands }

// Close discards whatever was staged and not saved.
func (u *Unit) Close() {
	u.session.Discard()
}

type unitContextKey struct{}

// ContextWithUnit stores the unit of work in context.
func ContextWithUnit(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitContextKey{}, u)
}

// UnitFromContext extracts the unit of work.
func UnitFromContext(ctx context.Context) *Unit {
	u, _ := ctx.Value(unitContextKey{}).(*Unit)
	return u
}
