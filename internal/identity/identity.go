// Package identity exposes a read-only view over the claims of an authenticated caller.
package identity

import (
	"context"
	"strconv"
	"strings"
)

// Claim types understood by FromClaims.
const (
	ClaimNameIdentifier = "nameid"
	ClaimRole           = "role"
)

// Claim is a single name/value pair presented by the caller.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Facts describes the authenticated actor for the duration of one call.
type Facts interface {
	ID() int64
	HasRole(role Role) bool
	Has(name string) bool
	Value(name string) (string, bool)
}

// Identity is the claims backed implementation of Facts. It is immutable once built.
type Identity struct {
	id     int64
	roles  Role
	claims []Claim
}

// FromClaims builds an Identity from the claims presented upstream.
func FromClaims(claims []Claim) *Identity {
	ident := &Identity{claims: make([]Claim, len(claims))}
	copy(ident.claims, claims)
	for _, c := range ident.claims {
		if c.Type != ClaimRole {
			continue
		}
		if role, ok := ParseRole(c.Value); ok {
			ident.roles |= role
		}
	}
	if raw, ok := ident.Value(ClaimNameIdentifier); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err == nil && id > 0 {
			ident.id = id
		}
	}
	return ident
}

// Anonymous returns the facts of an unauthenticated caller.
func Anonymous() *Identity {
	return &Identity{}
}

// ID returns the numeric identity id, 0 when unresolved.
func (i *Identity) ID() int64 {
	if i == nil {
		return 0
	}
	return i.id
}

// Roles returns the combined role mask.
func (i *Identity) Roles() Role {
	if i == nil {
		return RoleNone
	}
	return i.roles
}

// HasRole reports whether every bit of role is present in the combined role claims.
func (i *Identity) HasRole(role Role) bool {
	return i.Roles().Has(role)
}

// Has reports whether a claim of the given type exists.
func (i *Identity) Has(name string) bool {
	_, ok := i.Value(name)
	return ok
}

// Value returns the first claim value of the given type.
func (i *Identity) Value(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	for _, c := range i.claims {
		if c.Type == name {
			return c.Value, true
		}
	}
	return "", false
}

// Claims returns a copy of the underlying claims.
func (i *Identity) Claims() []Claim {
	if i == nil {
		return nil
	}
	out := make([]Claim, len(i.claims))
	copy(out, i.claims)
	return out
}

type factsContextKey struct{}

// ContextWithFacts stores the caller facts in context.
func ContextWithFacts(ctx context.Context, facts Facts) context.Context {
	return context.WithValue(ctx, factsContextKey{}, facts)
}

// FactsFromContext extracts the caller facts, falling back to Anonymous.
func FactsFromContext(ctx context.Context) Facts {
	if facts, ok := ctx.Value(factsContextKey{}).(Facts); ok && facts != nil {
		return facts
	}
	return Anonymous()
}
