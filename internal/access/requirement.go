package access

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState reports a programming error such as requiring None.
	ErrInvalidState = errors.New("access: invalid state")
	// ErrAccessDenied reports a rejected write.
	ErrAccessDenied = errors.New("access: denied")
)

// Requirement holds the rights level required for the next secured operation of one unit-of-work.
// The zero value requires Read and is not explicit. A Requirement must not be shared across
// concurrent units of work.
type Requirement struct {
	level    Rights
	explicit bool
}

// NewRequirement returns a Requirement in its default state.
func NewRequirement() *Requirement {
	r := &Requirement{}
	r.Reset()
	return r
}

// Set requires level for the next secured operation.
func (r *Requirement) Set(level Rights) error {
	if level == None {
		return fmt.Errorf("%w: access requirement 'None' is invalid", ErrInvalidState)
	}
	r.level = level
	r.explicit = true
	return nil
}

// Reset restores the default: Read, not explicit.
func (r *Requirement) Reset() {
	r.level = Read
	r.explicit = false
}

// Level returns the required rights.
func (r *Requirement) Level() Rights {
	if r.level == None {
		return Read
	}
	return r.level
}

// IsExplicit reports whether a caller has set the level since the last reset.
func (r *Requirement) IsExplicit() bool {
	return r.explicit
}

// DeniedError describes a rejected write.
type DeniedError struct {
	Entity     string
	Operation  Operation
	IdentityID int64
	Required   Rights
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access: %s %s denied for identity %d (requires %s)", e.Operation, e.Entity, e.IdentityID, e.Required)
}

// Unwrap lets errors.Is match ErrAccessDenied.
func (e *DeniedError) Unwrap() error {
	return ErrAccessDenied
}
