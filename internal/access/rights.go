// Package access defines rights levels, write operations and the per unit-of-work access requirement.
package access

import (
	"fmt"
	"strconv"
	"strings"
)

// Rights is a bit-combinable data rights level. Higher levels are bitwise supersets of lower ones.
type Rights uint8

const (
	None      Rights = 0
	Read      Rights = 1
	ReadWrite Rights = Read | 2
	Owner     Rights = ReadWrite | 4
)

// Satisfies reports whether r holds every bit of required. None is never satisfied.
func (r Rights) Satisfies(required Rights) bool {
	return required != None && r&required == required
}

func (r Rights) String() string {
	switch r {
	case None:
		return "None"
	case Read:
		return "Read"
	case ReadWrite:
		return "ReadWrite"
	case Owner:
		return "Owner"
	}
	return "Rights(" + strconv.Itoa(int(r)) + ")"
}

// ParseRights parses a rights name. Display names such as "Read & Write" are accepted.
func ParseRights(value string) (Rights, error) {
	key := strings.ToLower(strings.NewReplacer(" ", "", "&", "", "_", "", "-", "").Replace(value))
	switch key {
	case "none":
		return None, nil
	case "read":
		return Read, nil
	case "readwrite":
		return ReadWrite, nil
	case "owner":
		return Owner, nil
	}
	return None, fmt.Errorf("access: unknown rights %q", value)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rights) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rights) UnmarshalText(b []byte) error {
	parsed, err := ParseRights(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Operation is a write operation kind. Reads have no operation kind.
type Operation uint8

const (
	Insert Operation = iota + 1
	Update
	Delete
)

func (o Operation) String() string {
	switch o {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "operation(" + strconv.Itoa(int(o)) + ")"
}
