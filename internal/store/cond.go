package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedCond indicates a Raw condition whose placeholders do not match its arguments.
var ErrMalformedCond = errors.New("store: malformed condition")

type condKind uint8

const (
	condEq condKind = iota + 1
	condIn
	condOr
	condRaw
)

// Cond is a row condition. Build it with Eq, In, Or or Raw. The zero Cond matches nothing.
type Cond struct {
	kind   condKind
	column string
	expr   string
	args   []any
	conds  []Cond
	err    error
}

// Eq matches rows whose column equals value.
func Eq(column string, value any) Cond {
	return Cond{kind: condEq, column: column, args: []any{value}}
}

// In matches rows whose column equals one of values. An empty In matches nothing.
func In(column string, values ...any) Cond {
	return Cond{kind: condIn, column: column, args: values}
}

// Or matches rows satisfying at least one of conds. An empty Or matches nothing.
func Or(conds ...Cond) Cond {
	return Cond{kind: condOr, conds: conds}
}

// Raw is a backend specific expression with '?' placeholders bound to args in order.
// Write '??' for a literal question mark. A placeholder count that differs from len(args)
// makes the condition malformed: it matches nothing and Validate reports it.
func Raw(expr string, args ...any) Cond {
	c := Cond{kind: condRaw, expr: expr, args: args}
	if n := countPlaceholders(expr); n != len(args) {
		c.err = fmt.Errorf("%w: %q has %d placeholders for %d args", ErrMalformedCond, expr, n, len(args))
	}
	return c
}

// Validate reports every malformed condition in conds, including nested ones.
func Validate(conds ...Cond) error {
	var errs []error
	for _, c := range conds {
		if c.err != nil {
			errs = append(errs, c.err)
		}
		if err := Validate(c.conds...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func countPlaceholders(expr string) int {
	n := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] != '?' {
			continue
		}
		if i+1 < len(expr) && expr[i+1] == '?' {
			i++
			continue
		}
		n++
	}
	return n
}

// Placeholder renders a positional placeholder for the n-th (1-based) argument.
type Placeholder func(n int) string

// Render writes cond as SQL. Argument numbering continues from len(args).
func (c Cond) Render(ph Placeholder, args []any) (string, []any) {
	switch c.kind {
	case condEq:
		args = append(args, c.args[0])
		return quoteIdent(c.column) + " = " + ph(len(args)), args
	case condIn:
		if len(c.args) == 0 {
			return "FALSE", args
		}
		parts := make([]string, 0, len(c.args))
		for _, v := range c.args {
			args = append(args, v)
			parts = append(parts, ph(len(args)))
		}
		return quoteIdent(c.column) + " IN (" + strings.Join(parts, ", ") + ")", args
	case condOr:
		if len(c.conds) == 0 {
			return "FALSE", args
		}
		parts := make([]string, 0, len(c.conds))
		for _, sub := range c.conds {
			var sql string
			sql, args = sub.Render(ph, args)
			parts = append(parts, "("+sql+")")
		}
		return strings.Join(parts, " OR "), args
	case condRaw:
		if c.err != nil {
			return "FALSE", args
		}
		var b strings.Builder
		next := 0
		for i := 0; i < len(c.expr); i++ {
			ch := c.expr[i]
			if ch != '?' {
				b.WriteByte(ch)
				continue
			}
			if i+1 < len(c.expr) && c.expr[i+1] == '?' {
				b.WriteByte('?')
				i++
				continue
			}
			args = append(args, c.args[next])
			next++
			b.WriteString(ph(len(args)))
		}
		return b.String(), args
	}
	return "FALSE", args
}

// RenderAll joins conds with AND.
func RenderAll(conds []Cond, ph Placeholder, args []any) (string, []any) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		var sql string
		sql, args = c.Render(ph, args)
		parts = append(parts, "("+sql+")")
	}
	return strings.Join(parts, " AND "), args
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
