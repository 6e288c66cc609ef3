package sqldsl

import "strings"

// Expr is the interface that all SQL expression types implement.
type Expr interface {
	SQL() string
}

// Col represents a table column reference (e.g., users.id).
type Col struct {
	Table  string
	Column string
}

// SQL renders the column reference.
func (c Col) SQL() string {
	if c.Table == "" {
		return c.Column
	}
	return c.Table + "." + c.Column
}

// Lit represents a literal string value (auto-quoted with single quotes).
type Lit string

// SQL renders the literal with single quotes.
func (l Lit) SQL() string {
	return "'" + strings.ReplaceAll(string(l), "'", "''") + "'"
}

// Cast renders expr::type.
type Cast struct {
	Expr Expr
	Type string
}

// SQL renders the cast.
func (c Cast) SQL() string {
	return c.Expr.SQL() + "::" + c.Type
}

// Block renders the cast with the operand laid out by Layout.
func (c Cast) Block() string {
	return Layout(c.Expr) + "::" + c.Type
}

// Text casts a string literal to text: 'v'::text.
func Text(v string) Cast {
	return Cast{Expr: Lit(v), Type: "text"}
}

// Func represents a SQL function call.
type Func struct {
	Name string
	Args []Expr
}

// SQL renders the call on a single line.
func (f Func) SQL() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.SQL()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Block renders the call with one argument per line.
func (f Func) Block() string {
	if len(f.Args) == 0 {
		return f.Name + "()"
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = Layout(a)
	}
	return f.Name + "(\n" + IndentLines(strings.Join(parts, ",\n"), "  ") + "\n)"
}

// QuoteIdent renders name as a double-quoted identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// FoldIdent returns name as PostgreSQL stores it when written unquoted:
// ASCII letters lower-cased.
func FoldIdent(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, name)
}
