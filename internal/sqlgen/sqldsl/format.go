package sqldsl

import "strings"

// Blocker is implemented by expressions with a multi-line layout. Block
// renders the first line at column zero and later lines relative to it.
type Blocker interface {
	Block() string
}

// Layout renders e with its multi-line layout when it has one.
func Layout(e Expr) string {
	if b, ok := e.(Blocker); ok {
		return b.Block()
	}
	return e.SQL()
}

// IndentLines prefixes every non-empty line of input with indent. A trailing
// newline is dropped.
func IndentLines(input, indent string) string {
	lines := strings.Split(strings.TrimSuffix(input, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// Banner renders a section header comment used in generated scripts.
func Banner(title string) string {
	rule := "-- " + strings.Repeat("=", 60)
	return rule + "\n-- " + title + "\n" + rule
}
