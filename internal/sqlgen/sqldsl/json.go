package sqldsl

import "strings"

// JSONPair is one key/value argument pair of json_build_object.
type JSONPair struct {
	Key   string
	Value Expr
}

// SQL renders 'key', value.
func (p JSONPair) SQL() string {
	return Lit(p.Key).SQL() + ", " + p.Value.SQL()
}

// JSONBuildObject represents json_build_object('k1', v1, 'k2', v2, ...).
type JSONBuildObject struct {
	Pairs []JSONPair
}

// SQL renders the call on a single line.
func (j JSONBuildObject) SQL() string {
	return "json_build_object(" + j.PairsSQL(", ") + ")"
}

// Block renders one pair per line. Pairs after the first align with the call
// rather than with the first pair; generated policies depend on this layout.
func (j JSONBuildObject) Block() string {
	if len(j.Pairs) == 0 {
		return "json_build_object()"
	}
	return "json_build_object(\n  " + j.PairsSQL(",\n") + "\n)"
}

// PairsSQL renders only the argument list, joining pairs with sep.
func (j JSONBuildObject) PairsSQL(sep string) string {
	parts := make([]string, len(j.Pairs))
	for i, p := range j.Pairs {
		parts[i] = p.SQL()
	}
	return strings.Join(parts, sep)
}
