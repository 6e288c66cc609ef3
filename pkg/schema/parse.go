package schema

// ParsePrimaryKey parses a single primary-key string.
func ParsePrimaryKey(s string) (PrimaryKey, error) {
	return scanPrimaryKey(s)
}

// ParseRelation parses a single relation string.
func ParseRelation(s string) (Relation, error) {
	return scanRelation(s)
}

// ParsePrimaryKeys parses every entry in order. The first malformed entry aborts
// the parse with a *ParseError naming it.
func ParsePrimaryKeys(entries []string) ([]PrimaryKey, error) {
	out := make([]PrimaryKey, 0, len(entries))
	for _, e := range entries {
		pk, err := scanPrimaryKey(e)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}

// ParseRelations parses every entry in order. The first malformed entry aborts
// the parse with a *ParseError naming it.
func ParseRelations(entries []string) ([]Relation, error) {
	out := make([]Relation, 0, len(entries))
	for _, e := range entries {
		r, err := scanRelation(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RelationsFrom returns the relations whose local table is table, in order.
func RelationsFrom(rels []Relation, table string) []Relation {
	var out []Relation
	for _, r := range rels {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}
