package schema

import "github.com/pthm/easyrls/internal/strset"

// TableSet is an insertion-ordered set of table names.
type TableSet struct {
	names strset.Set
}

// NewTableSet builds a set from names, keeping the first occurrence of each.
func NewTableSet(names ...string) TableSet {
	return TableSet{names: strset.New(names...)}
}

func (t *TableSet) add(name string) {
	t.names.Add(name)
}

// Has reports whether name is in the set.
func (t TableSet) Has(name string) bool {
	return t.names.Has(name)
}

// Len returns the number of distinct names.
func (t TableSet) Len() int {
	return t.names.Len()
}

// Names returns the names in insertion order.
func (t TableSet) Names() []string {
	return t.names.Items()
}

// TableNames returns the distinct tables declared in s.PrimaryKeys. Entries that
// do not have the primary-key shape are skipped.
func TableNames(s Schema) TableSet {
	var t TableSet
	for _, entry := range s.PrimaryKeys {
		h, err := scanPrimaryKeyHead(entry)
		if err != nil {
			continue
		}
		t.add(h.table)
	}
	return t
}

// DeleteTable returns a copy of s without the primary keys of table. Entries
// that do not have the primary-key shape are dropped as well. Relations are
// copied unchanged, including those that mention table.
func DeleteTable(s Schema, table string) Schema {
	out := Schema{
		Relations:   append([]string{}, s.Relations...),
		PrimaryKeys: []string{},
	}
	for _, entry := range s.PrimaryKeys {
		h, err := scanPrimaryKeyHead(entry)
		if err != nil || h.table == table {
			continue
		}
		out.PrimaryKeys = append(out.PrimaryKeys, entry)
	}
	return out
}

// DuplicateTables returns the tables that appear in more than one primary-key
// entry, in order of their second appearance.
func DuplicateTables(s Schema) []string {
	seen := make(map[string]int)
	var dups []string
	for _, entry := range s.PrimaryKeys {
		h, err := scanPrimaryKeyHead(entry)
		if err != nil {
			continue
		}
		seen[h.table]++
		if seen[h.table] == 2 {
			dups = append(dups, h.table)
		}
	}
	return dups
}

// DanglingRelations returns the relations whose local table has no primary key.
// Such relations are legal but never reach compiled output.
func DanglingRelations(s Schema) ([]Relation, error) {
	rels, err := ParseRelations(s.Relations)
	if err != nil {
		return nil, err
	}
	tables := TableNames(s)
	var out []Relation
	for _, r := range rels {
		if !tables.Has(r.Table) {
			out = append(out, r)
		}
	}
	return out, nil
}
