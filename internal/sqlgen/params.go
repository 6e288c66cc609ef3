package sqlgen

import (
	"github.com/pthm/easyrls/internal/sqlgen/sqldsl"
	"github.com/pthm/easyrls/pkg/schema"
)

// ParamPrefix marks authorize() parameter names.
const ParamPrefix = "$"

// Param is one entry of a table's authorize() parameter mapping.
type Param struct {
	// Name is the parameter key, e.g. "$organization_id".
	Name string
	// Column is the table column supplying the value.
	Column string
	// Source records whether the column came from the primary key or a
	// foreign key.
	Source ParamSource
}

// ParamSource identifies where a parameter column was declared.
type ParamSource int

const (
	SourcePrimaryKey ParamSource = iota
	SourceForeignKey
)

func (s ParamSource) String() string {
	if s == SourcePrimaryKey {
		return "primary key"
	}
	return "foreign key"
}

// ParamSet is an insertion-ordered set of parameters keyed by name. The first
// parameter added under a name wins.
type ParamSet struct {
	params []Param
	seen   map[string]struct{}
}

// Add inserts p unless a parameter with the same name is present. It reports
// whether p was added.
func (s *ParamSet) Add(p Param) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[p.Name]; ok {
		return false
	}
	s.seen[p.Name] = struct{}{}
	s.params = append(s.params, p)
	return true
}

// Params returns the parameters in insertion order.
func (s *ParamSet) Params() []Param {
	return append([]Param{}, s.params...)
}

// Names returns the parameter names in insertion order.
func (s *ParamSet) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Len returns the number of parameters.
func (s *ParamSet) Len() int {
	return len(s.params)
}

// TableParams collects the authorize() parameters for pk: its own key columns
// in declaration order, then the local column of every relation in rels whose
// table is pk.Table, in relation order.
func TableParams(pk schema.PrimaryKey, rels []schema.Relation) *ParamSet {
	set := &ParamSet{}
	for _, col := range pk.Columns {
		set.Add(Param{Name: ParamPrefix + col, Column: col, Source: SourcePrimaryKey})
	}
	for _, rel := range schema.RelationsFrom(rels, pk.Table) {
		set.Add(Param{Name: ParamPrefix + rel.Column, Column: rel.Column, Source: SourceForeignKey})
	}
	return set
}

// JSONObject builds the json_build_object call that passes the parameters of
// table to authorize().
func (s *ParamSet) JSONObject(table string) sqldsl.JSONBuildObject {
	pairs := make([]sqldsl.JSONPair, len(s.params))
	for i, p := range s.params {
		pairs[i] = sqldsl.JSONPair{Key: p.Name, Value: sqldsl.Col{Table: table, Column: p.Column}}
	}
	return sqldsl.JSONBuildObject{Pairs: pairs}
}
