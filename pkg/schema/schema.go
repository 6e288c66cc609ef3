// Package schema holds the textual schema description and the structured model
// derived from it.
//
// A Schema is the persisted unit: two lists of strings describing foreign keys
// and primary keys. The structured forms (PrimaryKey, Relation) are derived on
// demand by ParsePrimaryKeys and ParseRelations and are never written back.
//
// # Grammar
//
// Relation strings name a single-column foreign key:
//
//	public.users.organization_id::bigint references public.organizations(id::bigint)
//
// Primary-key strings name a table and its key columns:
//
//	public.users_app_zones(user_id::uuid, app_zone_id::uuid)
//
// Identifiers are [A-Za-z0-9_]+ and keep their casing. Validation accepts any
// non-empty primary-key payload without a closing parenthesis; parsing
// additionally requires every comma-separated piece to be <column>::<type>.
//
// # Mutation
//
// Schemas are treated as values. DeleteTable returns a new Schema and never
// touches its argument.
package schema

import (
	"encoding/json"
	"fmt"
)

// Schema is the serialized schema description.
type Schema struct {
	Relations   []string `json:"relations"`
	PrimaryKeys []string `json:"primary_keys"`
}

// PrimaryKey is a parsed primary-key string. Columns keep declaration order and
// carry no type annotation.
type PrimaryKey struct {
	Schema  string
	Table   string
	Columns []string
}

// Relation is a parsed single-column foreign key.
type Relation struct {
	Schema    string
	Table     string
	Column    string
	RefSchema string
	RefTable  string
	RefColumn string
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	return Schema{
		Relations:   append([]string{}, s.Relations...),
		PrimaryKeys: append([]string{}, s.PrimaryKeys...),
	}
}

// Marshal encodes s as indented JSON. Nil lists are written as empty arrays.
func (s Schema) Marshal() ([]byte, error) {
	out := s.Clone()
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return data, nil
}

// String returns the compact JSON form of s.
func (s Schema) String() string {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return ""
	}
	return string(data)
}

// QualifiedName returns schema.table.
func (pk PrimaryKey) QualifiedName() string {
	return pk.Schema + "." + pk.Table
}

// String renders the relation without column types.
func (r Relation) String() string {
	return fmt.Sprintf("%s.%s.%s references %s.%s(%s)",
		r.Schema, r.Table, r.Column, r.RefSchema, r.RefTable, r.RefColumn)
}
