package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pthm/easyrls"
)

// Field names as they appear in the JSON document.
const (
	FieldRelations   = "relations"
	FieldPrimaryKeys = "primary_keys"
)

// ValidationError describes why a schema document was rejected. Index is the
// offending element, or -1 when the whole field (or document) is at fault.
type ValidationError struct {
	Field string
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("invalid schema: %v", e.Err)
	case e.Index < 0:
		return fmt.Sprintf("invalid schema: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("invalid schema: %s[%d]: %v", e.Field, e.Index, e.Err)
	}
}

func (e *ValidationError) Unwrap() []error {
	return []error{e.Err, easyrls.ErrInvalidSchema}
}

// Validate reports whether text is a well-formed schema document.
func Validate(text string) bool {
	_, err := ValidateSchema(text)
	return err == nil
}

// ValidateSchema decodes text and checks it against the schema grammar. Both
// lists must be present and non-empty, every relation must match the relation
// grammar and every primary key the loose primary-key shape. The first failure
// is returned. Relations are not checked against the primary keys.
func ValidateSchema(text string) (Schema, error) {
	s, err := decodeSchema(text)
	if err != nil {
		return Schema{}, err
	}
	if err := CheckSchema(s); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// decodeSchema decodes the two lists by their exact field names. Struct
// decoding would also accept keys that differ only in case.
func decodeSchema(text string) (Schema, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Schema{}, &ValidationError{Index: -1, Err: fmt.Errorf("decoding JSON: %w", err)}
	}

	var s Schema
	for _, f := range []struct {
		name string
		dst  *[]string
	}{
		{FieldRelations, &s.Relations},
		{FieldPrimaryKeys, &s.PrimaryKeys},
	} {
		raw, ok := fields[f.name]
		if !ok {
			return Schema{}, &ValidationError{Field: f.name, Index: -1, Err: fmt.Errorf("missing")}
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return Schema{}, &ValidationError{Field: f.name, Index: -1, Err: fmt.Errorf("decoding JSON: %w", err)}
		}
	}
	return s, nil
}

// CheckSchema applies the validation rules of ValidateSchema to an already
// decoded schema.
func CheckSchema(s Schema) error {
	if len(s.Relations) == 0 {
		return &ValidationError{Field: FieldRelations, Index: -1, Err: fmt.Errorf("must be a non-empty array")}
	}
	if len(s.PrimaryKeys) == 0 {
		return &ValidationError{Field: FieldPrimaryKeys, Index: -1, Err: fmt.Errorf("must be a non-empty array")}
	}
	for i, rel := range s.Relations {
		if _, err := scanRelation(rel); err != nil {
			return &ValidationError{Field: FieldRelations, Index: i, Err: err}
		}
	}
	for i, pk := range s.PrimaryKeys {
		if _, err := scanPrimaryKeyHead(pk); err != nil {
			return &ValidationError{Field: FieldPrimaryKeys, Index: i, Err: err}
		}
	}
	return nil
}
