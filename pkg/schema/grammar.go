package schema

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pthm/easyrls"
)

// ParseError reports where a primary-key or relation string stopped matching
// the grammar. Kind is easyrls.ErrMalformedPrimaryKey or
// easyrls.ErrMalformedRelation; both also match easyrls.ErrInvalidSchema.
type ParseError struct {
	Kind     error
	Input    string
	Offset   int
	Expected string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q: expected %s at offset %d", e.Kind, e.Input, e.Expected, e.Offset)
}

// Unwrap exposes the kind and the generic invalid-schema sentinel.
func (e *ParseError) Unwrap() []error {
	return []error{e.Kind, easyrls.ErrInvalidSchema}
}

// scanner walks a single schema string byte by byte.
type scanner struct {
	kind  error
	input string
	pos   int
}

func newScanner(kind error, input string) *scanner {
	return &scanner{kind: kind, input: input}
}

func (s *scanner) fail(expected string) *ParseError {
	return &ParseError{Kind: s.kind, Input: s.input, Offset: s.pos, Expected: expected}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.input)
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// ident consumes [A-Za-z0-9_]+.
func (s *scanner) ident(what string) (string, *ParseError) {
	start := s.pos
	for !s.eof() && isWordByte(s.input[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		return "", s.fail(what)
	}
	return s.input[start:s.pos], nil
}

// literal consumes lit exactly.
func (s *scanner) literal(lit string) *ParseError {
	if !strings.HasPrefix(s.input[s.pos:], lit) {
		return s.fail(fmt.Sprintf("%q", lit))
	}
	s.pos += len(lit)
	return nil
}

// spaces consumes one or more whitespace characters.
func (s *scanner) spaces() *ParseError {
	start := s.pos
	for !s.eof() {
		r, size := utf8.DecodeRuneInString(s.input[s.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		s.pos += size
	}
	if s.pos == start {
		return s.fail("whitespace")
	}
	return nil
}

func (s *scanner) end() *ParseError {
	if !s.eof() {
		return s.fail("end of input")
	}
	return nil
}

// scanRelation matches
//
//	<schema>.<table>.<column>::<type> references <schema>.<table>(<column>::<type>)
func scanRelation(input string) (Relation, error) {
	s := newScanner(easyrls.ErrMalformedRelation, input)
	var r Relation
	var err *ParseError

	if r.Schema, err = s.ident("schema name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("."); err != nil {
		return Relation{}, err
	}
	if r.Table, err = s.ident("table name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("."); err != nil {
		return Relation{}, err
	}
	if r.Column, err = s.ident("column name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("::"); err != nil {
		return Relation{}, err
	}
	if _, err = s.ident("column type"); err != nil {
		return Relation{}, err
	}
	if err = s.spaces(); err != nil {
		return Relation{}, err
	}
	if err = s.literal("references"); err != nil {
		return Relation{}, err
	}
	if err = s.spaces(); err != nil {
		return Relation{}, err
	}
	if r.RefSchema, err = s.ident("referenced schema name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("."); err != nil {
		return Relation{}, err
	}
	if r.RefTable, err = s.ident("referenced table name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("("); err != nil {
		return Relation{}, err
	}
	if r.RefColumn, err = s.ident("referenced column name"); err != nil {
		return Relation{}, err
	}
	if err = s.literal("::"); err != nil {
		return Relation{}, err
	}
	if _, err = s.ident("referenced column type"); err != nil {
		return Relation{}, err
	}
	if err = s.literal(")"); err != nil {
		return Relation{}, err
	}
	if err = s.end(); err != nil {
		return Relation{}, err
	}
	return r, nil
}

// primaryKeyHead is the loosely matched shape <schema>.<table>(<payload>).
type primaryKeyHead struct {
	schema, table string
	payload       string
	payloadOffset int
}

// scanPrimaryKeyHead matches the validation-time primary-key shape: the payload
// is any non-empty run of characters other than ')', and the closing
// parenthesis ends the input.
func scanPrimaryKeyHead(input string) (primaryKeyHead, *ParseError) {
	s := newScanner(easyrls.ErrMalformedPrimaryKey, input)
	var h primaryKeyHead
	var err *ParseError

	if h.schema, err = s.ident("schema name"); err != nil {
		return h, err
	}
	if err = s.literal("."); err != nil {
		return h, err
	}
	if h.table, err = s.ident("table name"); err != nil {
		return h, err
	}
	if err = s.literal("("); err != nil {
		return h, err
	}
	h.payloadOffset = s.pos
	for !s.eof() && s.input[s.pos] != ')' {
		s.pos++
	}
	if s.pos == h.payloadOffset {
		return h, s.fail("key columns")
	}
	h.payload = s.input[h.payloadOffset:s.pos]
	if err = s.literal(")"); err != nil {
		return h, err
	}
	if err = s.end(); err != nil {
		return h, err
	}
	return h, nil
}

// scanPrimaryKey applies the parse-time rule on top of the loose shape: the
// payload splits on ", " and every piece is <column>::<type> with a non-empty
// type containing no comma.
func scanPrimaryKey(input string) (PrimaryKey, error) {
	h, perr := scanPrimaryKeyHead(input)
	if perr != nil {
		return PrimaryKey{}, perr
	}

	pk := PrimaryKey{Schema: h.schema, Table: h.table}
	offset := h.payloadOffset
	for _, piece := range strings.Split(h.payload, ", ") {
		s := newScanner(easyrls.ErrMalformedPrimaryKey, input)
		s.pos = offset
		limit := offset + len(piece)

		col, err := s.ident("column name")
		if err != nil {
			return PrimaryKey{}, err
		}
		if err := s.literal("::"); err != nil {
			return PrimaryKey{}, err
		}
		if s.pos == limit {
			return PrimaryKey{}, s.fail("column type")
		}
		if i := strings.IndexByte(input[s.pos:limit], ','); i >= 0 {
			s.pos += i
			return PrimaryKey{}, s.fail(`", " between key columns`)
		}

		pk.Columns = append(pk.Columns, col)
		offset = limit + len(", ")
	}
	return pk, nil
}
