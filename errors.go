package easyrls

import "errors"

// Sentinel errors for common failure modes. Parse and validation errors returned by
// the schema and roles packages wrap these, so callers can branch on the category
// with errors.Is or the Is*Err helpers without inspecting messages.
var (
	// ErrInvalidSchema is returned when a schema document does not satisfy the
	// grammar. Every more specific schema error wraps it.
	ErrInvalidSchema = errors.New("easyrls: invalid schema")

	// ErrMalformedPrimaryKey is returned when a primary key declaration does not
	// match "schema.table(column::type, ...)".
	ErrMalformedPrimaryKey = errors.New("easyrls: malformed primary key")

	// ErrMalformedRelation is returned when a relation declaration does not match
	// "schema.table.column::type references schema.table(column::type)".
	ErrMalformedRelation = errors.New("easyrls: malformed relation")

	// ErrInvalidRoles is returned when a roles document cannot be decoded or
	// contains an unusable permission.
	ErrInvalidRoles = errors.New("easyrls: invalid roles")

	// ErrNotFound is returned by stores when a key has never been saved.
	ErrNotFound = errors.New("easyrls: not found")

	// ErrMissingAuthorize is returned when the authorize() function is absent from
	// the target database. Apply the preamble with `easyrls migrate`.
	ErrMissingAuthorize = errors.New("easyrls: authorize function missing")
)

// IsInvalidSchemaErr returns true if err is or wraps ErrInvalidSchema.
func IsInvalidSchemaErr(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// IsMalformedPrimaryKeyErr returns true if err is or wraps ErrMalformedPrimaryKey.
func IsMalformedPrimaryKeyErr(err error) bool {
	return errors.Is(err, ErrMalformedPrimaryKey)
}

// IsMalformedRelationErr returns true if err is or wraps ErrMalformedRelation.
func IsMalformedRelationErr(err error) bool {
	return errors.Is(err, ErrMalformedRelation)
}

// IsInvalidRolesErr returns true if err is or wraps ErrInvalidRoles.
func IsInvalidRolesErr(err error) bool {
	return errors.Is(err, ErrInvalidRoles)
}

// IsNotFoundErr returns true if err is or wraps ErrNotFound.
func IsNotFoundErr(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMissingAuthorizeErr returns true if err is or wraps ErrMissingAuthorize.
func IsMissingAuthorizeErr(err error) bool {
	return errors.Is(err, ErrMissingAuthorize)
}

// PostgreSQL error codes used to classify driver errors.
const (
	PgUndefinedTable    = "42P01" // undefined_table
	PgUndefinedFunction = "42883" // undefined_function
)
