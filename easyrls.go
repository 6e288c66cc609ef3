// Package easyrls compiles a relational schema description into PostgreSQL
// row-level-security policies.
//
// # Schema Description
//
// A schema is described by two lists of strings, usually obtained by running the
// catalog query in sql.IntrospectSQL against the target database:
//
//	{
//	  "relations": [
//	    "public.users.organization_id::bigint references public.organizations(id::bigint)"
//	  ],
//	  "primary_keys": [
//	    "public.users(id::bigint)",
//	    "public.organizations(id::bigint)"
//	  ]
//	}
//
// # Policies
//
// Every table with a primary key receives four policies (select, insert, update,
// delete). Each policy calls authorize() with the table name, the action and a
// JSON object built from the table's key and foreign-key columns:
//
//	CREATE POLICY "users_select" ON users
//	    FOR SELECT
//	    TO authenticated
//	    USING (
//	      authorize(
//	        'users'::text,
//	        'select'::text,
//	        json_build_object(
//	          '$id', users.id,
//	          '$organization_id', users.organization_id
//	        )::jsonb
//	      )
//	    );
//
// authorize() looks up the caller's role in role_permissions and evaluates the
// stored condition with the $-prefixed parameters substituted.
//
// # Basic Usage
//
//	s, err := schema.ValidateSchema(text)
//	if err != nil {
//	    return err
//	}
//	policies, err := compiler.Compile(s)
//
// The root package holds only the types and errors shared by the other packages
// and has no dependencies.
package easyrls

// Action is a row-level operation a policy governs.
type Action string

// Supported actions.
const (
	ActionSelect Action = "select"
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in policy emission order.
var Actions = []Action{ActionSelect, ActionInsert, ActionUpdate, ActionDelete}

// String returns the lower-case action name.
func (a Action) String() string {
	return string(a)
}

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	switch a {
	case ActionSelect, ActionInsert, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}
