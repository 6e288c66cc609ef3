// Package sql provides the embedded SQL shipped with easyrls.
package sql

import (
	_ "embed"
)

// PreambleSQL installs the runtime pieces every generated policy relies on:
//   - role_permissions: one row per role, resource and action with its condition
//   - user_roles: assigns a role to each auth user
//   - custom_access_token_hook: copies role and organization into the JWT
//   - authorize: evaluates the caller's condition for a resource and action
//
// Every statement is safe to re-run.
//
//go:embed preamble.sql
var PreambleSQL string

// IntrospectSQL returns the schema document for the namespace given as $1 as
// a single text column.
//
//go:embed introspect.sql
var IntrospectSQL string
