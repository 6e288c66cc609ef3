// Package main provides the easyrls CLI.
//
// The CLI supports:
//   - validate, compile, tables, delete-table: work with the schema document
//   - roles, prompt: manage roles and render the condition-drafting prompt
//   - introspect, migrate, status, doctor: talk to PostgreSQL
//
// Commands that only work with documents do not need database access. The
// last validated schema, the roles document and drafted conditions are
// remembered in a local store so later commands can run without arguments.
//
// Usage:
//
//	easyrls [flags] <command>
package main

func main() {
	Execute()
}
