// Package sqldsl provides typed building blocks for the PostgreSQL text easyrls
// generates.
//
// # Overview
//
// Policy and migration SQL is assembled from small values that each render
// themselves through a SQL() method, instead of through ad-hoc string
// concatenation. Literal quoting and identifier quoting live in one place.
//
// # Expression Types
//
//	Col{Table: "users", Column: "id"}      // users.id
//	Lit("users")                           // 'users'
//	Cast{Expr: Lit("users"), Type: "text"} // 'users'::text
//	Func{Name: "authorize", Args: ...}     // authorize(a, b)
//	JSONBuildObject{Pairs: ...}            // json_build_object('$id', users.id)
//
// # Statement Types
//
//	EnableRLS{Table: "users"}                        // ALTER TABLE users ENABLE ROW LEVEL SECURITY;
//	DropPolicy{Name: "users_select", Table: "users"} // DROP POLICY IF EXISTS "users_select" ON users;
//	CreatePolicy{Name: "users_select", ...}          // CREATE POLICY "users_select" ON users ...
//
// # Layout
//
// Func, Cast and JSONBuildObject also implement Blocker. Layout renders them
// one argument per line, and IndentLines shifts a rendered block into place:
//
//	authorize(
//	  'users'::text,
//	  'select'::text,
//	  json_build_object(
//	    '$id', users.id
//	  )::jsonb
//	)
package sqldsl
