// Package compiler provides public APIs for compiling schemas to row-level
// security policies.
//
// This is a thin wrapper around internal/sqlgen that exposes only the public
// types and functions needed by external consumers. For applying the result
// to a database, use pkg/migrator instead.
package compiler

import (
	"github.com/pthm/easyrls/internal/sqlgen"
	"github.com/pthm/easyrls/pkg/schema"
)

// Policy is one generated CREATE POLICY statement with its metadata.
type Policy = sqlgen.Policy

// PolicyName returns the policy name for a table and action.
var PolicyName = sqlgen.PolicyName

// PolicyTables returns the distinct tables covered by a list of policies.
var PolicyTables = sqlgen.PolicyTables

// CompilePolicies parses s and returns its policies in emission order. A
// malformed relation or primary key aborts compilation with a
// *schema.ParseError.
func CompilePolicies(s schema.Schema) ([]Policy, error) {
	rels, err := schema.ParseRelations(s.Relations)
	if err != nil {
		return nil, err
	}
	pks, err := schema.ParsePrimaryKeys(s.PrimaryKeys)
	if err != nil {
		return nil, err
	}
	return sqlgen.GeneratePolicies(pks, rels), nil
}

// Compile returns the policy script for s: four statements per primary key,
// each followed by a newline. Nothing is returned on error.
func Compile(s schema.Schema) (string, error) {
	policies, err := CompilePolicies(s)
	if err != nil {
		return "", err
	}
	return sqlgen.RenderPolicies(policies), nil
}
