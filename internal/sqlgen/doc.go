// Package sqlgen generates the row-level-security policies for a parsed schema.
//
// # Overview
//
// Every table with a primary key receives one policy per action (select,
// insert, update, delete). Each policy delegates the decision to the
// authorize() function installed by the preamble, passing the table name, the
// action and a JSON object of the row's key and foreign-key columns.
//
// # Generation Flow
//
//  1. TableParams collects the ordered parameter set for a table: own key
//     columns first, then foreign-key columns, first occurrence wins.
//  2. RenderPolicy renders one CREATE POLICY statement from the set.
//  3. GeneratePolicies walks the primary keys in declaration order and emits
//     the four statements for each.
//
// Output is deterministic: the same schema always yields byte-identical SQL.
// The sqldsl subpackage provides the expression values used while rendering.
package sqlgen
