package sqlgen

import (
	"strings"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/sqlgen/sqldsl"
	"github.com/pthm/easyrls/pkg/schema"
)

// Names used in every generated policy.
const (
	AuthorizeFunc = "authorize"
	PolicyRole    = "authenticated"
)

// Policy is one generated CREATE POLICY statement.
type Policy struct {
	Table  string
	Action easyrls.Action
	Name   string
	Params []string
	SQL    string
}

// PolicyName returns the policy name for table and action: <table>_<action>.
func PolicyName(table string, action easyrls.Action) string {
	return table + "_" + action.String()
}

// Authorize returns the authorize(<table>, <action>, <parameters>) call a
// policy defers to.
func Authorize(table string, action easyrls.Action, params *ParamSet) sqldsl.Func {
	return sqldsl.Func{Name: AuthorizeFunc, Args: []sqldsl.Expr{
		sqldsl.Text(table),
		sqldsl.Text(action.String()),
		sqldsl.Cast{Expr: params.JSONObject(table), Type: "jsonb"},
	}}
}

// RenderPolicy renders the CREATE POLICY statement for one table and action.
// INSERT policies check the new row.
func RenderPolicy(table string, action easyrls.Action, params *ParamSet) string {
	return sqldsl.CreatePolicy{
		Name:      PolicyName(table, action),
		Table:     table,
		Command:   strings.ToUpper(action.String()),
		Role:      PolicyRole,
		WithCheck: action == easyrls.ActionInsert,
		Predicate: Authorize(table, action, params),
	}.SQL()
}

// GeneratePolicies produces four policies per primary key, in primary-key
// order and then in easyrls.Actions order. Relations whose table has no
// primary key contribute nothing.
func GeneratePolicies(pks []schema.PrimaryKey, rels []schema.Relation) []Policy {
	policies := make([]Policy, 0, len(pks)*len(easyrls.Actions))
	for _, pk := range pks {
		params := TableParams(pk, rels)
		for _, action := range easyrls.Actions {
			policies = append(policies, Policy{
				Table:  pk.Table,
				Action: action,
				Name:   PolicyName(pk.Table, action),
				Params: params.Names(),
				SQL:    RenderPolicy(pk.Table, action, params),
			})
		}
	}
	return policies
}

// RenderPolicies concatenates the statements, each followed by a newline.
func RenderPolicies(policies []Policy) string {
	var sb strings.Builder
	for _, p := range policies {
		sb.WriteString(p.SQL)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PolicyTables returns the distinct tables of policies in order.
func PolicyTables(policies []Policy) []string {
	return schema.NewTableSet(tableNames(policies)...).Names()
}

func tableNames(policies []Policy) []string {
	names := make([]string, len(policies))
	for i, p := range policies {
		names[i] = p.Table
	}
	return names
}
