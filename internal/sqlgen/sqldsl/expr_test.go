package sqldsl

import (
	"strings"
	"testing"
)

func TestExpr_SQL(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"qualified column", Col{Table: "users", Column: "id"}, "users.id"},
		{"bare column", Col{Column: "id"}, "id"},
		{"literal", Lit("users"), "'users'"},
		{"literal with quote", Lit("o'brien"), "'o''brien'"},
		{"text cast", Text("select"), "'select'::text"},
		{"jsonb cast", Cast{Expr: Col{Column: "x"}, Type: "jsonb"}, "x::jsonb"},
		{"func no args", Func{Name: "now"}, "now()"},
		{"func with args", Func{Name: "authorize", Args: []Expr{Text("t"), Text("select"), Col{Column: "p"}}}, "authorize('t'::text, 'select'::text, p)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdent() = %q", got)
	}
}

func TestFoldIdent(t *testing.T) {
	if got := FoldIdent("Users_App_Zones2"); got != "users_app_zones2" {
		t.Errorf("FoldIdent() = %q", got)
	}
	if got := FoldIdent("Ünïcode"); got != "Ünïcode" {
		t.Errorf("FoldIdent(non-ASCII) = %q", got)
	}
}

func TestJSONBuildObject(t *testing.T) {
	obj := JSONBuildObject{Pairs: []JSONPair{
		{Key: "$id", Value: Col{Table: "users", Column: "id"}},
		{Key: "$organization_id", Value: Col{Table: "users", Column: "organization_id"}},
	}}

	want := "json_build_object('$id', users.id, '$organization_id', users.organization_id)"
	if got := obj.SQL(); got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}

	wantPairs := "'$id', users.id,\n  '$organization_id', users.organization_id"
	if got := obj.PairsSQL(",\n  "); got != wantPairs {
		t.Errorf("PairsSQL() = %q, want %q", got, wantPairs)
	}

	wantBlock := "json_build_object(\n  '$id', users.id,\n'$organization_id', users.organization_id\n)"
	if got := obj.Block(); got != wantBlock {
		t.Errorf("Block() = %q, want %q", got, wantBlock)
	}

	if got := (JSONBuildObject{}).SQL(); got != "json_build_object()" {
		t.Errorf("empty SQL() = %q", got)
	}
	if got := (JSONBuildObject{}).Block(); got != "json_build_object()" {
		t.Errorf("empty Block() = %q", got)
	}
}

func TestLayout(t *testing.T) {
	call := Func{Name: "authorize", Args: []Expr{
		Text("users"),
		Cast{Expr: JSONBuildObject{Pairs: []JSONPair{{Key: "$id", Value: Col{Table: "users", Column: "id"}}}}, Type: "jsonb"},
	}}
	want := strings.Join([]string{
		"authorize(",
		"  'users'::text,",
		"  json_build_object(",
		"    '$id', users.id",
		"  )::jsonb",
		")",
	}, "\n")
	if got := Layout(call); got != want {
		t.Errorf("Layout() = %q, want %q", got, want)
	}

	if got := Layout(Col{Column: "id"}); got != "id" {
		t.Errorf("Layout(col) = %q", got)
	}
	if got := Layout(Func{Name: "now"}); got != "now()" {
		t.Errorf("Layout(no args) = %q", got)
	}
}

func TestDDL(t *testing.T) {
	if got := (EnableRLS{Table: "users"}).SQL(); got != "ALTER TABLE users ENABLE ROW LEVEL SECURITY;" {
		t.Errorf("EnableRLS.SQL() = %q", got)
	}
	if got := (DropPolicy{Name: "users_select", Table: "users"}).SQL(); got != `DROP POLICY IF EXISTS "users_select" ON users;` {
		t.Errorf("DropPolicy.SQL() = %q", got)
	}
}

func TestCreatePolicy(t *testing.T) {
	p := CreatePolicy{
		Name:      "users_insert",
		Table:     "users",
		Command:   "INSERT",
		Role:      "authenticated",
		WithCheck: true,
		Predicate: Func{Name: "allowed", Args: []Expr{Col{Table: "users", Column: "id"}}},
	}
	want := strings.Join([]string{
		`CREATE POLICY "users_insert" ON users`,
		"    FOR INSERT",
		"    TO authenticated",
		"    WITH CHECK (",
		"      allowed(",
		"        users.id",
		"      )",
		"    );",
	}, "\n")
	if got := p.SQL(); got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}

	p.WithCheck = false
	if got := p.SQL(); !strings.Contains(got, "    USING (\n") {
		t.Errorf("SQL() without check = %q", got)
	}
}

func TestIndentLines(t *testing.T) {
	if got := IndentLines("a\n  b\n", "  "); got != "  a\n    b" {
		t.Errorf("IndentLines() = %q", got)
	}
	if got := IndentLines("a\n\nb", "  "); got != "  a\n\n  b" {
		t.Errorf("IndentLines(blank line) = %q", got)
	}
	if got := IndentLines("", "  "); got != "" {
		t.Errorf("IndentLines(empty) = %q", got)
	}
}

func TestBanner(t *testing.T) {
	got := Banner("Policies")
	lines := strings.Split(got, "\n")
	if len(lines) != 3 || lines[1] != "-- Policies" || !strings.HasPrefix(lines[0], "-- ===") {
		t.Errorf("Banner() = %q", got)
	}
}
