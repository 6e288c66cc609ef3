package sqldsl

// EnableRLS renders ALTER TABLE ... ENABLE ROW LEVEL SECURITY.
type EnableRLS struct {
	Table string
}

// SQL renders the statement.
func (e EnableRLS) SQL() string {
	return "ALTER TABLE " + e.Table + " ENABLE ROW LEVEL SECURITY;"
}

// DropPolicy renders DROP POLICY IF EXISTS "<name>" ON <table>.
type DropPolicy struct {
	Name  string
	Table string
}

// SQL renders the statement.
func (d DropPolicy) SQL() string {
	return "DROP POLICY IF EXISTS " + QuoteIdent(d.Name) + " ON " + d.Table + ";"
}

// CreatePolicy renders CREATE POLICY "<name>" ON <table> with the predicate
// laid out by Layout.
type CreatePolicy struct {
	Name    string
	Table   string
	Command string
	Role    string
	// WithCheck selects WITH CHECK instead of USING.
	WithCheck bool
	Predicate Expr
}

// SQL renders the statement.
func (p CreatePolicy) SQL() string {
	clause := "USING"
	if p.WithCheck {
		clause = "WITH CHECK"
	}
	body := "FOR " + p.Command + "\n" +
		"TO " + p.Role + "\n" +
		clause + " (\n" +
		IndentLines(Layout(p.Predicate), "  ") + "\n" +
		");"
	return "CREATE POLICY " + QuoteIdent(p.Name) + " ON " + p.Table + "\n" + IndentLines(body, "    ")
}
