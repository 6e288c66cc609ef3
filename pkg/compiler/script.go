package compiler

import (
	"strings"

	"github.com/pthm/easyrls/pkg/schema"
)

// ScriptOptions configures Script.
type ScriptOptions struct {
	// Schema is compiled into the policy section.
	Schema schema.Schema
	// Preamble is emitted first when non-empty. Usually sql.PreambleSQL.
	Preamble string
	// Conditions holds drafted role_permissions inserts. Markdown code fences
	// are stripped.
	Conditions string
}

// StripFences removes the first "```sql" and then the first "```" from text.
func StripFences(text string) string {
	text = strings.Replace(text, "```sql", "", 1)
	return strings.Replace(text, "```", "", 1)
}

// Script assembles the full installation script: preamble, conditions, then
// policies. Sections are separated by a newline when the previous section does
// not already end with one.
func Script(opts ScriptOptions) (string, error) {
	policies, err := Compile(opts.Schema)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	appendSection := func(section string) {
		if section == "" {
			return
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString(section)
	}

	appendSection(opts.Preamble)
	appendSection(StripFences(opts.Conditions))
	appendSection(policies)
	return sb.String(), nil
}
