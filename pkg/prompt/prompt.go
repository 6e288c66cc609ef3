// Package prompt renders the condition-drafting prompt from a schema and a
// roles document.
//
// The prompt asks a language model for role_permissions inserts. Sending it is
// left to the caller; the reply is fed back through compiler.ScriptOptions.
package prompt

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
)

// Template is the prompt text. $1 is replaced by the schema JSON and $2 by the
// roles JSON.
//
//go:embed prompt.md
var Template string

// SystemMessage is the system instruction that accompanies the prompt.
const SystemMessage = "You are a SQL Engineer Expert"

// DefaultModel is the chat model named in rendered requests.
const DefaultModel = "gpt-4o"

// Placeholders substituted by RenderTemplate.
const (
	SchemaPlaceholder = "$1"
	RolesPlaceholder  = "$2"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// RenderTemplate substitutes the first occurrence of each placeholder in tmpl.
func RenderTemplate(tmpl, schemaJSON, rolesJSON string) string {
	out := strings.Replace(tmpl, SchemaPlaceholder, schemaJSON, 1)
	return strings.Replace(out, RolesPlaceholder, rolesJSON, 1)
}

// Render returns Template with the compact JSON of s and d substituted.
func Render(s schema.Schema, d roles.Document) (string, error) {
	schemaJSON, err := json.Marshal(s.Clone())
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	if d == nil {
		d = roles.New()
	}
	rolesJSON, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding roles: %w", err)
	}
	return RenderTemplate(Template, string(schemaJSON), string(rolesJSON)), nil
}

// NewRequest wraps a rendered prompt in a chat request. An empty model selects
// DefaultModel.
func NewRequest(model, rendered string) Request {
	if model == "" {
		model = DefaultModel
	}
	return Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: SystemMessage},
			{Role: "user", Content: rendered},
		},
	}
}
