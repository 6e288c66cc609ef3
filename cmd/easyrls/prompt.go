package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/prompt"
	"github.com/pthm/easyrls/pkg/store"
)

var (
	promptSchema string
	promptRoles  string
	promptModel  string
	promptJSON   bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Render the condition-drafting prompt",
	Long: `Render the prompt that asks a language model to draft role_permissions
inserts from the schema and the roles document.

Send the prompt with any chat client, save the reply, and pass it to
'easyrls compile --script --conditions <file>' or 'easyrls migrate --conditions <file>'.`,
	Example: `  # Print the prompt text
  easyrls prompt

  # Print a chat completion request body
  easyrls prompt --json --model gpt-4o`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, promptSchema)
			if err != nil {
				return err
			}
			doc, err := loadRoles(ctx, st, promptRoles)
			if err != nil {
				return err
			}
			if len(doc) == 0 {
				logf("Warning: no roles defined (run 'easyrls roles add <name>')")
			}

			rendered, err := prompt.Render(s, doc)
			if err != nil {
				return cli.GeneralError("rendering prompt", err)
			}
			if !promptJSON {
				fmt.Print(rendered)
				return nil
			}

			out, err := json.MarshalIndent(prompt.NewRequest(promptModel, rendered), "", "  ")
			if err != nil {
				return cli.GeneralError("encoding request", err)
			}
			fmt.Println(string(out))
			return nil
		})
	},
}

func init() {
	f := promptCmd.Flags()
	f.StringVar(&promptSchema, "schema", "", "path to schema JSON file (default: config or remembered schema)")
	f.StringVar(&promptRoles, "roles", "", "path to roles JSON file (default: config or remembered roles)")
	f.StringVar(&promptModel, "model", prompt.DefaultModel, "model named in --json output")
	f.BoolVar(&promptJSON, "json", false, "print a chat completion request body")
}
