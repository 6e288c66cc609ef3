package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

var rolesFile string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Manage the roles document",
	Long: `Manage the roles document: the application roles and, for each table and
action, a plain-language condition or an explicit denial. The document is the
input to 'easyrls prompt'.`,
}

// editRoles runs editRolesIn against the configured store.
func editRoles(fn func(doc roles.Document, commit func() error) error) error {
	ctx := context.Background()
	return withStore(ctx, func(st store.Store) error {
		return editRolesIn(ctx, st, fn)
	})
}

// editRolesIn loads the roles document and applies fn. fn may call commit
// after each change; commits go through one autosaver, so a run of edits
// reaches the store as a single write. The document is committed once more
// when fn succeeds, and the autosaver is flushed before returning.
func editRolesIn(ctx context.Context, st store.Store, fn func(doc roles.Document, commit func() error) error) error {
	doc, err := loadRoles(ctx, st, rolesFile)
	if err != nil {
		return err
	}

	saver := store.NewAutosaver(st, store.KeyRoles, store.DefaultAutosaveDelay)
	var committed []byte
	commit := func() error {
		if err := doc.Validate(); err != nil {
			return cli.GeneralError("invalid roles document", err)
		}
		data, err := doc.Marshal()
		if err != nil {
			return cli.GeneralError("encoding roles", err)
		}
		committed = data
		saver.Schedule(string(data))
		return nil
	}

	editErr := fn(doc, commit)
	if editErr == nil {
		editErr = commit()
	}
	if err := saver.Close(); err != nil {
		return cli.GeneralError("saving roles", err)
	}
	if committed != nil {
		if err := writeRolesFile(committed, rolesFile); err != nil {
			return err
		}
	}
	return editErr
}

var rolesAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Add roles",
	Example: `  easyrls roles add admin member`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			if strings.TrimSpace(arg) == "" {
				return cli.GeneralError("role name must not be empty", nil)
			}
		}
		return editRoles(func(doc roles.Document, commit func() error) error {
			for _, arg := range args {
				logf("Added role %s", doc.AddRole(arg))
				if err := commit(); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var rolesRemoveCmd = &cobra.Command{
	Use:     "remove <name>...",
	Aliases: []string{"rm"},
	Short:   "Remove roles",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editRoles(func(doc roles.Document, commit func() error) error {
			for _, arg := range args {
				doc.RemoveRole(arg)
				logf("Removed role %s", strings.ToLower(arg))
				if err := commit(); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func parseAction(s string) (easyrls.Action, error) {
	a := easyrls.Action(strings.ToLower(s))
	if !a.Valid() {
		return "", cli.GeneralError(fmt.Sprintf("unknown action %q (want select, insert, update or delete)", s), nil)
	}
	return a, nil
}

var rolesPermitCmd = &cobra.Command{
	Use:   "permit <role> <table> <action> <condition>",
	Short: "Allow an action when a condition holds",
	Example: `  easyrls roles permit member projects select "projects of the member's organization"`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := parseAction(args[2])
		if err != nil {
			return err
		}
		return editRoles(func(doc roles.Document, _ func() error) error {
			return doc.SetPermission(args[0], args[1], action, args[3])
		})
	},
}

var rolesRestrictCmd = &cobra.Command{
	Use:     "restrict <role> <table> <action>",
	Short:   "Deny an action",
	Example: `  easyrls roles restrict member projects delete`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := parseAction(args[2])
		if err != nil {
			return err
		}
		return editRoles(func(doc roles.Document, _ func() error) error {
			return doc.Restrict(args[0], args[1], action)
		})
	},
}

var rolesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the roles document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			doc, err := loadRoles(ctx, st, rolesFile)
			if err != nil {
				return err
			}
			if len(doc) == 0 {
				fmt.Println("No roles defined.")
				return nil
			}

			table := newTable(os.Stdout, "Role", "Table", "Action", "Access", "Condition")
			table.AppendBulk(roleRows(doc))
			table.Render()

			if s, err := loadSchema(ctx, st, ""); err == nil {
				if unknown := doc.UnknownResources(schema.TableNames(s)); len(unknown) > 0 {
					logf("\nWarning: not tables in the schema: %s", strings.Join(unknown, ", "))
				}
			}
			return nil
		})
	},
}

var rolesDenyRestCmd = &cobra.Command{
	Use:   "deny-rest",
	Short: "Deny every action a role has no permission for",
	Long: `For every role, add a restriction for each schema table and action that has
neither a permission nor a restriction yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		return withStore(ctx, func(st store.Store) error {
			s, err := loadSchema(ctx, st, "")
			if err != nil {
				return err
			}
			doc, err := loadRoles(ctx, st, rolesFile)
			if err != nil {
				return err
			}
			doc.RestrictUnset(schema.TableNames(s).Names())
			return saveRoles(ctx, doc, st, rolesFile)
		})
	},
}

// roleRows flattens a roles document for display.
func roleRows(d roles.Document) [][]string {
	var rows [][]string
	for _, name := range d.Roles() {
		r := d[name]
		if len(r.Permissions) == 0 && len(r.RestrictedActions) == 0 {
			rows = append(rows, []string{name, "", "", "", ""})
			continue
		}
		for _, p := range r.Permissions {
			rows = append(rows, []string{name, p.Resource, p.Action.String(), "allow", p.Description})
		}
		for _, x := range r.RestrictedActions {
			rows = append(rows, []string{name, x.Resource, x.Action.String(), "deny", ""})
		}
	}
	return rows
}

func init() {
	rolesCmd.PersistentFlags().StringVar(&rolesFile, "roles", "", "path to roles JSON file (default: config or remembered roles)")
	rolesCmd.AddCommand(rolesAddCmd, rolesRemoveCmd, rolesPermitCmd, rolesRestrictCmd, rolesShowCmd, rolesDenyRestCmd)
}
