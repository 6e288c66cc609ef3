package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/internal/cli"
	"github.com/pthm/easyrls/pkg/checker"
	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
	"github.com/pthm/easyrls/pkg/store"
)

func TestResolveString(t *testing.T) {
	assert.Equal(t, "flag", resolveString("flag", "config", "default"))
	assert.Equal(t, "config", resolveString("", "config", "default"))
	assert.Equal(t, "default", resolveString("", "", "default"))
	assert.Empty(t, resolveString())
}

func TestResolveBool(t *testing.T) {
	assert.True(t, resolveBool(false, true))
	assert.False(t, resolveBool(false, false))
	assert.False(t, resolveBool())
}

func TestSourcePath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "easyrls.schema.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	assert.Equal(t, "flag.json", sourcePath("flag.json", existing))
	assert.Equal(t, existing, sourcePath("", existing))
	assert.Empty(t, sourcePath("", filepath.Join(dir, "missing.json")))
	assert.Empty(t, sourcePath("", ""))
}

func TestDeleteTable(t *testing.T) {
	s := schema.Schema{
		Relations: []string{"public.projects.organization_id::int8 references public.organizations(id::int8)"},
		PrimaryKeys: []string{
			"public.organizations(id::bigint)",
			"public.projects(id::bigint)",
		},
	}

	next, err := deleteTable(s, "projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"public.organizations(id::bigint)"}, next.PrimaryKeys)
	require.NoError(t, schema.CheckSchema(next), "the remaining schema must load again")

	_, err = deleteTable(next, "organizations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last table")
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, cli.ExitGeneral, exitErr.Code)

	_, err = deleteTable(s, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no primary key")
}

// countingStore counts the writes that reach the wrapped store.
type countingStore struct {
	store.Store
	saves int
}

func (s *countingStore) Save(ctx context.Context, key, value string) error {
	s.saves++
	return s.Store.Save(ctx, key, value)
}

func useConfig(t *testing.T, c *cli.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestEditRolesIn_CoalescesCommits(t *testing.T) {
	useConfig(t, &cli.Config{})
	ctx := context.Background()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st := &countingStore{Store: fs}

	err = editRolesIn(ctx, st, func(doc roles.Document, commit func() error) error {
		for _, name := range []string{"admin", "member", "viewer"} {
			doc.AddRole(name)
			if err := commit(); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.saves)

	text, ok, err := fs.Load(ctx, store.KeyRoles)
	require.NoError(t, err)
	require.True(t, ok)
	doc, err := roles.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "member", "viewer"}, doc.Roles())
}

func TestEditRolesIn_FailedEditSavesNothing(t *testing.T) {
	useConfig(t, &cli.Config{})
	ctx := context.Background()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st := &countingStore{Store: fs}

	err = editRolesIn(ctx, st, func(doc roles.Document, _ func() error) error {
		return doc.SetPermission("ghost", "projects", easyrls.ActionSelect, "anything")
	})
	require.Error(t, err)
	assert.Zero(t, st.saves)

	_, ok, err := fs.Load(ctx, store.KeyRoles)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoleRows(t *testing.T) {
	doc := roles.New()
	doc.AddRole("viewer")
	doc.AddRole("admin")
	require.NoError(t, doc.SetPermission("admin", "projects", easyrls.ActionSelect, "same organization"))
	require.NoError(t, doc.Restrict("admin", "projects", easyrls.ActionDelete))

	assert.Equal(t, [][]string{
		{"admin", "projects", "select", "allow", "same organization"},
		{"admin", "projects", "delete", "deny", ""},
		{"viewer", "", "", "", ""},
	}, roleRows(doc))
}

func TestParseAction(t *testing.T) {
	a, err := parseAction("UPDATE")
	require.NoError(t, err)
	assert.Equal(t, easyrls.ActionUpdate, a)

	_, err = parseAction("truncate")
	require.Error(t, err)
}

func TestPresence(t *testing.T) {
	assert.Equal(t, "present", presence(true))
	assert.Equal(t, "missing", presence(false))
}

func TestCheckRequest(t *testing.T) {
	checkClaims = `{"organization_id": 1, "user_role": "viewer"}`
	checkAs = "member"
	checkParams = map[string]string{"$organization_id": "1"}
	t.Cleanup(func() {
		checkClaims, checkAs, checkParams = "", "", nil
	})

	req, err := checkRequest("projects", easyrls.ActionSelect, "")
	require.NoError(t, err)
	assert.Equal(t, checker.Request{
		Claims:   map[string]any{"organization_id": float64(1), "user_role": "member"},
		Resource: "projects",
		Action:   easyrls.ActionSelect,
		Params:   map[string]any{"$organization_id": "1"},
	}, req)

	checkClaims = "[1]"
	_, err = checkRequest("projects", easyrls.ActionSelect, "")
	require.Error(t, err)

	checkClaims = ""
	checkJWT = "not-a-token"
	t.Cleanup(func() { checkJWT = "" })
	_, err = checkRequest("projects", easyrls.ActionSelect, "")
	require.Error(t, err)
}
