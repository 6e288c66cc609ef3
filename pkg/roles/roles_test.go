package roles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/pkg/roles"
	"github.com/pthm/easyrls/pkg/schema"
)

const adminDoc = `{
  "admin": {
    "permissions": [
      {"resource": "projects", "action": "select", "description": "projects of the user's organization"},
      {"resource": "projects", "action": "update", "description": "projects of the user's organization"}
    ],
    "restricted_actions": [
      {"resource": "projects", "action": "insert"},
      {"resource": "projects", "action": "delete"}
    ]
  }
}`

func TestParse(t *testing.T) {
	d, err := roles.Parse(adminDoc)
	require.NoError(t, err)
	require.NoError(t, d.Validate())

	assert.Equal(t, []string{"admin"}, d.Roles())
	assert.Len(t, d["admin"].Permissions, 2)
	assert.Equal(t, easyrls.ActionInsert, d["admin"].RestrictedActions[0].Action)
}

func TestParse_Blank(t *testing.T) {
	for _, in := range []string{"", "  \n", "null"} {
		d, err := roles.Parse(in)
		require.NoError(t, err)
		assert.Empty(t, d.Roles())
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := roles.Parse(`["admin"]`)
	require.Error(t, err)
	assert.True(t, easyrls.IsInvalidRolesErr(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"upper-case role", `{"Admin":{"permissions":[],"restricted_actions":[]}}`},
		{"empty role name", `{"":{"permissions":[],"restricted_actions":[]}}`},
		{"unknown action", `{"admin":{"permissions":[{"resource":"t","action":"truncate","description":"x"}]}}`},
		{"missing description", `{"admin":{"permissions":[{"resource":"t","action":"select","description":"  "}]}}`},
		{"missing resource", `{"admin":{"permissions":[{"resource":"","action":"select","description":"x"}]}}`},
		{"bad restriction", `{"admin":{"restricted_actions":[{"resource":"t","action":"drop"}]}}`},
		{"permitted and restricted", `{"admin":{"permissions":[{"resource":"t","action":"select","description":"x"}],"restricted_actions":[{"resource":"t","action":"select"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := roles.Parse(tt.doc)
			require.NoError(t, err)
			err = d.Validate()
			require.Error(t, err)
			assert.True(t, easyrls.IsInvalidRolesErr(err))
		})
	}
}

func TestAddRemoveRole(t *testing.T) {
	d := roles.New()
	assert.Equal(t, "editor", d.AddRole("Editor"))
	assert.Equal(t, "editor", d.AddRole("EDITOR"))
	d.AddRole("admin")
	assert.Equal(t, []string{"admin", "editor"}, d.Roles())

	require.NoError(t, d.SetPermission("editor", "projects", easyrls.ActionSelect, "own projects"))
	d.AddRole("editor")
	assert.Len(t, d["editor"].Permissions, 1, "re-adding keeps existing permissions")

	d.RemoveRole("Editor")
	d.RemoveRole("missing")
	assert.Equal(t, []string{"admin"}, d.Roles())
}

func TestSetPermissionAndRestrict(t *testing.T) {
	d := roles.New()
	d.AddRole("member")

	require.NoError(t, d.Restrict("member", "projects", easyrls.ActionSelect))
	require.NoError(t, d.SetPermission("member", "projects", easyrls.ActionSelect, "first"))
	require.NoError(t, d.SetPermission("member", "projects", easyrls.ActionSelect, "second"))

	role := d["member"]
	require.Len(t, role.Permissions, 1)
	assert.Equal(t, "second", role.Permissions[0].Description)
	assert.Empty(t, role.RestrictedActions)

	require.NoError(t, d.Restrict("member", "projects", easyrls.ActionSelect))
	require.NoError(t, d.Restrict("member", "projects", easyrls.ActionSelect))
	role = d["member"]
	assert.Empty(t, role.Permissions)
	assert.Equal(t, []roles.Restriction{{Resource: "projects", Action: easyrls.ActionSelect}}, role.RestrictedActions)
	require.NoError(t, d.Validate())
}

func TestSetPermission_Errors(t *testing.T) {
	d := roles.New()
	err := d.SetPermission("ghost", "t", easyrls.ActionSelect, "x")
	assert.True(t, easyrls.IsNotFoundErr(err))

	d.AddRole("admin")
	err = d.SetPermission("admin", "t", easyrls.Action("merge"), "x")
	assert.True(t, easyrls.IsInvalidRolesErr(err))
	err = d.Restrict("admin", "t", easyrls.Action(""))
	assert.True(t, easyrls.IsInvalidRolesErr(err))
}

func TestRestrictUnset(t *testing.T) {
	d, err := roles.Parse(adminDoc)
	require.NoError(t, err)

	d.RestrictUnset([]string{"projects", "users"})
	role := d["admin"]
	assert.Len(t, role.Permissions, 2)
	// projects already fully described; users gains all four restrictions
	assert.Len(t, role.RestrictedActions, 6)
	require.NoError(t, d.Validate())
}

func TestDropResource(t *testing.T) {
	d, err := roles.Parse(adminDoc)
	require.NoError(t, err)
	require.NoError(t, d.SetPermission("admin", "users", easyrls.ActionSelect, "self"))

	d.DropResource("projects")
	role := d["admin"]
	assert.Equal(t, []roles.Permission{{Resource: "users", Action: easyrls.ActionSelect, Description: "self"}}, role.Permissions)
	assert.Empty(t, role.RestrictedActions)
}

func TestUnknownResources(t *testing.T) {
	d, err := roles.Parse(adminDoc)
	require.NoError(t, err)
	require.NoError(t, d.Restrict("admin", "archived", easyrls.ActionDelete))

	assert.Equal(t, []string{"archived", "projects"}, d.UnknownResources(schema.NewTableSet("users")))
	assert.Equal(t, []string{"archived"}, d.UnknownResources(schema.NewTableSet("projects")))
}

func TestMarshalRoundTrip(t *testing.T) {
	d, err := roles.Parse(adminDoc)
	require.NoError(t, err)

	data, err := d.Marshal()
	require.NoError(t, err)
	again, err := roles.Parse(string(data))
	require.NoError(t, err)
	assert.Equal(t, d, again)

	var nilDoc roles.Document
	data, err = nilDoc.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMerge(t *testing.T) {
	a := roles.New()
	a.AddRole("admin")
	a.AddRole("member")
	require.NoError(t, a.SetPermission("admin", "t", easyrls.ActionSelect, "old"))

	b := roles.New()
	b.AddRole("admin")
	require.NoError(t, b.SetPermission("admin", "t", easyrls.ActionSelect, "new"))

	merged := roles.Merge(a, b)
	assert.Equal(t, []string{"admin", "member"}, merged.Roles())
	assert.Equal(t, "new", merged["admin"].Permissions[0].Description)
	assert.Len(t, a["admin"].Permissions, 1)
	assert.Equal(t, "old", a["admin"].Permissions[0].Description)
}
