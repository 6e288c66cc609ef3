// Package roles models the roles document: for every application role, the
// actions it may perform on each table (with a plain-language condition) and
// the actions it is explicitly denied.
//
// The document is the second input to condition drafting, next to the schema:
//
//	{
//	  "admin": {
//	    "permissions": [
//	      {"resource": "projects", "action": "select", "description": "same organization"}
//	    ],
//	    "restricted_actions": [
//	      {"resource": "projects", "action": "delete"}
//	    ]
//	  }
//	}
//
// Role names are stored lower-case.
package roles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pthm/easyrls"
	"github.com/pthm/easyrls/pkg/schema"
)

// Permission grants action on resource when the described condition holds.
type Permission struct {
	Resource    string         `json:"resource"`
	Action      easyrls.Action `json:"action"`
	Description string         `json:"description"`
}

// Restriction denies action on resource.
type Restriction struct {
	Resource string         `json:"resource"`
	Action   easyrls.Action `json:"action"`
}

// Role holds the permissions and restrictions of one role.
type Role struct {
	Permissions       []Permission  `json:"permissions"`
	RestrictedActions []Restriction `json:"restricted_actions"`
}

// Document maps role names to roles.
type Document map[string]Role

// New returns an empty document.
func New() Document {
	return Document{}
}

// Parse decodes a roles document. Blank input yields an empty document.
func Parse(text string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return New(), nil
	}
	var d Document
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("%w: decoding JSON: %w", easyrls.ErrInvalidRoles, err)
	}
	if d == nil {
		d = New()
	}
	return d, nil
}

// Validate checks every role: names must be non-empty and lower-case, every
// permission must name a resource, a known action and a description, and no
// action may be both permitted and restricted on the same resource.
func (d Document) Validate() error {
	for _, name := range d.Roles() {
		if name == "" || name != strings.ToLower(name) {
			return fmt.Errorf("%w: role name %q must be non-empty and lower-case", easyrls.ErrInvalidRoles, name)
		}
		role := d[name]
		granted := make(map[string]struct{})
		for i, p := range role.Permissions {
			switch {
			case p.Resource == "":
				return fmt.Errorf("%w: role %q permission %d: missing resource", easyrls.ErrInvalidRoles, name, i)
			case !p.Action.Valid():
				return fmt.Errorf("%w: role %q permission %d: unknown action %q", easyrls.ErrInvalidRoles, name, i, p.Action)
			case strings.TrimSpace(p.Description) == "":
				return fmt.Errorf("%w: role %q permission %d: %s on %s needs a description", easyrls.ErrInvalidRoles, name, i, p.Action, p.Resource)
			}
			granted[key(p.Resource, p.Action)] = struct{}{}
		}
		for i, r := range role.RestrictedActions {
			switch {
			case r.Resource == "":
				return fmt.Errorf("%w: role %q restriction %d: missing resource", easyrls.ErrInvalidRoles, name, i)
			case !r.Action.Valid():
				return fmt.Errorf("%w: role %q restriction %d: unknown action %q", easyrls.ErrInvalidRoles, name, i, r.Action)
			}
			if _, ok := granted[key(r.Resource, r.Action)]; ok {
				return fmt.Errorf("%w: role %q both permits and restricts %s on %s", easyrls.ErrInvalidRoles, name, r.Action, r.Resource)
			}
		}
	}
	return nil
}

func key(resource string, action easyrls.Action) string {
	return resource + "\x00" + string(action)
}

// Roles returns the role names in sorted order.
func (d Document) Roles() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddRole adds an empty role and returns its stored (lower-case) name. Adding
// an existing role is a no-op.
func (d Document) AddRole(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := d[name]; !ok {
		d[name] = Role{Permissions: []Permission{}, RestrictedActions: []Restriction{}}
	}
	return name
}

// RemoveRole deletes a role. Missing roles are ignored.
func (d Document) RemoveRole(name string) {
	delete(d, strings.ToLower(name))
}

func (d Document) lookup(name string) (string, Role, error) {
	name = strings.ToLower(name)
	role, ok := d[name]
	if !ok {
		return "", Role{}, fmt.Errorf("role %q: %w", name, easyrls.ErrNotFound)
	}
	return name, role, nil
}

// SetPermission grants action on resource to role, replacing any existing
// grant for the same pair and lifting a restriction on it.
func (d Document) SetPermission(role, resource string, action easyrls.Action, description string) error {
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", easyrls.ErrInvalidRoles, action)
	}
	name, r, err := d.lookup(role)
	if err != nil {
		return err
	}
	r.Permissions = append(withoutPermission(r.Permissions, resource, action), Permission{
		Resource:    resource,
		Action:      action,
		Description: description,
	})
	r.RestrictedActions = withoutRestriction(r.RestrictedActions, resource, action)
	d[name] = r
	return nil
}

// Restrict denies action on resource to role, removing any grant for it.
func (d Document) Restrict(role, resource string, action easyrls.Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", easyrls.ErrInvalidRoles, action)
	}
	name, r, err := d.lookup(role)
	if err != nil {
		return err
	}
	r.Permissions = withoutPermission(r.Permissions, resource, action)
	r.RestrictedActions = append(withoutRestriction(r.RestrictedActions, resource, action), Restriction{
		Resource: resource,
		Action:   action,
	})
	d[name] = r
	return nil
}

// RestrictUnset restricts, for every role and table, each action that is
// neither permitted nor restricted yet.
func (d Document) RestrictUnset(tables []string) {
	for name, r := range d {
		set := make(map[string]struct{})
		for _, p := range r.Permissions {
			set[key(p.Resource, p.Action)] = struct{}{}
		}
		for _, x := range r.RestrictedActions {
			set[key(x.Resource, x.Action)] = struct{}{}
		}
		for _, table := range tables {
			for _, action := range easyrls.Actions {
				if _, ok := set[key(table, action)]; ok {
					continue
				}
				r.RestrictedActions = append(r.RestrictedActions, Restriction{Resource: table, Action: action})
			}
		}
		d[name] = r
	}
}

// DropResource removes every permission and restriction on resource, as when
// the table is deleted from the schema.
func (d Document) DropResource(resource string) {
	for name, r := range d {
		perms := make([]Permission, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			if p.Resource != resource {
				perms = append(perms, p)
			}
		}
		restricted := make([]Restriction, 0, len(r.RestrictedActions))
		for _, x := range r.RestrictedActions {
			if x.Resource != resource {
				restricted = append(restricted, x)
			}
		}
		r.Permissions, r.RestrictedActions = perms, restricted
		d[name] = r
	}
}

// UnknownResources returns the resources referenced by the document that are
// not in tables, sorted.
func (d Document) UnknownResources(tables schema.TableSet) []string {
	seen := make(map[string]struct{})
	for _, r := range d {
		for _, p := range r.Permissions {
			if !tables.Has(p.Resource) {
				seen[p.Resource] = struct{}{}
			}
		}
		for _, x := range r.RestrictedActions {
			if !tables.Has(x.Resource) {
				seen[x.Resource] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for res := range seen {
		out = append(out, res)
	}
	sort.Strings(out)
	return out
}

// Marshal encodes the document as indented JSON with roles in sorted order.
func (d Document) Marshal() ([]byte, error) {
	if d == nil {
		d = New()
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding roles: %w", err)
	}
	return data, nil
}

// Merge combines documents. A role present in several documents takes its
// value from the last one.
func Merge(docs ...Document) Document {
	out := New()
	for _, d := range docs {
		for name, r := range d {
			out[name] = r
		}
	}
	return out
}

func withoutPermission(perms []Permission, resource string, action easyrls.Action) []Permission {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if p.Resource != resource || p.Action != action {
			out = append(out, p)
		}
	}
	return out
}

func withoutRestriction(restricted []Restriction, resource string, action easyrls.Action) []Restriction {
	out := make([]Restriction, 0, len(restricted))
	for _, x := range restricted {
		if x.Resource != resource || x.Action != action {
			out = append(out, x)
		}
	}
	return out
}
