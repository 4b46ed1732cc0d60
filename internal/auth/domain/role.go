package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/parish/pkg/idx"
)

// Role is a named bundle of permissions.
type Role struct {
	ID          idx.ID
	Name        string
	Description string
	Permissions []*Permission // unique by ID
	IsDefault   bool
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	eventBuffer
}

func NewRole(id idx.ID, name, description string, isAdmin bool, now time.Time) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidValue("name", "role name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, InvalidValue("name", "role name is too long")
	}
	r := &Role{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		IsAdmin:     isAdmin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.record(EventRoleCreated, id, now, "name", name)
	return r, nil
}

// AddPermission is idempotent by permission id.
func (r *Role) AddPermission(p *Permission, now time.Time) {
	if slices.ContainsFunc(r.Permissions, func(have *Permission) bool { return have.ID == p.ID }) {
		return
	}
	r.Permissions = append(r.Permissions, p)
	r.UpdatedAt = now
	r.record(EventRolePermissionAdded, r.ID, now, "permission", p.Name())
}

func (r *Role) RemovePermission(permissionID idx.ID, now time.Time) error {
	i := slices.IndexFunc(r.Permissions, func(p *Permission) bool { return p.ID == permissionID })
	if i < 0 {
		return NotFound("permission", permissionID)
	}
	removed := r.Permissions[i]
	r.Permissions = slices.Delete(slices.Clone(r.Permissions), i, i+1)
	r.UpdatedAt = now
	r.record(EventRolePermissionRemoved, r.ID, now, "permission", removed.Name())
	return nil
}

// SetDefault flips the default flag. Keeping a single default across roles
// is the roles service's job.
func (r *Role) SetDefault(isDefault bool, now time.Time) {
	if r.IsDefault == isDefault {
		return
	}
	r.IsDefault = isDefault
	r.UpdatedAt = now
	r.record(EventRoleDefaultChanged, r.ID, now, "default", boolString(isDefault))
}

func (r *Role) UpdateDescription(description string, now time.Time) {
	r.Description = strings.TrimSpace(description)
	r.UpdatedAt = now
}

func (r *Role) HasPermission(name string) bool {
	return slices.ContainsFunc(r.Permissions, func(p *Permission) bool { return p.Name() == name })
}

func (r *Role) PermissionNames() []string {
	out := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		out = append(out, p.Name())
	}
	return out
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
