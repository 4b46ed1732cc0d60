package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

type RolesService struct {
	Store     store.Store
	Clock     Clock
	Authz     *AuthorizationService
	Validator *PermissionValidator
	Events    *events.Bus
}

func (s *RolesService) now() time.Time {
	if s.Clock == nil {
		return SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *RolesService) GetByID(ctx context.Context, roleID idx.ID) (*domain.Role, error) {
	r, err := s.Store.Roles().FindByID(ctx, roleID)
	if err != nil {
		return nil, notFound(err, "role", roleID)
	}
	return r, nil
}

func (s *RolesService) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	r, err := s.Store.Roles().FindByName(ctx, name)
	if err != nil {
		return nil, notFound(err, "role", name)
	}
	return r, nil
}

// ListAll returns all roles in the system.
func (s *RolesService) ListAll(ctx context.Context) ([]*domain.Role, error) {
	return s.Store.Roles().FindAll(ctx)
}

func (s *RolesService) Create(ctx context.Context, name, description string, isAdmin bool) (*domain.Role, error) {
	now := s.now()
	r, err := domain.NewRole(idx.NewAt(now), name, description, isAdmin, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.Roles().FindByName(ctx, r.Name); err == nil {
		return nil, domain.AlreadyExists("name", r.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := s.Store.Roles().Create(ctx, r); err != nil {
		return nil, conflict(err, "name", r.Name)
	}
	s.Events.DispatchEventsFromAggregate(ctx, r)
	return r, nil
}

// AddPermission attaches a permission, refusing ones that conflict with a
// permission the role already holds.
func (s *RolesService) AddPermission(ctx context.Context, roleID, permissionID idx.ID) (*domain.Role, error) {
	r, err := s.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	p, err := s.Store.Permissions().FindByID(ctx, permissionID)
	if err != nil {
		return nil, notFound(err, "permission", permissionID)
	}
	if s.Validator != nil {
		if err := s.Validator.ValidateAddition(r, p); err != nil {
			return nil, err
		}
	}
	r.AddPermission(p, s.now())
	return r, s.save(ctx, r)
}

func (s *RolesService) RemovePermission(ctx context.Context, roleID, permissionID idx.ID) (*domain.Role, error) {
	r, err := s.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := r.RemovePermission(permissionID, s.now()); err != nil {
		return nil, err
	}
	return r, s.save(ctx, r)
}

func (s *RolesService) save(ctx context.Context, r *domain.Role) error {
	if err := s.Store.Roles().Update(ctx, r); err != nil {
		return fmt.Errorf("save role: %w", err)
	}
	s.Events.DispatchEventsFromAggregate(ctx, r)
	return nil
}

// SetDefault makes roleID the default role, clearing the flag on the
// previous default in the same transaction.
func (s *RolesService) SetDefault(ctx context.Context, roleID idx.ID) error {
	var changed []events.Source
	now := s.now()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		r, err := tx.Roles().FindByID(ctx, roleID)
		if err != nil {
			return notFound(err, "role", roleID)
		}
		if r.IsDefault {
			return nil
		}

		prev, err := tx.Roles().FindDefault(ctx)
		switch {
		case err == nil:
			prev.SetDefault(false, now)
			if err := tx.Roles().Update(ctx, prev); err != nil {
				return err
			}
			changed = append(changed, prev)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		r.SetDefault(true, now)
		if err := tx.Roles().Update(ctx, r); err != nil {
			return err
		}
		changed = append(changed, r)
		return nil
	})
	if err != nil {
		return err
	}
	s.Events.Dispatch(ctx, changed...)
	return nil
}

// Delete removes a role on behalf of actorID. Default roles and roles still
// assigned to users cannot be deleted.
func (s *RolesService) Delete(ctx context.Context, actorID, roleID idx.ID) error {
	actor, err := s.Store.Users().FindByID(ctx, actorID)
	if err != nil {
		return notFound(err, "user", actorID)
	}
	r, err := s.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if r.IsDefault {
		return domain.ErrDefaultRoleNotDeletable
	}
	authz := s.Authz
	if authz == nil {
		authz = &AuthorizationService{}
	}
	if !authz.CanDeleteRole(actor, r) {
		return domain.ErrForbidden
	}

	err = s.Store.Roles().Delete(ctx, roleID)
	switch {
	case errors.Is(err, store.ErrInUse):
		return domain.Wrap(domain.ErrRoleInUse, err)
	case err != nil:
		return notFound(err, "role", roleID)
	}
	return nil
}

type PermissionService struct {
	Store store.Store
	Clock Clock
}

// Create registers resource:action. The action must be one of the known
// domain actions.
func (s *PermissionService) Create(ctx context.Context, resource, action, description string) (*domain.Permission, error) {
	act, err := domain.ParseAction(action)
	if err != nil {
		return nil, err
	}
	ra, err := domain.NewResourceAction(resource, act)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.Permissions().FindByName(ctx, ra.String()); err == nil {
		return nil, domain.AlreadyExists("name", ra.String())
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := SystemClock{}.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	p := domain.NewPermission(idx.NewAt(now), ra, description, now)
	if err := s.Store.Permissions().Create(ctx, p); err != nil {
		return nil, conflict(err, "name", ra.String())
	}
	return p, nil
}

func (s *PermissionService) UpdateDescription(ctx context.Context, id idx.ID, description string) (*domain.Permission, error) {
	p, err := s.Store.Permissions().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "permission", id)
	}
	now := SystemClock{}.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	p.UpdateDescription(description, now)
	if err := s.Store.Permissions().Update(ctx, p); err != nil {
		return nil, fmt.Errorf("save permission: %w", err)
	}
	return p, nil
}

func (s *PermissionService) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	p, err := s.Store.Permissions().FindByName(ctx, name)
	if err != nil {
		return nil, notFound(err, "permission", name)
	}
	return p, nil
}

func (s *PermissionService) FindByResource(ctx context.Context, resource string) ([]*domain.Permission, error) {
	return s.Store.Permissions().FindByResource(ctx, resource)
}

func (s *PermissionService) ListAll(ctx context.Context) ([]*domain.Permission, error) {
	return s.Store.Permissions().FindAll(ctx)
}

func (s *PermissionService) Delete(ctx context.Context, id idx.ID) error {
	if err := s.Store.Permissions().Delete(ctx, id); err != nil {
		return notFound(err, "permission", id)
	}
	return nil
}

// PermissionValidator rejects permission combinations listed as
// conflicting. Conflicts apply in both directions.
type PermissionValidator struct {
	Conflicts map[string][]string
}

// DefaultPermissionConflicts is example policy data; deployments replace it.
func DefaultPermissionConflicts() map[string][]string {
	return map[string][]string{
		"user:delete": {"user:create"},
	}
}

func NewPermissionValidator(conflicts map[string][]string) *PermissionValidator {
	return &PermissionValidator{Conflicts: conflicts}
}

// ConflictsWith reports the first permission held by role that conflicts
// with name.
func (v *PermissionValidator) ConflictsWith(role *domain.Role, name string) (string, bool) {
	for _, held := range role.PermissionNames() {
		if held == name {
			continue
		}
		if v.conflict(name, held) || v.conflict(held, name) {
			return held, true
		}
	}
	return "", false
}

func (v *PermissionValidator) conflict(a, b string) bool {
	for _, c := range v.Conflicts[a] {
		if c == b {
			return true
		}
	}
	return false
}

func (v *PermissionValidator) ValidateAddition(role *domain.Role, p *domain.Permission) error {
	if held, ok := v.ConflictsWith(role, p.Name()); ok {
		return domain.Wrap(domain.ErrPermissionConflict, fmt.Errorf("%s conflicts with %s", p.Name(), held))
	}
	return nil
}
