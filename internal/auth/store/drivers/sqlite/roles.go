package sqlite

import (
	"context"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

type rolesRepo struct {
	q dbtx
}

const roleColumns = `r.id, r.name, r.description, r.is_default, r.is_admin, r.created_at, r.updated_at`

func scanRole(sc scanner) (*domain.Role, error) {
	var (
		id, name, description string
		isDefault, isAdmin    bool
		createdAt, updatedAt  int64
	)
	if err := sc.Scan(&id, &name, &description, &isDefault, &isAdmin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &domain.Role{
		ID:          idx.ID(id),
		Name:        name,
		Description: description,
		IsDefault:   isDefault,
		IsAdmin:     isAdmin,
		CreatedAt:   fromMillis(createdAt),
		UpdatedAt:   fromMillis(updatedAt),
	}, nil
}

// queryRoles reads every row first and only then loads permissions, so no
// two statements are open on the same connection at once.
func queryRoles(ctx context.Context, q dbtx, query string, args ...any) ([]*domain.Role, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}

	var out []*domain.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, r := range out {
		if r.Permissions, err = permissionsForRole(ctx, q, r.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func queryRole(ctx context.Context, q dbtx, query string, args ...any) (*domain.Role, error) {
	r, err := scanRole(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	if r.Permissions, err = permissionsForRole(ctx, q, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rolesRepo) FindByID(ctx context.Context, id idx.ID) (*domain.Role, error) {
	return queryRole(ctx, r.q, `SELECT `+roleColumns+` FROM roles r WHERE r.id = ?`, id.String())
}

func (r *rolesRepo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return queryRole(ctx, r.q, `SELECT `+roleColumns+` FROM roles r WHERE r.name = ?`, name)
}

func (r *rolesRepo) FindAll(ctx context.Context) ([]*domain.Role, error) {
	return queryRoles(ctx, r.q, `SELECT `+roleColumns+` FROM roles r ORDER BY r.name`)
}

func (r *rolesRepo) FindDefault(ctx context.Context) (*domain.Role, error) {
	return queryRole(ctx, r.q, `SELECT `+roleColumns+` FROM roles r WHERE r.is_default = 1`)
}

func (r *rolesRepo) Create(ctx context.Context, role *domain.Role) error {
	return atomically(ctx, r.q, func(q dbtx) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO roles (id, name, description, is_default, is_admin, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			role.ID.String(),
			role.Name,
			role.Description,
			role.IsDefault,
			role.IsAdmin,
			toMillis(role.CreatedAt),
			toMillis(role.UpdatedAt),
		)
		if err != nil {
			return mapErr(err)
		}
		return writeRolePermissions(ctx, q, role)
	})
}

func (r *rolesRepo) Update(ctx context.Context, role *domain.Role) error {
	return atomically(ctx, r.q, func(q dbtx) error {
		err := requireAffected(q.ExecContext(ctx,
			`UPDATE roles
			    SET name = ?, description = ?, is_default = ?, is_admin = ?, updated_at = ?
			  WHERE id = ?`,
			role.Name,
			role.Description,
			role.IsDefault,
			role.IsAdmin,
			toMillis(role.UpdatedAt),
			role.ID.String(),
		))
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, role.ID.String()); err != nil {
			return mapErr(err)
		}
		return writeRolePermissions(ctx, q, role)
	})
}

func (r *rolesRepo) Delete(ctx context.Context, id idx.ID) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id.String()))
}

func writeRolePermissions(ctx context.Context, q dbtx, role *domain.Role) error {
	for i, p := range role.Permissions {
		_, err := q.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, permission_id, position) VALUES (?, ?, ?)`,
			role.ID.String(), p.ID.String(), i,
		)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}
