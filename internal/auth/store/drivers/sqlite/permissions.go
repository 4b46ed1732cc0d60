package sqlite

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

type permissionsRepo struct {
	q dbtx
}

const permissionColumns = `p.id, p.name, p.description, p.created_at, p.updated_at`

func scanPermission(sc scanner) (*domain.Permission, error) {
	var (
		id, name, description string
		createdAt, updatedAt  int64
	)
	if err := sc.Scan(&id, &name, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ra, err := domain.ParseResourceAction(name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: permission %s has bad name: %w", id, err)
	}
	return &domain.Permission{
		ID:             idx.ID(id),
		ResourceAction: ra,
		Description:    description,
		CreatedAt:      fromMillis(createdAt),
		UpdatedAt:      fromMillis(updatedAt),
	}, nil
}

func queryPermissions(ctx context.Context, q dbtx, query string, args ...any) ([]*domain.Permission, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *permissionsRepo) FindByID(ctx context.Context, id idx.ID) (*domain.Permission, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+permissionColumns+` FROM permissions p WHERE p.id = ?`, id.String())
	p, err := scanPermission(row)
	return p, mapErr(err)
}

func (r *permissionsRepo) FindByName(ctx context.Context, name string) (*domain.Permission, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+permissionColumns+` FROM permissions p WHERE p.name = ?`, name)
	p, err := scanPermission(row)
	return p, mapErr(err)
}

func (r *permissionsRepo) FindAll(ctx context.Context) ([]*domain.Permission, error) {
	return queryPermissions(ctx, r.q, `SELECT `+permissionColumns+` FROM permissions p ORDER BY p.name`)
}

func (r *permissionsRepo) FindByResource(ctx context.Context, resource string) ([]*domain.Permission, error) {
	return queryPermissions(ctx, r.q,
		`SELECT `+permissionColumns+` FROM permissions p WHERE p.resource = ? ORDER BY p.name`, resource)
}

func (r *permissionsRepo) Create(ctx context.Context, p *domain.Permission) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO permissions (id, name, resource, action, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(),
		p.Name(),
		p.ResourceAction.Resource(),
		string(p.ResourceAction.Action()),
		p.Description,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	return mapErr(err)
}

func (r *permissionsRepo) Update(ctx context.Context, p *domain.Permission) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE permissions SET description = ?, updated_at = ? WHERE id = ?`,
		p.Description, toMillis(p.UpdatedAt), p.ID.String(),
	))
}

func (r *permissionsRepo) Delete(ctx context.Context, id idx.ID) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id.String()))
}

// permissionsForRole loads a role's permissions in stored order.
func permissionsForRole(ctx context.Context, q dbtx, roleID idx.ID) ([]*domain.Permission, error) {
	return queryPermissions(ctx, q,
		`SELECT `+permissionColumns+`
		   FROM role_permissions rp
		   JOIN permissions p ON p.id = rp.permission_id
		  WHERE rp.role_id = ?
		  ORDER BY rp.position`, roleID.String())
}
