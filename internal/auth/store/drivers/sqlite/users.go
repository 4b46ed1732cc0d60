package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/store"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, password_hash, first_name, last_name, active,
	two_factor_enabled, two_factor_secret, last_login_at, created_at, updated_at`

func scanUser(sc scanner) (*domain.User, error) {
	var (
		id, email, hash, first, last string
		active, twoFactor            bool
		secret                       sql.NullString
		lastLogin                    sql.NullInt64
		createdAt, updatedAt         int64
	)
	err := sc.Scan(&id, &email, &hash, &first, &last, &active,
		&twoFactor, &secret, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	em, err := domain.NewEmail(email)
	if err != nil {
		return nil, fmt.Errorf("sqlite: user %s: %w", id, err)
	}
	fn, err := domain.NewName("first_name", first)
	if err != nil {
		return nil, fmt.Errorf("sqlite: user %s: %w", id, err)
	}
	ln, err := domain.NewName("last_name", last)
	if err != nil {
		return nil, fmt.Errorf("sqlite: user %s: %w", id, err)
	}

	return &domain.User{
		ID:               idx.ID(id),
		Email:            em,
		PasswordHash:     hash,
		FirstName:        fn,
		LastName:         ln,
		Active:           active,
		TwoFactorEnabled: twoFactor,
		TwoFactorSecret:  fromNullString(secret),
		LastLoginAt:      fromNullMillis(lastLogin),
		CreatedAt:        fromMillis(createdAt),
		UpdatedAt:        fromMillis(updatedAt),
	}, nil
}

func (r *usersRepo) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return nil, mapErr(err)
	}
	if u.Roles, err = rolesForUser(ctx, r.q, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *usersRepo) FindByID(ctx context.Context, id idx.ID) (*domain.User, error) {
	return r.findOne(ctx, `id = ?`, id.String())
}

func (r *usersRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `email = ?`, email)
}

func (r *usersRepo) FindAll(ctx context.Context, page store.Page) ([]*domain.User, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, max(page.Offset, 0))
	if err != nil {
		return nil, 0, mapErr(err)
	}

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, err
	}
	_ = rows.Close()

	for _, u := range out {
		if u.Roles, err = rolesForUser(ctx, r.q, u.ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *usersRepo) Create(ctx context.Context, u *domain.User) error {
	return atomically(ctx, r.q, func(q dbtx) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID.String(),
			u.Email.String(),
			u.PasswordHash,
			u.FirstName.String(),
			u.LastName.String(),
			u.Active,
			u.TwoFactorEnabled,
			toNullString(u.TwoFactorSecret),
			toNullMillis(u.LastLoginAt),
			toMillis(u.CreatedAt),
			toMillis(u.UpdatedAt),
		)
		if err != nil {
			return mapErr(err)
		}
		return writeUserRoles(ctx, q, u)
	})
}

func (r *usersRepo) Update(ctx context.Context, u *domain.User) error {
	return atomically(ctx, r.q, func(q dbtx) error {
		err := requireAffected(q.ExecContext(ctx,
			`UPDATE users
			    SET email = ?, password_hash = ?, first_name = ?, last_name = ?, active = ?,
			        two_factor_enabled = ?, two_factor_secret = ?, last_login_at = ?, updated_at = ?
			  WHERE id = ?`,
			u.Email.String(),
			u.PasswordHash,
			u.FirstName.String(),
			u.LastName.String(),
			u.Active,
			u.TwoFactorEnabled,
			toNullString(u.TwoFactorSecret),
			toNullMillis(u.LastLoginAt),
			toMillis(u.UpdatedAt),
			u.ID.String(),
		))
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, u.ID.String()); err != nil {
			return mapErr(err)
		}
		return writeUserRoles(ctx, q, u)
	})
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id idx.ID, at time.Time) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), id.String(),
	))
}

func (r *usersRepo) SetPasswordHash(ctx context.Context, id idx.ID, hash string, at time.Time) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(at), id.String(),
	))
}

// ClaimTwoFactorStep is a compare-and-set on the step column, so two
// requests racing with the same code cannot both win.
func (r *usersRepo) ClaimTwoFactorStep(ctx context.Context, id idx.ID, step int64) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET two_factor_last_step = ?
		  WHERE id = ? AND two_factor_enabled = 1 AND two_factor_last_step < ?`,
		step, id.String(), step,
	)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *usersRepo) Delete(ctx context.Context, id idx.ID) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String()))
}

func writeUserRoles(ctx context.Context, q dbtx, u *domain.User) error {
	for i, role := range u.Roles {
		_, err := q.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id, position) VALUES (?, ?, ?)`,
			u.ID.String(), role.ID.String(), i,
		)
		if err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func rolesForUser(ctx context.Context, q dbtx, userID idx.ID) ([]*domain.Role, error) {
	return queryRoles(ctx, q,
		`SELECT `+roleColumns+`
		   FROM user_roles ur
		   JOIN roles r ON r.id = ur.role_id
		  WHERE ur.user_id = ?
		  ORDER BY ur.position`, userID.String())
}
