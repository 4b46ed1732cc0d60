package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

type challengesRepo struct {
	q dbtx
}

const challengeColumns = `id, user_id, token_hash, attempts, expires_at, created_at`

func scanChallenge(sc scanner) (*domain.TwoFactorChallenge, error) {
	var (
		id, userID, hash     string
		attempts             int
		expiresAt, createdAt int64
	)
	if err := sc.Scan(&id, &userID, &hash, &attempts, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	return &domain.TwoFactorChallenge{
		ID:        idx.ID(id),
		UserID:    idx.ID(userID),
		TokenHash: hash,
		Attempts:  attempts,
		ExpiresAt: fromMillis(expiresAt),
		CreatedAt: fromMillis(createdAt),
	}, nil
}

func (r *challengesRepo) Create(ctx context.Context, c *domain.TwoFactorChallenge) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO two_factor_challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID.String(),
		c.UserID.String(),
		c.TokenHash,
		c.Attempts,
		toMillis(c.ExpiresAt),
		toMillis(c.CreatedAt),
	)
	return mapErr(err)
}

func (r *challengesRepo) FindByToken(ctx context.Context, tokenHash string) (*domain.TwoFactorChallenge, error) {
	c, err := scanChallenge(r.q.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM two_factor_challenges WHERE token_hash = ?`, tokenHash))
	return c, mapErr(err)
}

func (r *challengesRepo) IncrementAttempts(ctx context.Context, id idx.ID) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx,
		`UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id.String(),
	).Scan(&attempts)
	return attempts, mapErr(err)
}

func (r *challengesRepo) Delete(ctx context.Context, id idx.ID) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE id = ?`, id.String()))
}

func (r *challengesRepo) DeleteByUserID(ctx context.Context, userID idx.ID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE user_id = ?`, userID.String())
	return mapErr(err)
}

func (r *challengesRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.q, `DELETE FROM two_factor_challenges WHERE expires_at <= ?`, now)
}
