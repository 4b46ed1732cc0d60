package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/pkg/idx"
)

func deleteExpired(ctx context.Context, q dbtx, query string, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, query, toMillis(now))
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

type refreshTokensRepo struct {
	q dbtx
}

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked_at, created_at`

func scanRefreshToken(sc scanner) (*domain.RefreshToken, error) {
	var (
		id, userID, hash     string
		expiresAt, createdAt int64
		revokedAt            sql.NullInt64
	)
	if err := sc.Scan(&id, &userID, &hash, &expiresAt, &revokedAt, &createdAt); err != nil {
		return nil, err
	}
	return &domain.RefreshToken{
		ID:        idx.ID(id),
		UserID:    idx.ID(userID),
		TokenHash: hash,
		ExpiresAt: fromMillis(expiresAt),
		RevokedAt: fromNullMillis(revokedAt),
		CreatedAt: fromMillis(createdAt),
	}, nil
}

func (r *refreshTokensRepo) FindByToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, tokenHash))
	return t, mapErr(err)
}

func (r *refreshTokensRepo) FindByUserID(ctx context.Context, userID idx.ID) ([]*domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? ORDER BY created_at, id`,
		userID.String())
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(),
		t.UserID.String(),
		t.TokenHash,
		toMillis(t.ExpiresAt),
		toNullMillis(t.RevokedAt),
		toMillis(t.CreatedAt),
	)
	return mapErr(err)
}

func (r *refreshTokensRepo) Update(ctx context.Context, t *domain.RefreshToken) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE id = ?`,
		toNullMillis(t.RevokedAt), t.ID.String(),
	))
}

func (r *refreshTokensRepo) DeleteByUserID(ctx context.Context, userID idx.ID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID.String())
	return mapErr(err)
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.q, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, now)
}

type otpsRepo struct {
	q dbtx
}

const otpColumns = `id, user_id, secret, expires_at, verified_at, created_at`

func scanOTP(sc scanner) (*domain.OneTimePassword, error) {
	var (
		id, userID, secret   string
		expiresAt, createdAt int64
		verifiedAt           sql.NullInt64
	)
	if err := sc.Scan(&id, &userID, &secret, &expiresAt, &verifiedAt, &createdAt); err != nil {
		return nil, err
	}
	return &domain.OneTimePassword{
		ID:         idx.ID(id),
		UserID:     idx.ID(userID),
		Secret:     secret,
		ExpiresAt:  fromMillis(expiresAt),
		VerifiedAt: fromNullMillis(verifiedAt),
		CreatedAt:  fromMillis(createdAt),
	}, nil
}

func (r *otpsRepo) FindByID(ctx context.Context, id idx.ID) (*domain.OneTimePassword, error) {
	o, err := scanOTP(r.q.QueryRowContext(ctx, `SELECT `+otpColumns+` FROM otps WHERE id = ?`, id.String()))
	return o, mapErr(err)
}

func (r *otpsRepo) FindLatestByUserID(ctx context.Context, userID idx.ID) (*domain.OneTimePassword, error) {
	o, err := scanOTP(r.q.QueryRowContext(ctx,
		`SELECT `+otpColumns+` FROM otps WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID.String()))
	return o, mapErr(err)
}

func (r *otpsRepo) Create(ctx context.Context, o *domain.OneTimePassword) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO otps (`+otpColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID.String(),
		o.UserID.String(),
		o.Secret,
		toMillis(o.ExpiresAt),
		toNullMillis(o.VerifiedAt),
		toMillis(o.CreatedAt),
	)
	return mapErr(err)
}

func (r *otpsRepo) Update(ctx context.Context, o *domain.OneTimePassword) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE otps SET verified_at = ? WHERE id = ?`,
		toNullMillis(o.VerifiedAt), o.ID.String(),
	))
}

func (r *otpsRepo) Delete(ctx context.Context, id idx.ID) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM otps WHERE id = ?`, id.String()))
}

func (r *otpsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.q, `DELETE FROM otps WHERE expires_at <= ?`, now)
}

type emailVerificationsRepo struct {
	q dbtx
}

const emailVerificationColumns = `id, email, code, expires_at, verified_at, created_at`

func scanEmailVerification(sc scanner) (*domain.EmailVerification, error) {
	var (
		id, email, code      string
		expiresAt, createdAt int64
		verifiedAt           sql.NullInt64
	)
	if err := sc.Scan(&id, &email, &code, &expiresAt, &verifiedAt, &createdAt); err != nil {
		return nil, err
	}
	return &domain.EmailVerification{
		ID:         idx.ID(id),
		Email:      email,
		Code:       code,
		ExpiresAt:  fromMillis(expiresAt),
		VerifiedAt: fromNullMillis(verifiedAt),
		CreatedAt:  fromMillis(createdAt),
	}, nil
}

func (r *emailVerificationsRepo) Create(ctx context.Context, v *domain.EmailVerification) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO email_verifications (`+emailVerificationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID.String(),
		v.Email,
		v.Code,
		toMillis(v.ExpiresAt),
		toNullMillis(v.VerifiedAt),
		toMillis(v.CreatedAt),
	)
	return mapErr(err)
}

// FindByCode returns the newest matching entry.
func (r *emailVerificationsRepo) FindByCode(ctx context.Context, email, code string) (*domain.EmailVerification, error) {
	v, err := scanEmailVerification(r.q.QueryRowContext(ctx,
		`SELECT `+emailVerificationColumns+` FROM email_verifications
		  WHERE email = ? AND code = ?
		  ORDER BY created_at DESC, id DESC LIMIT 1`, email, code))
	return v, mapErr(err)
}

func (r *emailVerificationsRepo) IsVerified(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_verifications WHERE email = ? AND verified_at IS NOT NULL`,
		email).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (r *emailVerificationsRepo) Update(ctx context.Context, v *domain.EmailVerification) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE email_verifications SET verified_at = ? WHERE id = ?`,
		toNullMillis(v.VerifiedAt), v.ID.String(),
	))
}

func (r *emailVerificationsRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE email = ? AND verified_at IS NULL`, email)
	return mapErr(err)
}

func (r *emailVerificationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.q,
		`DELETE FROM email_verifications WHERE expires_at <= ? AND verified_at IS NULL`, now)
}

type passwordResetsRepo struct {
	q dbtx
}

const passwordResetColumns = `id, user_id, token_hash, expires_at, used_at, created_at`

func scanPasswordReset(sc scanner) (*domain.PasswordReset, error) {
	var (
		id, userID, hash     string
		expiresAt, createdAt int64
		usedAt               sql.NullInt64
	)
	if err := sc.Scan(&id, &userID, &hash, &expiresAt, &usedAt, &createdAt); err != nil {
		return nil, err
	}
	return &domain.PasswordReset{
		ID:        idx.ID(id),
		UserID:    idx.ID(userID),
		TokenHash: hash,
		ExpiresAt: fromMillis(expiresAt),
		UsedAt:    fromNullMillis(usedAt),
		CreatedAt: fromMillis(createdAt),
	}, nil
}

func (r *passwordResetsRepo) Create(ctx context.Context, p *domain.PasswordReset) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO password_resets (`+passwordResetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID.String(),
		p.UserID.String(),
		p.TokenHash,
		toMillis(p.ExpiresAt),
		toNullMillis(p.UsedAt),
		toMillis(p.CreatedAt),
	)
	return mapErr(err)
}

func (r *passwordResetsRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error) {
	p, err := scanPasswordReset(r.q.QueryRowContext(ctx,
		`SELECT `+passwordResetColumns+` FROM password_resets WHERE token_hash = ?`, tokenHash))
	return p, mapErr(err)
}

func (r *passwordResetsRepo) Update(ctx context.Context, p *domain.PasswordReset) error {
	return requireAffected(r.q.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ?`,
		toNullMillis(p.UsedAt), p.ID.String(),
	))
}

func (r *passwordResetsRepo) DeleteByUserID(ctx context.Context, userID idx.ID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id = ?`, userID.String())
	return mapErr(err)
}

func (r *passwordResetsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.q, `DELETE FROM password_resets WHERE expires_at <= ?`, now)
}
