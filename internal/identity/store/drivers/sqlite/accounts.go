package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mealsphere/identity/internal/identity/domain"
)

type accountsRepo struct {
	db dbtx
}

const accountColumns = `id, username, password_hash, roles, enabled,
	failed_attempts, locked_until, mfa_enabled, mfa_secret,
	reset_token_hash, reset_token_expiry, session_token_hash, last_login,
	created_at, updated_at`

func (r *accountsRepo) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	return scanAccount(row)
}

func (r *accountsRepo) GetByResetTokenHash(ctx context.Context, tokenHash string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = ?`, tokenHash)
	return scanAccount(row)
}

func (r *accountsRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM accounts WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, roles, enabled,
			failed_attempts, locked_until, mfa_enabled, mfa_secret,
			reset_token_hash, reset_token_expiry, session_token_hash, last_login
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, joinRoles(a.Roles), a.Enabled,
		a.FailedAttempts, mapOptionalTime(a.LockedUntil), a.MFAEnabled,
		mapOptionalString(a.MFASecret), mapOptionalString(a.ResetTokenHash),
		mapOptionalTime(a.ResetTokenExpiry), mapOptionalString(a.SessionTokenHash),
		mapOptionalTime(a.LastLogin),
	)
	return mapConstraint(err)
}

// Update writes every mutable field wholesale. The username and id never
// change after creation, so they only appear in the WHERE clause.
func (r *accountsRepo) Update(ctx context.Context, a domain.Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			password_hash = ?,
			roles = ?,
			enabled = ?,
			failed_attempts = ?,
			locked_until = ?,
			mfa_enabled = ?,
			mfa_secret = ?,
			reset_token_hash = ?,
			reset_token_expiry = ?,
			session_token_hash = ?,
			last_login = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		a.PasswordHash, joinRoles(a.Roles), a.Enabled,
		a.FailedAttempts, mapOptionalTime(a.LockedUntil), a.MFAEnabled,
		mapOptionalString(a.MFASecret), mapOptionalString(a.ResetTokenHash),
		mapOptionalTime(a.ResetTokenExpiry), mapOptionalString(a.SessionTokenHash),
		mapOptionalTime(a.LastLogin), a.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *accountsRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET reset_token_hash = NULL, reset_token_expiry = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE reset_token_expiry IS NOT NULL AND reset_token_expiry < ?`, now)
	return err
}

func (r *accountsRepo) ClearExpiredLocks(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET locked_until = NULL, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE locked_until IS NOT NULL AND locked_until < ?`, now)
	return err
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var roles string
	var lockedUntil, resetExpiry, lastLogin sql.NullTime
	var mfaSecret, resetTokenHash, sessionToken sql.NullString

	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &roles, &a.Enabled,
		&a.FailedAttempts, &lockedUntil, &a.MFAEnabled, &mfaSecret,
		&resetTokenHash, &resetExpiry, &sessionToken, &lastLogin,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Roles = splitRoles(roles)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	a.MFASecret = mapNullStringPtr(mfaSecret)
	a.ResetTokenHash = mapNullStringPtr(resetTokenHash)
	a.ResetTokenExpiry = mapNullTimePtr(resetExpiry)
	a.SessionTokenHash = mapNullStringPtr(sessionToken)
	a.LastLogin = mapNullTimePtr(lastLogin)
	return a, nil
}
