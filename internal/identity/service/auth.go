package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mealsphere/identity/internal/identity/domain"
	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/pkg/cryptox"
	"github.com/mealsphere/identity/pkg/idx"
	"github.com/mealsphere/identity/pkg/jwtx"
	"github.com/mealsphere/identity/pkg/slogx"
	"github.com/mealsphere/identity/pkg/totpx"
)

const (
	// DefaultMaxFailedAttempts is how many wrong passwords lock an account.
	DefaultMaxFailedAttempts = 5
	// DefaultLockDuration is how long a lockout lasts.
	DefaultLockDuration = 30 * time.Minute
)

// AuthService is the account security state machine: login, lockout, token
// lifecycle, and administrative unlock. Each operation is a read-modify-write
// of one account record executed inside a store transaction.
type AuthService struct {
	Store  store.Store
	Tokens *jwtx.Issuer
	Mailer Mailer

	MaxFailedAttempts int           // 0 means DefaultMaxFailedAttempts
	LockDuration      time.Duration // 0 means DefaultLockDuration
}

// Login authenticates a username/password pair. The check order is fixed:
// locked, password, disabled, MFA, success. A locked account never reveals
// whether the submitted password was correct, and a locked-window attempt
// does not touch the failed-attempt counter.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.AuthResult, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	var result domain.AuthResult
	var lockedNow bool

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login failed: unknown username", slog.String("username", username))
			result = failed(msgInvalidCredentials)
			return nil
		}
		if err != nil {
			return err
		}

		if acct.Locked(now) {
			l.Warn("login failed: account locked", slog.String("username", username))
			result = failed(msgAccountLocked)
			return nil
		}

		if err := cryptox.VerifyPassword(password, acct.PasswordHash); err != nil {
			acct.FailedAttempts++
			if acct.FailedAttempts >= s.maxFailedAttempts() {
				until := now.Add(s.lockDuration())
				acct.LockedUntil = &until
				lockedNow = true
				l.Warn("account locked after repeated failures",
					slog.String("username", username),
					slog.Int("failed_attempts", acct.FailedAttempts))
			}
			if err := tx.Accounts().Update(ctx, acct); err != nil {
				return err
			}
			l.Info("login failed: wrong password", slog.String("username", username))
			result = failed(msgInvalidCredentials)
			return nil
		}

		if !acct.Enabled {
			l.Warn("login failed: account disabled", slog.String("username", username))
			result = failed(msgAccountDisabled)
			return nil
		}

		if acct.MFAEnabled {
			result = domain.AuthResult{
				Status:    domain.StatusMFARequired,
				Message:   msgMFARequired,
				AccountID: acct.ID,
				Username:  acct.Username,
			}
			return nil
		}

		result, err = s.issueSession(ctx, tx, acct, now)
		return err
	})
	if err != nil {
		return domain.AuthResult{}, err
	}

	if lockedNow {
		s.notifyLocked(ctx, username)
	}
	return result, nil
}

// CompleteMFALogin is the second half of the login flow for MFA-enabled
// accounts: it verifies the one-time code and, on success, issues the session
// the earlier Login call withheld.
func (s *AuthService) CompleteMFALogin(ctx context.Context, username, code string) (domain.AuthResult, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	var result domain.AuthResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			result = failed(msgInvalidCredentials)
			return nil
		}
		if err != nil {
			return err
		}

		if acct.Locked(now) {
			result = failed(msgAccountLocked)
			return nil
		}
		if !acct.Enabled {
			result = failed(msgAccountDisabled)
			return nil
		}
		if acct.MFASecret == nil || !totpx.Verify(*acct.MFASecret, code) {
			l.Info("MFA login failed: invalid code", slog.String("username", username))
			result = failed(msgInvalidMFACode)
			return nil
		}

		result, err = s.issueSession(ctx, tx, acct, now)
		return err
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

// Register creates a new enabled account and issues its first session token.
func (s *AuthService) Register(ctx context.Context, username, password, role string) (domain.AuthResult, error) {
	l := slogx.FromContext(ctx)

	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return failed(msgInvalidRole), nil
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.AuthResult{}, err
	}

	var result domain.AuthResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		taken, err := tx.Accounts().ExistsByUsername(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			l.Info("registration rejected: username taken", slog.String("username", username))
			result = failed(msgUsernameTaken)
			return nil
		}

		acct := domain.Account{
			ID:           idx.New().String(),
			Username:     username,
			PasswordHash: hash,
			Roles:        []string{role},
			Enabled:      true,
		}
		if err := tx.Accounts().Create(ctx, acct); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				result = failed(msgUsernameTaken)
				return nil
			}
			return err
		}

		token, expiresAt, err := s.Tokens.Issue(acct.ID, acct.Username, acct.Roles)
		if err != nil {
			return err
		}
		fp := cryptox.FingerprintToken(token)
		acct.SessionTokenHash = &fp
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		l.Info("account registered", slog.String("username", username), slog.String("account_id", acct.ID))
		result = success(acct, token, expiresAt, msgRegisterOK)
		return nil
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

// ValidateToken checks the token cryptographically and against the account's
// stored session reference, so logout and password changes revoke tokens
// that are otherwise still within their signed lifetime.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (jwtx.SessionClaims, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}

	acct, err := s.Store.Accounts().GetByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}
	if err != nil {
		return jwtx.SessionClaims{}, err
	}

	if !acct.Enabled {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}
	if acct.SessionTokenHash == nil || *acct.SessionTokenHash != cryptox.FingerprintToken(token) {
		return jwtx.SessionClaims{}, ErrInvalidToken
	}

	return claims, nil
}

// RefreshToken exchanges a valid session token for a fresh one. Storing the
// new token's fingerprint implicitly revokes the old token.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (domain.AuthResult, error) {
	claims, err := s.ValidateToken(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		return failed(msgInvalidToken), nil
	}
	if err != nil {
		return domain.AuthResult{}, err
	}

	var result domain.AuthResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByID(ctx, claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			result = failed(msgInvalidToken)
			return nil
		}
		if err != nil {
			return err
		}

		newToken, expiresAt, err := s.Tokens.Issue(acct.ID, acct.Username, acct.Roles)
		if err != nil {
			return err
		}
		fp := cryptox.FingerprintToken(newToken)
		acct.SessionTokenHash = &fp
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		result = success(acct, newToken, expiresAt, msgRefreshOK)
		return nil
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

// Logout clears the stored session reference. Idempotent: an invalid or
// already-revoked token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.ValidateToken(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByID(ctx, claims.Subject)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		acct.SessionTokenHash = nil
		return tx.Accounts().Update(ctx, acct)
	})
}

// IsAccountLocked reports the lock state. Administrative operation: unknown
// usernames surface ErrNotFound.
func (s *AuthService) IsAccountLocked(ctx context.Context, username string) (bool, error) {
	acct, err := s.Store.Accounts().GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return acct.Locked(time.Now().UTC()), nil
}

// UnlockAccount is the administrative override: clears both the failed
// counter and the lock timestamp.
func (s *AuthService) UnlockAccount(ctx context.Context, username string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		acct.FailedAttempts = 0
		acct.LockedUntil = nil
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		slogx.FromContext(ctx).Info("account unlocked", slog.String("username", username))
		return nil
	})
}

// issueSession finalizes a fully-proven authentication: counter reset, fresh
// token, stored fingerprint, last-login stamp.
func (s *AuthService) issueSession(ctx context.Context, tx store.Tx, acct domain.Account, now time.Time) (domain.AuthResult, error) {
	acct.FailedAttempts = 0
	acct.LockedUntil = nil

	token, expiresAt, err := s.Tokens.Issue(acct.ID, acct.Username, acct.Roles)
	if err != nil {
		return domain.AuthResult{}, err
	}
	fp := cryptox.FingerprintToken(token)
	acct.SessionTokenHash = &fp
	acct.LastLogin = &now

	if err := tx.Accounts().Update(ctx, acct); err != nil {
		return domain.AuthResult{}, err
	}

	slogx.FromContext(ctx).Info("login successful", slog.String("username", acct.Username))
	return success(acct, token, expiresAt, msgLoginOK), nil
}

func (s *AuthService) notifyLocked(ctx context.Context, username string) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.SendAccountLockedEmail(ctx, username, username); err != nil {
		slogx.FromContext(ctx).Error("failed to send account locked email",
			slog.String("username", username), slog.Any("error", err))
	}
}

func (s *AuthService) maxFailedAttempts() int {
	if s.MaxFailedAttempts > 0 {
		return s.MaxFailedAttempts
	}
	return DefaultMaxFailedAttempts
}

func (s *AuthService) lockDuration() time.Duration {
	if s.LockDuration > 0 {
		return s.LockDuration
	}
	return DefaultLockDuration
}

func failed(msg string) domain.AuthResult {
	return domain.AuthResult{Status: domain.StatusFailed, Message: msg}
}

func success(acct domain.Account, token string, expiresAt time.Time, msg string) domain.AuthResult {
	return domain.AuthResult{
		Status:    domain.StatusSuccess,
		Message:   msg,
		AccountID: acct.ID,
		Username:  acct.Username,
		Roles:     acct.Roles,
		Token:     token,
		ExpiresAt: expiresAt,
	}
}
