package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/pkg/cryptox"
	"github.com/mealsphere/identity/pkg/slogx"
)

// DefaultResetTokenTTL is how long a password reset token stays redeemable.
const DefaultResetTokenTTL = 24 * time.Hour

// PasswordService handles credential changes and the reset token lifecycle.
// Reset requests are deliberately uniform from the caller's side: throttled,
// unknown, and successful requests all look identical.
type PasswordService struct {
	Store  store.Store
	Mailer Mailer

	ResetTokenTTL time.Duration // 0 means DefaultResetTokenTTL
	ResetBaseURL  string

	limiterOnce sync.Once
	limiter     *resetLimiter
}

// ChangePassword verifies the current password and swaps in the new one.
// Returns false (not an error) when the account is unknown or the current
// password is wrong. A successful change revokes the active session.
func (s *PasswordService) ChangePassword(ctx context.Context, username, current, next string) (bool, error) {
	l := slogx.FromContext(ctx)

	var changed bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := cryptox.VerifyPassword(current, acct.PasswordHash); err != nil {
			l.Info("password change rejected: wrong current password",
				slog.String("username", username))
			return nil
		}

		hash, err := cryptox.HashPassword(next)
		if err != nil {
			return err
		}
		acct.PasswordHash = hash
		acct.SessionTokenHash = nil
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		l.Info("password changed", slog.String("username", username))
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// RequestReset generates a reset token and emails a reset link to the
// caller-supplied address (accounts store no address of their own). It
// returns nil for unknown usernames and throttled requests alike so callers
// can't probe which accounts exist.
func (s *PasswordService) RequestReset(ctx context.Context, username, email string) error {
	l := slogx.FromContext(ctx)

	if !s.resetLimiter().Allow(username) {
		l.Warn("password reset throttled", slog.String("username", username))
		return nil
	}

	now := time.Now().UTC()
	var link string

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password reset requested for unknown username",
				slog.String("username", username))
			return nil
		}
		if err != nil {
			return err
		}

		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}
		fp := cryptox.FingerprintToken(token)
		expiry := now.Add(s.resetTokenTTL())

		acct.ResetTokenHash = &fp
		acct.ResetTokenExpiry = &expiry
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		link = s.ResetBaseURL + "?token=" + token
		l.Info("password reset token issued", slog.String("username", username))
		return nil
	})
	if err != nil {
		return err
	}

	if link != "" && s.Mailer != nil {
		if err := s.Mailer.SendPasswordResetEmail(ctx, email, link); err != nil {
			l.Error("failed to send password reset email",
				slog.String("username", username), slog.Any("error", err))
		}
	}
	return nil
}

// ConfirmReset redeems a reset token and sets the new password. The token is
// single-use: confirmation clears it along with any lockout state and the
// active session.
func (s *PasswordService) ConfirmReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrValidation
	}

	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		fp := cryptox.FingerprintToken(token)
		acct, err := tx.Accounts().GetByResetTokenHash(ctx, fp)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return err
		}

		if acct.ResetTokenExpiry == nil || now.After(*acct.ResetTokenExpiry) {
			return ErrInvalidResetToken
		}

		hash, err := cryptox.HashPassword(newPassword)
		if err != nil {
			return err
		}

		acct.PasswordHash = hash
		acct.ResetTokenHash = nil
		acct.ResetTokenExpiry = nil
		acct.FailedAttempts = 0
		acct.LockedUntil = nil
		acct.SessionTokenHash = nil
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		l.Info("password reset completed", slog.String("username", acct.Username))
		return nil
	})
}

// Close stops the reset throttle's background cleanup. Safe to call more
// than once and before any request was handled.
func (s *PasswordService) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *PasswordService) resetTokenTTL() time.Duration {
	if s.ResetTokenTTL > 0 {
		return s.ResetTokenTTL
	}
	return DefaultResetTokenTTL
}

func (s *PasswordService) resetLimiter() *resetLimiter {
	s.limiterOnce.Do(func() {
		// 1 request per minute with a burst of 3 per username.
		s.limiter = newResetLimiter(rate.Every(time.Minute), 3)
	})
	return s.limiter
}
