package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mealsphere/identity/internal/identity/domain"
	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/pkg/slogx"
	"github.com/mealsphere/identity/pkg/totpx"
)

// MFAService manages TOTP enrollment. Enrollment is two-phase: Setup stores
// a secret in a pending state, and the first successful Verify activates it.
type MFAService struct {
	Store  store.Store
	Issuer string
}

// Setup generates a fresh TOTP secret for the account and returns the
// enrollment details. Calling Setup again before verification replaces the
// pending secret; calling it on an already-enabled account re-keys MFA.
func (s *MFAService) Setup(ctx context.Context, username string) (domain.MFAEnrollment, error) {
	var enrollment domain.MFAEnrollment

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		secret, err := totpx.GenerateSecret()
		if err != nil {
			return err
		}

		acct.MFASecret = &secret
		acct.MFAEnabled = false
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		enrollment = domain.MFAEnrollment{
			Secret:  secret,
			URL:     totpx.EnrollmentURL(secret, acct.Username, s.Issuer),
			Issuer:  s.Issuer,
			Account: acct.Username,
		}
		slogx.FromContext(ctx).Info("MFA enrollment started", slog.String("username", username))
		return nil
	})
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	return enrollment, nil
}

// Verify checks a TOTP code against the account's secret. The first valid
// code after Setup flips MFA on. Returns false for wrong codes and for
// accounts with no secret enrolled.
func (s *MFAService) Verify(ctx context.Context, username, code string) (bool, error) {
	var ok bool

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if acct.MFASecret == nil || !totpx.Verify(*acct.MFASecret, code) {
			return nil
		}

		ok = true
		if !acct.MFAEnabled {
			acct.MFAEnabled = true
			if err := tx.Accounts().Update(ctx, acct); err != nil {
				return err
			}
			slogx.FromContext(ctx).Info("MFA enabled", slog.String("username", username))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Disable turns MFA off and discards the secret.
func (s *MFAService) Disable(ctx context.Context, username string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		acct.MFAEnabled = false
		acct.MFASecret = nil
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		slogx.FromContext(ctx).Info("MFA disabled", slog.String("username", username))
		return nil
	})
}
