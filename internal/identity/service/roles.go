package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/mealsphere/identity/internal/identity/domain"
	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/pkg/slogx"
)

// RolesService manages role grants on accounts. Every account keeps at least
// one role: removing the last one reverts it to the base user role.
type RolesService struct {
	Store store.Store
}

// AddRole grants a role. Returns true whether the role was added or already
// present; false with ErrValidation for an unknown role name.
func (s *RolesService) AddRole(ctx context.Context, username, role string) (bool, error) {
	if !domain.ValidRole(role) {
		return false, ErrValidation
	}

	var added bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if slices.Contains(acct.Roles, role) {
			added = true
			return nil
		}

		acct.Roles = append(acct.Roles, role)
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		slogx.FromContext(ctx).Info("role granted",
			slog.String("username", username), slog.String("role", role))
		added = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// RemoveRole revokes a role. Returns false when the account didn't hold it.
// Stripping the final role leaves the account with the base user role rather
// than no roles at all.
func (s *RolesService) RemoveRole(ctx context.Context, username, role string) (bool, error) {
	var removed bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := tx.Accounts().GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if !slices.Contains(acct.Roles, role) {
			return nil
		}

		acct.Roles = slices.DeleteFunc(acct.Roles, func(r string) bool { return r == role })
		if len(acct.Roles) == 0 {
			acct.Roles = []string{domain.RoleUser}
		}
		if err := tx.Accounts().Update(ctx, acct); err != nil {
			return err
		}

		slogx.FromContext(ctx).Info("role revoked",
			slog.String("username", username), slog.String("role", role))
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// GetAccountRoles lists the roles an account currently holds.
func (s *RolesService) GetAccountRoles(ctx context.Context, username string) ([]string, error) {
	acct, err := s.Store.Accounts().GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return acct.Roles, nil
}
