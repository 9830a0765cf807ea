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
	"github.com/mealsphere/identity/pkg/slogx"
)

// ProviderValidator verifies a provider-issued token and returns the
// external identity it proves. Implementations call out to the provider
// (or verify its signature locally) and must not trust the token contents
// otherwise.
type ProviderValidator interface {
	Validate(ctx context.Context, provider, providerToken string) (domain.ProviderIdentity, error)
}

// OAuthService signs users in through external identity providers. The
// provider identity maps to a local account via a stored link, falling back
// to an email match, and finally to just-in-time account creation.
type OAuthService struct {
	Store     store.Store
	Auth      *AuthService
	Validator ProviderValidator
}

// Login validates the provider token and resolves or creates the local
// account, then issues a session exactly like a password login would.
func (s *OAuthService) Login(ctx context.Context, provider, providerToken string) (domain.AuthResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	identity, err := s.Validator.Validate(ctx, provider, providerToken)
	if err != nil {
		l.Warn("OAuth token validation failed",
			slog.String("provider", provider), slog.Any("error", err))
		return failed(msgInvalidOAuthToken), nil
	}

	var result domain.AuthResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		acct, err := s.resolveAccount(ctx, tx, provider, identity)
		if err != nil {
			return err
		}

		if !acct.Enabled {
			result = failed(msgAccountDisabled)
			return nil
		}

		result, err = s.Auth.issueSession(ctx, tx, acct, now)
		if err != nil {
			return err
		}
		result.Message = msgOAuthOK
		return nil
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

// resolveAccount maps a provider identity to a local account: existing link,
// then email match (recording the link), then a fresh account.
func (s *OAuthService) resolveAccount(ctx context.Context, tx store.Tx, provider string, identity domain.ProviderIdentity) (domain.Account, error) {
	l := slogx.FromContext(ctx)

	accountID, err := tx.OAuthLinks().GetAccountID(ctx, provider, identity.ProviderAccountID)
	if err == nil {
		return tx.Accounts().GetByID(ctx, accountID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	acct, err := tx.Accounts().GetByUsername(ctx, identity.Email)
	if errors.Is(err, store.ErrNotFound) {
		acct, err = s.createAccount(ctx, tx, identity)
		if err != nil {
			return domain.Account{}, err
		}
		l.Info("account created from OAuth identity",
			slog.String("provider", provider), slog.String("username", acct.Username))
	} else if err != nil {
		return domain.Account{}, err
	}

	link := domain.OAuthLink{
		AccountID:         acct.ID,
		Provider:          provider,
		ProviderAccountID: identity.ProviderAccountID,
	}
	if err := tx.OAuthLinks().Create(ctx, link); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return domain.Account{}, err
	}
	return acct, nil
}

// createAccount provisions a local account for a first-time OAuth user. The
// password is random and unknown to anyone; the account is only reachable
// through the provider until a password reset claims it.
func (s *OAuthService) createAccount(ctx context.Context, tx store.Tx, identity domain.ProviderIdentity) (domain.Account, error) {
	random, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Account{}, err
	}
	hash, err := cryptox.HashPassword(random)
	if err != nil {
		return domain.Account{}, err
	}

	acct := domain.Account{
		ID:           idx.New().String(),
		Username:     identity.Email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleUser},
		Enabled:      true,
	}
	if err := tx.Accounts().Create(ctx, acct); err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}
