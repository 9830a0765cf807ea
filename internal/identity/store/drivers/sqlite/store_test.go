package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealsphere/identity/internal/identity/domain"
	"github.com/mealsphere/identity/internal/identity/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testAccount(id, username string) domain.Account {
	return domain.Account{
		ID:           id,
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Roles:        []string{domain.RoleUser},
		Enabled:      true,
	}
}

func TestAccountsRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		byID, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)
		require.Equal(t, "alice", byID.Username)
		require.Equal(t, []string{domain.RoleUser}, byID.Roles)
		require.True(t, byID.Enabled)
		require.False(t, byID.CreatedAt.IsZero())
		require.Nil(t, byID.LockedUntil)
		require.Nil(t, byID.SessionTokenHash)

		byName, err := st.Accounts().GetByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, byID.ID, byName.ID)
	})

	t.Run("missing rows map to ErrNotFound", func(t *testing.T) {
		st := newStore(t)

		_, err := st.Accounts().GetByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.Accounts().GetByUsername(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.Accounts().GetByResetTokenHash(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, st.Accounts().Update(ctx, testAccount("nope", "nope")),
			store.ErrNotFound)
	})

	t.Run("duplicate username maps to ErrAlreadyExists", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))
		require.ErrorIs(t, st.Accounts().Create(ctx, testAccount("acct-2", "alice")),
			store.ErrAlreadyExists)
	})

	t.Run("exists reflects creation", func(t *testing.T) {
		st := newStore(t)

		ok, err := st.Accounts().ExistsByUsername(ctx, "alice")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		ok, err = st.Accounts().ExistsByUsername(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("update persists nullable fields both ways", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		acct, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)

		until := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
		secret := "JBSWY3DPEHPK3PXP"
		acct.FailedAttempts = 3
		acct.LockedUntil = &until
		acct.MFAEnabled = true
		acct.MFASecret = &secret
		acct.Roles = []string{domain.RoleUser, domain.RoleAdmin}
		require.NoError(t, st.Accounts().Update(ctx, acct))

		got, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)
		require.Equal(t, 3, got.FailedAttempts)
		require.NotNil(t, got.LockedUntil)
		require.True(t, got.LockedUntil.Equal(until))
		require.True(t, got.MFAEnabled)
		require.Equal(t, secret, *got.MFASecret)
		require.Equal(t, []string{domain.RoleUser, domain.RoleAdmin}, got.Roles)

		got.LockedUntil = nil
		got.MFASecret = nil
		got.MFAEnabled = false
		require.NoError(t, st.Accounts().Update(ctx, got))

		got, err = st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)
		require.Nil(t, got.LockedUntil)
		require.Nil(t, got.MFASecret)
	})

	t.Run("reset token lookup", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		acct, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)

		hash := "token-fingerprint"
		expiry := time.Now().UTC().Add(time.Hour)
		acct.ResetTokenHash = &hash
		acct.ResetTokenExpiry = &expiry
		require.NoError(t, st.Accounts().Update(ctx, acct))

		got, err := st.Accounts().GetByResetTokenHash(ctx, hash)
		require.NoError(t, err)
		require.Equal(t, "acct-1", got.ID)
	})

	t.Run("expired state sweeps", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		acct, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)

		past := time.Now().UTC().Add(-time.Minute)
		hash := "token-fingerprint"
		acct.ResetTokenHash = &hash
		acct.ResetTokenExpiry = &past
		acct.LockedUntil = &past
		acct.FailedAttempts = 5
		require.NoError(t, st.Accounts().Update(ctx, acct))

		now := time.Now().UTC()
		require.NoError(t, st.Accounts().ClearExpiredResetTokens(ctx, now))
		require.NoError(t, st.Accounts().ClearExpiredLocks(ctx, now))

		got, err := st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)
		require.Nil(t, got.ResetTokenHash)
		require.Nil(t, got.ResetTokenExpiry)
		require.Nil(t, got.LockedUntil)
		require.Zero(t, got.FailedAttempts)
	})
}

func TestOAuthLinksRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and resolve", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))

		link := domain.OAuthLink{AccountID: "acct-1", Provider: "google", ProviderAccountID: "g-123"}
		require.NoError(t, st.OAuthLinks().Create(ctx, link))

		id, err := st.OAuthLinks().GetAccountID(ctx, "google", "g-123")
		require.NoError(t, err)
		require.Equal(t, "acct-1", id)

		_, err = st.OAuthLinks().GetAccountID(ctx, "google", "unknown")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate pair maps to ErrAlreadyExists", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-1", "alice")))
		require.NoError(t, st.Accounts().Create(ctx, testAccount("acct-2", "bob")))

		link := domain.OAuthLink{AccountID: "acct-1", Provider: "google", ProviderAccountID: "g-123"}
		require.NoError(t, st.OAuthLinks().Create(ctx, link))

		link.AccountID = "acct-2"
		require.ErrorIs(t, st.OAuthLinks().Create(ctx, link), store.ErrAlreadyExists)
	})
}

func TestStoreTx(t *testing.T) {
	ctx := context.Background()

	t.Run("WithTx rolls back on error", func(t *testing.T) {
		st := newStore(t)

		sentinel := errors.New("boom")
		err := st.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Accounts().Create(ctx, testAccount("acct-1", "alice")); err != nil {
				return err
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		_, err = st.Accounts().GetByID(ctx, "acct-1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("WithTx commits on nil", func(t *testing.T) {
		st := newStore(t)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			return tx.Accounts().Create(ctx, testAccount("acct-1", "alice"))
		})
		require.NoError(t, err)

		_, err = st.Accounts().GetByID(ctx, "acct-1")
		require.NoError(t, err)
	})

	t.Run("nested transactions are rejected", func(t *testing.T) {
		st := newStore(t)

		err := st.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.Tx(ctx)
			return err
		})
		require.Error(t, err)
	})
}
