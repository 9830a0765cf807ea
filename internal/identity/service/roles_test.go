package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mealsphere/identity/internal/identity/domain"
)

func TestRolesService(t *testing.T) {
	ctx := context.Background()

	t.Run("add grants and is idempotent", func(t *testing.T) {
		st := newTestStore(t)
		auth := newTestAuth(t, st)
		roles := &RolesService{Store: st}
		register(t, auth, "alice", "hunter2-but-long")

		added, err := roles.AddRole(ctx, "alice", domain.RoleAdmin)
		require.NoError(t, err)
		require.True(t, added)

		added, err = roles.AddRole(ctx, "alice", domain.RoleAdmin)
		require.NoError(t, err)
		require.True(t, added)

		got, err := roles.GetAccountRoles(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, []string{domain.RoleUser, domain.RoleAdmin}, got)
	})

	t.Run("unknown role name is a validation error", func(t *testing.T) {
		st := newTestStore(t)
		auth := newTestAuth(t, st)
		roles := &RolesService{Store: st}
		register(t, auth, "alice", "hunter2-but-long")

		added, err := roles.AddRole(ctx, "alice", "WIZARD")
		require.ErrorIs(t, err, ErrValidation)
		require.False(t, added)
	})

	t.Run("remove revokes and reports absence", func(t *testing.T) {
		st := newTestStore(t)
		auth := newTestAuth(t, st)
		roles := &RolesService{Store: st}
		register(t, auth, "alice", "hunter2-but-long")

		_, err := roles.AddRole(ctx, "alice", domain.RoleAdmin)
		require.NoError(t, err)

		removed, err := roles.RemoveRole(ctx, "alice", domain.RoleAdmin)
		require.NoError(t, err)
		require.True(t, removed)

		removed, err = roles.RemoveRole(ctx, "alice", domain.RoleAdmin)
		require.NoError(t, err)
		require.False(t, removed)
	})

	t.Run("removing the last role falls back to USER", func(t *testing.T) {
		st := newTestStore(t)
		auth := newTestAuth(t, st)
		roles := &RolesService{Store: st}

		_, err := auth.Register(ctx, "owner", "hunter2-but-long", domain.RoleOwner)
		require.NoError(t, err)

		removed, err := roles.RemoveRole(ctx, "owner", domain.RoleOwner)
		require.NoError(t, err)
		require.True(t, removed)

		got, err := roles.GetAccountRoles(ctx, "owner")
		require.NoError(t, err)
		require.Equal(t, []string{domain.RoleUser}, got)
	})

	t.Run("new roles flow into freshly issued tokens", func(t *testing.T) {
		st := newTestStore(t)
		auth := newTestAuth(t, st)
		roles := &RolesService{Store: st}
		register(t, auth, "alice", "hunter2-but-long")

		_, err := roles.AddRole(ctx, "alice", domain.RoleDelivery)
		require.NoError(t, err)

		res, err := auth.Login(ctx, "alice", "hunter2-but-long")
		require.NoError(t, err)

		claims, err := auth.ValidateToken(ctx, res.Token)
		require.NoError(t, err)
		require.Equal(t, []string{domain.RoleUser, domain.RoleDelivery}, claims.Roles)
	})

	t.Run("unknown account surfaces ErrNotFound", func(t *testing.T) {
		st := newTestStore(t)
		roles := &RolesService{Store: st}

		_, err := roles.AddRole(ctx, "ghost", domain.RoleAdmin)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = roles.RemoveRole(ctx, "ghost", domain.RoleAdmin)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = roles.GetAccountRoles(ctx, "ghost")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
