package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer("mealsphere-identity", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := iss.Issue("acct-1", "alice", []string{"USER", "ADMIN"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := iss.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, []string{"USER", "ADMIN"}, claims.Roles)
	require.Equal(t, "mealsphere-identity", claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	iss, err := NewIssuer("mealsphere-identity", time.Hour)
	require.NoError(t, err)

	token, _, err := iss.Issue("acct-1", "alice", []string{"USER"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = iss.Verify(tampered)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerifyRejectsForeignIssuerKey(t *testing.T) {
	a, err := NewIssuer("mealsphere-identity", time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("mealsphere-identity", time.Hour)
	require.NoError(t, err)

	token, _, err := a.Issue("acct-1", "alice", []string{"USER"})
	require.NoError(t, err)

	// b has a different keypair and kid, so a's tokens must not verify.
	_, err = b.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss, err := NewIssuer("mealsphere-identity", time.Hour)
	require.NoError(t, err)

	// Sign claims that expired in the past using the issuer's own key.
	iss.ttl = -2 * time.Hour
	token, _, err := iss.Issue("acct-1", "alice", []string{"USER"})
	require.NoError(t, err)

	_, err = iss.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
	require.True(t, iss.IsExpired(token))
}

func TestNonPositiveTTLFallsBackToDefault(t *testing.T) {
	iss, err := NewIssuer("mealsphere-identity", 0)
	require.NoError(t, err)
	require.Equal(t, DefaultSessionTTL, iss.TTL())
}
