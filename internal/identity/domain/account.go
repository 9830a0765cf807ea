package domain

import (
	"slices"
	"time"
)

// Known role names. Accounts always carry at least one; RoleUser is re-added
// whenever the last role would otherwise be removed.
const (
	RoleUser     = "USER"
	RoleAdmin    = "ADMIN"
	RoleOwner    = "OWNER"
	RoleDelivery = "DELIVERY"
)

// ValidRole reports whether name is part of the known role enumeration.
func ValidRole(name string) bool {
	switch name {
	case RoleUser, RoleAdmin, RoleOwner, RoleDelivery:
		return true
	}
	return false
}

// Account is the security record for one principal. One row per account;
// every authentication operation is a read-modify-write of this record.
type Account struct {
	ID           string
	Username     string // unique, case-sensitive, immutable after creation
	PasswordHash string // argon2id PHC string
	Roles        []string
	Enabled      bool

	FailedAttempts int
	LockedUntil    *time.Time // locked iff set and in the future (lazy unlock)

	MFAEnabled bool
	MFASecret  *string // present only while enrolling or while MFA is on

	ResetTokenHash   *string // fingerprint of the single-use reset token
	ResetTokenExpiry *time.Time

	SessionTokenHash *string // fingerprint of the last-issued session token
	LastLogin        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is locked at the given time.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// HasRole reports whether the account carries the role.
func (a *Account) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// OAuthLink ties an externally-validated provider identity to an account.
// The (provider, provider account id) pair is unique across all accounts.
type OAuthLink struct {
	AccountID         string
	Provider          string
	ProviderAccountID string
	CreatedAt         time.Time
}
