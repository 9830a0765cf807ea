package domain

import "time"

// Status is the coarse outcome of an authentication operation.
type Status string

const (
	StatusSuccess     Status = "SUCCESS"
	StatusFailed      Status = "FAILED"
	StatusMFARequired Status = "MFA_REQUIRED"
)

// AuthResult is the envelope returned by login-shaped operations. Failure
// messages stay generic so callers can't probe for account existence.
type AuthResult struct {
	Status  Status
	Message string

	AccountID string
	Username  string
	Roles     []string

	Token     string
	ExpiresAt time.Time
}

// MFAEnrollment is returned by MFA setup: the secret for manual entry plus
// the otpauth:// URL an external collaborator renders as a QR code.
type MFAEnrollment struct {
	Secret  string
	URL     string
	Issuer  string
	Account string
}

// ProviderIdentity is what an OAuth provider validator reports back for a
// valid access token.
type ProviderIdentity struct {
	ProviderAccountID string
	Email             string
	DisplayName       string
}
