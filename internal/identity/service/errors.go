package service

import "errors"

// Error kinds surfaced by the identity services. Login-shaped operations
// collapse most of these into a generic FAILED result so unauthenticated
// callers can't enumerate accounts; administrative operations surface them
// precisely.
var (
	ErrNotFound           = errors.New("account_not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrInvalidMFACode     = errors.New("invalid_mfa_code")
	ErrInvalidResetToken  = errors.New("invalid_reset_token")
	ErrValidation         = errors.New("validation_error")
)

// Caller-facing failure messages. Deliberately generic on the paths where a
// precise message would leak whether an account exists.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgAccountLocked      = "Account is locked due to too many failed attempts. Try again later or reset your password."
	msgAccountDisabled    = "Account is disabled"
	msgMFARequired        = "MFA verification required"
	msgInvalidMFACode     = "Invalid MFA code"
	msgUsernameTaken      = "Username already exists"
	msgInvalidRole        = "Invalid role"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidOAuthToken  = "Invalid OAuth token"
	msgLoginOK            = "Login successful"
	msgRegisterOK         = "Registration successful"
	msgRefreshOK          = "Token refreshed successfully"
	msgOAuthOK            = "OAuth login successful"
)
