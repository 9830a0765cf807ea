package store

import (
	"context"
	"errors"
	"time"

	"github.com/mealsphere/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the account-store collaborator boundary. Concrete drivers (sqlite
// here, anything transactional elsewhere) implement it. Correct lockout
// counting and single-use reset tokens depend on the driver providing
// read-modify-write atomicity per account, which is what Tx/WithTx exist for.
type Store interface {
	Accounts() Accounts
	OAuthLinks() OAuthLinks

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back on error and
	// committing on nil. Prefer this over Tx for multi-step operations.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It exposes the same repositories plus
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByID returns an account by its opaque stable identifier.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByUsername looks up the unique, case-sensitive username key.
	GetByUsername(ctx context.Context, username string) (domain.Account, error)

	// GetByResetTokenHash finds the account holding an outstanding reset
	// token with the given fingerprint.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (domain.Account, error)

	// ExistsByUsername reports whether the username is taken.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Create inserts a new account (id is provided by the app via ULID).
	// Returns ErrAlreadyExists on a username collision.
	Create(ctx context.Context, a domain.Account) error

	// Update persists every mutable field of the account wholesale and
	// bumps updated_at. Callers read, mutate, and hand the record back.
	Update(ctx context.Context, a domain.Account) error

	// ClearExpiredResetTokens drops reset tokens whose expiry has passed
	// (housekeeping).
	ClearExpiredResetTokens(ctx context.Context, now time.Time) error

	// ClearExpiredLocks clears lockout state on rows whose locked_until has
	// passed. Lazy unlock means this is tidiness, not correctness.
	ClearExpiredLocks(ctx context.Context, now time.Time) error
}

type OAuthLinks interface {
	// GetAccountID resolves a (provider, provider account id) pair to the
	// owning account.
	GetAccountID(ctx context.Context, provider, providerAccountID string) (string, error)

	// Create records a new provider link. Returns ErrAlreadyExists if the
	// pair is already linked to some account.
	Create(ctx context.Context, link domain.OAuthLink) error
}
