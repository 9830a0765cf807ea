package sqlite

import (
	"context"

	"github.com/mealsphere/identity/internal/identity/domain"
)

type oauthLinksRepo struct {
	db dbtx
}

func (r *oauthLinksRepo) GetAccountID(ctx context.Context, provider, providerAccountID string) (string, error) {
	var accountID string
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id FROM oauth_links
		WHERE provider = ? AND provider_account_id = ?`,
		provider, providerAccountID).Scan(&accountID)
	if err != nil {
		return "", mapNotFound(err)
	}
	return accountID, nil
}

func (r *oauthLinksRepo) Create(ctx context.Context, link domain.OAuthLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_links (account_id, provider, provider_account_id)
		VALUES (?, ?, ?)`,
		link.AccountID, link.Provider, link.ProviderAccountID)
	return mapConstraint(err)
}
