package service

import (
	"context"

	"github.com/mealsphere/identity/pkg/slogx"
)

// Mailer is the outbound email collaborator. Delivery is fire-and-forget:
// callers log failures and never surface them to the requester.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, link string) error
	SendAccountLockedEmail(ctx context.Context, to, username string) error
}

// LogMailer records what would have been sent without delivering anything.
// It stands in wherever no real mail backend is wired up.
type LogMailer struct{}

func (LogMailer) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	slogx.FromContext(ctx).Info("password reset email (delivery not configured)",
		"to", to, "link", link)
	return nil
}

func (LogMailer) SendAccountLockedEmail(ctx context.Context, to, username string) error {
	slogx.FromContext(ctx).Info("account locked email (delivery not configured)",
		"to", to, "username", username)
	return nil
}
