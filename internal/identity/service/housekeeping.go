package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mealsphere/identity/internal/identity/store"
	"github.com/mealsphere/identity/pkg/slogx"
)

// DefaultHousekeepingInterval is how often expired state gets swept.
const DefaultHousekeepingInterval = 15 * time.Minute

// HousekeepingService periodically clears expired reset tokens and elapsed
// lockouts so the stored state matches what the services would compute
// lazily anyway.
type HousekeepingService struct {
	Store    store.Store
	Interval time.Duration // 0 means DefaultHousekeepingInterval

	stopCh chan struct{}
	doneCh chan struct{}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (s *HousekeepingService) Start(ctx context.Context) {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}

	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one pass immediately.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	if err := s.Store.Accounts().ClearExpiredResetTokens(ctx, now); err != nil {
		l.Error("failed to clear expired reset tokens", slog.Any("error", err))
	}
	if err := s.Store.Accounts().ClearExpiredLocks(ctx, now); err != nil {
		l.Error("failed to clear expired locks", slog.Any("error", err))
	}
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *HousekeepingService) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
}
