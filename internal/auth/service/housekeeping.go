package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/parish/internal/auth/store"
)

// HousekeepingService periodically purges expired refresh tokens, OTPs,
// email verification codes and password reset tokens.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Clock    Clock
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, clock Clock, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Clock:    clock,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// CleanupReport counts the rows each purge removed.
type CleanupReport struct {
	RefreshTokens      int64
	OTPs               int64
	EmailVerifications int64
	PasswordResets     int64
	Challenges         int64
}

// Cleanup runs every purge once. Each purge is independent; a failure is
// logged and the others still run.
func (s *HousekeepingService) Cleanup(ctx context.Context) CleanupReport {
	now := s.Clock.Now()
	var report CleanupReport

	purges := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
		into *int64
	}{
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpired, &report.RefreshTokens},
		{"otps", s.Store.OTPs().DeleteExpired, &report.OTPs},
		{"email_verifications", s.Store.EmailVerifications().DeleteExpired, &report.EmailVerifications},
		{"password_resets", s.Store.PasswordResets().DeleteExpired, &report.PasswordResets},
		{"two_factor_challenges", s.Store.TwoFactorChallenges().DeleteExpired, &report.Challenges},
	}
	for _, p := range purges {
		n, err := p.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping purge failed", "table", p.name, "error", err)
			continue
		}
		*p.into = n
		s.Logger.Debug("housekeeping purge done", "table", p.name, "deleted", n)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"refresh_tokens", report.RefreshTokens,
		"otps", report.OTPs,
		"email_verifications", report.EmailVerifications,
		"password_resets", report.PasswordResets,
		"two_factor_challenges", report.Challenges,
	)
	return report
}
