package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/metrics"
	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/store"
)

const (
	DefaultHousekeepingInterval  = time.Hour
	DefaultHousekeepingRetention = 30 * 24 * time.Hour
)

// HousekeepingService periodically prunes revoked refresh records that
// expired longer ago than Retention. Younger revoked records are kept so
// replays can still be recognised.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Metrics   *metrics.Metrics
	Now       func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. Non-positive
// interval or retention fall back to the defaults.
func NewHousekeepingService(s store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if retention < 0 {
		retention = DefaultHousekeepingRetention
	}

	return &HousekeepingService{
		Store:     s,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		slog.Duration("interval", s.Interval),
		slog.Duration("retention", s.Retention),
	)
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

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		s.Logger.Error("failed to delete revoked refresh tokens", slog.Any("error", err))
		return
	}
	s.Logger.Info("housekeeping cleanup completed", slog.Int64("refresh_tokens_deleted", n))
}

// RunOnce deletes every revoked refresh record that expired before now
// minus Retention and reports how many were removed. Records that were
// never revoked stay in the ledger.
func (s *HousekeepingService) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	n, err := s.Store.RefreshTokens().DeleteRevokedRefreshTokens(ctx, now.UTC().Add(-s.Retention))
	if err != nil {
		return 0, err
	}
	s.Metrics.Pruned(n)
	return n, nil
}
