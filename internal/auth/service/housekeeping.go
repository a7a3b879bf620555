package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/paddockhq/gatehouse/internal/auth/store"
)

// HousekeepingService periodically checks database health and flags
// devices whose backup token batch has been fully consumed, so operators
// can reach out before the owner locks themselves out.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs the sweep.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run a sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs the periodic checks. Each check is independent - a
// failure in one won't stop the others.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Error("housekeeping: database ping failed", "error", err)
	}

	depleted, err := s.Store.BackupTokens().ListDepletedDeviceIDs(ctx)
	if err != nil {
		s.Logger.Error("housekeeping: depleted device scan failed", "error", err)
		return
	}
	for _, deviceID := range depleted {
		s.Logger.Warn("device has no backup tokens remaining", "device_id", deviceID)
	}

	s.Logger.Debug("housekeeping sweep completed", "depleted_devices", len(depleted))
}
