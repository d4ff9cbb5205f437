package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/store"
)

// HousekeepingService periodically drops expired refresh token fingerprints
// and staged uploads that were never cleaned up.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// UploadDir is scanned for files older than UploadMaxAge. Empty skips it.
	UploadDir    string
	UploadMaxAge time.Duration

	// mu guards stopCh and doneCh, which are nil while the worker is idle.
	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults interval to one hour and the upload max
// age to one day.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration, uploadDir string) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:        st,
		Logger:       logger,
		Interval:     interval,
		UploadDir:    uploadDir,
		UploadMaxAge: 24 * time.Hour,
	}
}

// Start runs the worker in the background. Call Stop to end it. Starting a
// running worker is a no-op, and a stopped worker may be started again.
func (s *HousekeepingService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(s.stopCh, s.doneCh)
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished. It is a no-op when
// the worker is not running.
func (s *HousekeepingService) Stop() {
	s.mu.Lock()
	stop, done := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-stop:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent of the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	s.Logger.Debug("starting housekeeping cleanup")

	cleared, err := s.Store.Users().ClearExpiredRefreshTokens(ctx, time.Now())
	if err != nil {
		s.Logger.Error("failed to clear expired refresh tokens", "error", err)
	}

	removed := s.sweepUploads(time.Now())

	s.Logger.Info("housekeeping cleanup completed",
		"expired_sessions", cleared,
		"stale_uploads", removed,
	)
}

func (s *HousekeepingService) sweepUploads(now time.Time) int {
	if s.UploadDir == "" {
		return 0
	}

	entries, err := os.ReadDir(s.UploadDir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Logger.Error("failed to read upload dir", "error", err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < s.UploadMaxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.UploadDir, e.Name())); err != nil {
			s.Logger.Warn("failed to remove stale upload", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
