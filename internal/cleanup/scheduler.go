package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
)

// Scheduler removes temp files orphaned by crashed or killed requests
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, interval, maxAge time.Duration, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tempDir:  tempDir,
		interval: interval,
		maxAge:   maxAge,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval
func (s *Scheduler) Start() {
	s.logger.Info("Running initial temp file cleanup", zap.String("dir", s.tempDir))
	s.Sweep()

	ticker := time.NewTicker(s.interval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.logger.Info("Cleanup scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("max_age", s.maxAge))
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Cleanup scheduler stopped")
	})
}

// Sweep removes files under the temp dir older than maxAge and returns how
// many were deleted
func (s *Scheduler) Sweep() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip entries we cannot stat
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn("Failed to delete old temp file", zap.String("path", path), zap.Error(err))
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		s.logger.Debug("Deleted old temp file",
			zap.String("file", filepath.Base(path)),
			zap.Duration("age", age.Round(time.Minute)),
			zap.Int64("size", info.Size()))
		return nil
	})
	if err != nil {
		s.logger.Warn("Error during cleanup", zap.Error(err))
	}

	if deletedCount > 0 {
		s.metrics.TempFilesRemoved.Add(float64(deletedCount))
		s.logger.Info("Cleanup complete",
			zap.Int("files_deleted", deletedCount),
			zap.Float64("mb_freed", float64(deletedSize)/(1024*1024)))
	}

	return deletedCount
}

// EnsureDir creates dir if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
