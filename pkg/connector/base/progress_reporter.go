package base

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ProgressReporter turns worker completions into percentage updates. It is
// purely observational; the engine never reads it back.
type ProgressReporter struct {
	logger *zap.Logger
	stage  string

	totalRecords     int64
	processedRecords int64
	startTime        time.Time

	// Milestone logging: one info line per step percent
	step          float64
	lastMilestone float64
	mu            sync.Mutex
}

// NewProgressReporter creates a new progress reporter for stage.
func NewProgressReporter(logger *zap.Logger, stage string) *ProgressReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressReporter{
		logger:    logger.With(zap.String("stage", stage)),
		stage:     stage,
		startTime: time.Now(),
		step:      10,
	}
}

// Observe records that completed of total tasks are done.
func (pr *ProgressReporter) Observe(completed, total int) {
	atomic.StoreInt64(&pr.processedRecords, int64(completed))
	atomic.StoreInt64(&pr.totalRecords, int64(total))

	percent := 100.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}

	pr.logger.Debug("progress",
		zap.Int("completed", completed),
		zap.Int("total", total),
		zap.Float64("percentage", percent))

	pr.mu.Lock()
	if pr.step > 0 && (percent-pr.lastMilestone >= pr.step || (percent == 100 && pr.lastMilestone < 100)) {
		pr.lastMilestone = percent
		pr.logger.Info("progress update",
			zap.Int("completed", completed),
			zap.Int("total", total),
			zap.Float64("percentage", percent),
			zap.Duration("elapsed", time.Since(pr.startTime)))
	}
	pr.mu.Unlock()
}

// GetProgress returns current progress
func (pr *ProgressReporter) GetProgress() (processed, total int64) {
	return atomic.LoadInt64(&pr.processedRecords), atomic.LoadInt64(&pr.totalRecords)
}
