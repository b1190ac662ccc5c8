package interest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/highlights/internal/auth"
	"github.com/onnwee/highlights/internal/jobs"
)

// RecomputeJobConfig configures the interest recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout for each recompute cycle.
	Timeout time.Duration
	Logger  *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	ObserveRun(jobType, status string, elapsed time.Duration)
	IncErrors(jobType, errorType string)
	AddItems(jobType, outcome string, n int)
}

// Defaults for RecomputeJobConfig.
const (
	DefaultRecomputeInterval = time.Minute
	DefaultRecomputeTimeout  = 30 * time.Second
)

// RecomputeJob periodically recomputes interest vectors of dirty users.
type RecomputeJob struct {
	config     RecomputeJobConfig
	dirty      DirtyTracker
	aggregator *Aggregator
	caller     auth.Caller

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecomputeJob creates a new interest recompute job.
func NewRecomputeJob(config RecomputeJobConfig, dirty DirtyTracker, aggregator *Aggregator) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &RecomputeJob{
		config:     config,
		dirty:      dirty,
		aggregator: aggregator,
		caller:     auth.Service(jobs.JobTypeInterestRecompute),
	}
}

// Start launches the recompute loop in the background. It returns at once;
// a second Start while running is a no-op. The loop ends when ctx is
// cancelled or Stop is called.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	go j.loop(loopCtx, j.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to return.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsRunning reports whether Start was called without a matching Stop.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel != nil
}

func (j *RecomputeJob) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("interest recompute job stopped")
			return
		case <-ticker.C:
			j.recomputeDirtyUsers(ctx)
		}
	}
}

func (j *RecomputeJob) recomputeDirtyUsers(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	users, err := j.dirty.DirtyUsers(ctx)
	if err != nil {
		j.config.Logger.Error("failed to list dirty users", "error", err)
		j.incError(jobs.ErrorTypeRecompute)
		return
	}
	if len(users) == 0 {
		return
	}

	startTime := time.Now()
	var updated, skipped, failed int

	j.config.Logger.Info("recomputing interest vectors", "dirty_count", len(users))

	for i, userID := range users {
		if ctx.Err() != nil {
			j.config.Logger.Error("interest recompute timeout exceeded",
				"processed", i,
				"total", len(users),
				"timeout", j.config.Timeout)
			j.incError(jobs.ErrorTypeTimeout)
			j.finish(jobs.StatusFailure, startTime)
			return
		}

		res, err := j.aggregator.Aggregate(ctx, j.caller, userID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			j.config.Logger.Error("failed to recompute interest vector",
				"user_id", userID,
				"error", err)
			j.incError(jobs.ErrorTypeRecompute)
			failed++
			continue
		}
		if res.Skipped {
			skipped++
		} else {
			updated++
		}

		if err := j.dirty.ClearDirty(ctx, userID); err != nil {
			j.config.Logger.Warn("failed to clear dirty flag", "user_id", userID, "error", err)
		}
	}

	status := jobs.StatusSuccess
	if failed > 0 {
		status = jobs.StatusFailure
	}
	duration := j.finish(status, startTime)
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.AddItems(jobs.JobTypeInterestRecompute, jobs.ItemUpdated, updated)
		j.config.JobMetrics.AddItems(jobs.JobTypeInterestRecompute, jobs.ItemSkipped, skipped)
		j.config.JobMetrics.AddItems(jobs.JobTypeInterestRecompute, jobs.ItemFailed, failed)
	}

	j.config.Logger.Info("interest recompute completed",
		"duration_seconds", duration,
		"users_updated", updated,
		"users_skipped", skipped,
		"users_failed", failed)
}

func (j *RecomputeJob) finish(status string, start time.Time) float64 {
	elapsed := time.Since(start)
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.ObserveRun(jobs.JobTypeInterestRecompute, status, elapsed)
	}
	return elapsed.Seconds()
}

func (j *RecomputeJob) incError(errorType string) {
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncErrors(jobs.JobTypeInterestRecompute, errorType)
	}
}

// RecomputeNow immediately recomputes all dirty users without waiting for the ticker.
func (j *RecomputeJob) RecomputeNow(ctx context.Context) {
	j.recomputeDirtyUsers(ctx)
}
