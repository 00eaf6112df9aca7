package scheduler

import (
	"context"
	"fmt"
	"time"
)

// RecomputeTask adapts Scheduler.Recompute to pkg/job's WithScheduledTask
// structural-typing contract (Name/Schedule/Handle), the teacher's own
// idiom for "do X every N" background work.
type RecomputeTask struct {
	scheduler *Scheduler
	interval  time.Duration
}

// NewRecomputeTask builds the periodic recompute task registered with the
// job manager at startup.
func NewRecomputeTask(s *Scheduler, interval time.Duration) *RecomputeTask {
	return &RecomputeTask{scheduler: s, interval: interval}
}

func (t *RecomputeTask) Name() string { return "scheduler_recompute" }

// Schedule expresses interval as a minutes-granularity cron expression;
// robfig/cron's standard 5-field parser (pkg/job's parseCronSchedule) has
// no "@every" shorthand, so sub-minute intervals round up to one minute.
func (t *RecomputeTask) Schedule() string {
	minutes := int(t.interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("*/%d * * * *", minutes)
}

func (t *RecomputeTask) Handle(ctx context.Context) error {
	return t.scheduler.Recompute(ctx)
}
