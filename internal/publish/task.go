package publish

import (
	"context"
	"fmt"
	"time"
)

// RescanTask adapts Publisher.Rescan to pkg/job's WithScheduledTask
// structural-typing contract, the same idiom internal/scheduler uses for
// its periodic recompute.
type RescanTask struct {
	publisher *Publisher
	interval  time.Duration
}

// NewRescanTask builds the periodic proposal-maintenance task registered
// with the job manager at startup.
func NewRescanTask(p *Publisher, interval time.Duration) *RescanTask {
	return &RescanTask{publisher: p, interval: interval}
}

func (t *RescanTask) Name() string { return "publisher_rescan" }

func (t *RescanTask) Schedule() string {
	minutes := int(t.interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("*/%d * * * *", minutes)
}

func (t *RescanTask) Handle(ctx context.Context) error {
	return t.publisher.Rescan(ctx)
}

// RunTask adapts Publisher.ProcessRun to a run-finished event handler: it
// is invoked from the Redis pub/sub subscription internal/coord/redis
// maintains, one call per run-finished notification.
type RunTask struct {
	publisher *Publisher
}

// NewRunTask builds the run-finished event handler that janitord's run()
// feeds from its coordredis.SubscribeRunFinished subscription.
func NewRunTask(p *Publisher) *RunTask {
	return &RunTask{publisher: p}
}

func (t *RunTask) Handle(ctx context.Context, runID string) error {
	return t.publisher.ProcessRun(ctx, runID)
}
