package scheduler

import (
	"time"

	"github.com/janitord/janitor/internal/ingest"
)

// Policy is the reschedule policy derived from a run's result classification:
// how long to delay the next attempt, an attempt ceiling, and how its
// priority bucket shifts relative to the campaign default. The Scheduler
// reads RequeueDelay and BucketShift; MaxAttempts is carried in the table
// but not read, so no candidate is dropped on its account.
type Policy struct {
	RequeueDelay time.Duration
	MaxAttempts  int
	BucketShift  float64
}

// classification is the failure-classification table from the component
// design: result-code → {requeue-delay, max-attempts, bucket-shift}.
var classification = map[ingest.ResultCode]Policy{
	ingest.ResultSuccess:           {RequeueDelay: 7 * 24 * time.Hour, MaxAttempts: 0, BucketShift: 0},
	ingest.ResultSuccessUnchanged:  {RequeueDelay: 14 * 24 * time.Hour, MaxAttempts: 0, BucketShift: -50},
	ingest.ResultNothingToDo:       {RequeueDelay: 30 * 24 * time.Hour, MaxAttempts: 0, BucketShift: -100},
	ingest.ResultBuildFailed:       {RequeueDelay: 6 * time.Hour, MaxAttempts: 5, BucketShift: -10},
	ingest.ResultMissingDependency: {RequeueDelay: 24 * time.Hour, MaxAttempts: 3, BucketShift: -20},
	ingest.ResultBranchUnavailable: {RequeueDelay: 24 * time.Hour, MaxAttempts: 3, BucketShift: -20},
	ingest.ResultWorkerFailure:     {RequeueDelay: time.Hour, MaxAttempts: 10, BucketShift: 0},
	ingest.ResultInternalError:     {RequeueDelay: 15 * time.Minute, MaxAttempts: 10, BucketShift: 0},
}

// defaultPolicy covers a (codebase, campaign) pair with no prior run yet:
// schedule it promptly at the campaign's base priority.
var defaultPolicy = Policy{RequeueDelay: 0, MaxAttempts: 10, BucketShift: 0}

// classify looks up the reschedule policy for a result code, falling back
// to the internal-error policy for anything unrecognised.
func classify(code ingest.ResultCode) Policy {
	if p, ok := classification[code]; ok {
		return p
	}
	return classification[ingest.ResultInternalError]
}
