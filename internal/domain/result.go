package domain

// StageOutcome classifies how a trigger handler finished. Handlers never panic
// their way out of the consumer loop: the coordinator turns an outcome into a
// status transition and decides whether to publish the next-stage trigger.
type StageOutcome int

const (
	// StageCompleted means the stage ran to completion; the next trigger fires.
	StageCompleted StageOutcome = iota
	// StageSkipped means the stage was a deliberate no-op (insufficient data,
	// already-terminal document, held lock). No status change, no trigger.
	StageSkipped
	// StageFailed means the stage hit a processing error. Whether a failure
	// status is recorded depends on the stage.
	StageFailed
)

// String returns the outcome name for logging.
func (o StageOutcome) String() string {
	switch o {
	case StageCompleted:
		return "completed"
	case StageSkipped:
		return "skipped"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StageResult is the explicit result of running one pipeline stage.
type StageResult struct {
	Outcome StageOutcome
	// Reason explains a skip; empty otherwise.
	Reason string
	// Err is the failure cause; nil unless Outcome is StageFailed.
	Err error
}

// Completed returns a successful stage result.
func Completed() StageResult {
	return StageResult{Outcome: StageCompleted}
}

// Skipped returns a no-op stage result with the given reason.
func Skipped(reason string) StageResult {
	return StageResult{Outcome: StageSkipped, Reason: reason}
}

// Failed returns a failed stage result wrapping the cause.
func Failed(err error) StageResult {
	return StageResult{Outcome: StageFailed, Err: err}
}
