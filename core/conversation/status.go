package conversation

// ResolveStatus derives the display status for a job from its current
// snapshot and the tail of its event log. The rules are priority ordered and
// the first match wins, so a later rule never fires when an earlier one
// applies. A nil job or an empty log degrades to StatusUnknown; the function
// never panics.
func ResolveStatus(job *Job, events []JobEvent) DisplayStatus {
	if job == nil {
		return StatusUnknown
	}

	hasEvents := len(events) > 0
	var lastType JobEventType
	if hasEvents {
		lastType = events[len(events)-1].Type
	}

	switch {
	case job.State == JobStateClosed && HashEmpty(job.ResultHash):
		return StatusCancelled

	// Operator precedence below is deliberate: Arbitrated and Completed only
	// complete the job when it is closed without an open dispute, while Rated
	// and CollateralWithdrawn complete it unconditionally.
	case hasEvents &&
		((lastType == EventJobArbitrated || lastType == EventJobCompleted) &&
			job.State == JobStateClosed && !job.Disputed ||
			lastType == EventJobRated || lastType == EventCollateralWithdrawn):
		return StatusCompleted

	case hasEvents &&
		(lastType == EventJobCompleted ||
			lastType == EventJobArbitrated && job.State == JobStateClosed && job.Disputed):
		return StatusArbitrationComplete

	case job.State == JobStateOpen && hasEvents:
		return StatusAwaitingAcceptance

	case job.State == JobStateTaken && HashEmpty(job.ResultHash) && hasEvents:
		return StatusStarted

	case job.State == JobStateTaken && !HashEmpty(job.ResultHash) && !job.Disputed:
		return StatusDelivered

	case job.State == JobStateTaken && job.Disputed:
		return StatusAwaitingArbitration

	default:
		return StatusUnknown
	}
}
