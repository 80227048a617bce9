package conversation

import "sync"

// PartitionThread filters a job's shared event log down to the conversation
// visible for one counterparty pairing. While a job is open, every applicant
// runs a private exchange with the creator over the same log; filtering on
// the focused counterparty as actor or recipient keeps those threads from
// leaking into each other. Once the job is taken the log is single-threaded:
// the thread is every creator/worker message before the assignment plus
// everything from the assignment event onward, arbitrator included.
//
// The output preserves sequence order; this is a filter, never a re-sort.
// A nil job fails open and returns the full log so nothing is hidden before
// the snapshot has loaded.
func PartitionThread(events []JobEvent, job *Job, focused, viewer string) []JobEvent {
	if job == nil {
		out := make([]JobEvent, len(events))
		copy(out, events)
		return out
	}
	if job.State == JobStateOpen {
		return partitionOpen(events, focused)
	}
	return partitionAssigned(events, job.Roles.Worker)
}

func partitionOpen(events []JobEvent, focused string) []JobEvent {
	out := make([]JobEvent, 0, len(events))
	for _, ev := range events {
		if SameAddress(ev.Address, focused) || SameAddress(ev.Recipient, focused) {
			out = append(out, ev)
		}
	}
	return out
}

func partitionAssigned(events []JobEvent, worker string) []JobEvent {
	// The nearest assignment event marks where the log became single-threaded.
	taken := -1
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == EventJobTaken {
			taken = i
			break
		}
	}

	out := make([]JobEvent, 0, len(events))
	for i, ev := range events {
		if taken >= 0 && i >= taken {
			out = append(out, ev)
			continue
		}
		if messagePairedWith(ev, worker) {
			out = append(out, ev)
		}
	}
	return out
}

// messagePairedWith matches pre-assignment direct messages exchanged between
// the creator and the worker that ended up taking the job. The event type
// encodes direction, so the worker is the actor of worker messages and the
// recipient of owner messages.
func messagePairedWith(ev JobEvent, worker string) bool {
	switch ev.Type {
	case EventOwnerMessage:
		return SameAddress(ev.Recipient, worker)
	case EventWorkerMessage:
		return SameAddress(ev.Address, worker)
	default:
		return false
	}
}

type threadKey struct {
	version uint64
	focused string
	state   JobState
	hasJob  bool
}

// ThreadCache memoizes PartitionThread on the event log version, the focused
// counterparty and the job state, so a view re-rendering against unchanged
// inputs does not re-walk the log.
type ThreadCache struct {
	mu  sync.Mutex
	key threadKey
	out []JobEvent
	ok  bool
}

// Partition returns the cached subsequence when the key matches, otherwise
// recomputes and stores it. The version must change whenever the underlying
// event slice does.
func (c *ThreadCache) Partition(version uint64, events []JobEvent, job *Job, focused, viewer string) []JobEvent {
	key := threadKey{version: version, focused: focused, hasJob: job != nil}
	if job != nil {
		key.state = job.State
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && c.key == key {
		return c.out
	}
	c.key = key
	c.out = PartitionThread(events, job, focused, viewer)
	c.ok = true
	return c.out
}
