package conversation

import "strings"

// Sentinel values the escrow contract uses for "unset".
const (
	ZeroAddress = "0x0000000000000000000000000000000000000000"
	ZeroHash    = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// AddressEmpty reports whether addr is missing or the zero sentinel.
func AddressEmpty(addr string) bool {
	return addr == "" || strings.EqualFold(addr, ZeroAddress)
}

// HashEmpty reports whether h is missing or the zero sentinel.
func HashEmpty(h string) bool {
	return h == "" || strings.EqualFold(h, ZeroHash)
}

// SameAddress compares two addresses ignoring checksum casing.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// JobState is the on-chain lifecycle state of a job.
type JobState uint8

const (
	JobStateOpen JobState = iota
	JobStateTaken
	JobStateClosed
)

func (s JobState) String() string {
	switch s {
	case JobStateOpen:
		return "open"
	case JobStateTaken:
		return "taken"
	case JobStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// JobEventType enumerates every event the escrow contract emits. The numeric
// values mirror the contract's event tags and must not be reordered.
type JobEventType uint8

const (
	EventJobCreated JobEventType = iota
	EventJobTaken
	EventJobPaid
	EventJobUpdated
	EventJobSigned
	EventJobCompleted
	EventJobDelivered
	EventJobClosed
	EventJobReopened
	EventJobRated
	EventJobRefunded
	EventJobDisputed
	EventJobArbitrated
	EventJobArbitrationRefused
	EventWhitelistedWorkerAdded
	EventWhitelistedWorkerRemoved
	EventCollateralWithdrawn
	EventWorkerMessage
	EventOwnerMessage
)

var eventTypeNames = map[JobEventType]string{
	EventJobCreated:               "created",
	EventJobTaken:                 "taken",
	EventJobPaid:                  "paid",
	EventJobUpdated:               "updated",
	EventJobSigned:                "signed",
	EventJobCompleted:             "completed",
	EventJobDelivered:             "delivered",
	EventJobClosed:                "closed",
	EventJobReopened:              "reopened",
	EventJobRated:                 "rated",
	EventJobRefunded:              "refunded",
	EventJobDisputed:              "disputed",
	EventJobArbitrated:            "arbitrated",
	EventJobArbitrationRefused:    "arbitration_refused",
	EventWhitelistedWorkerAdded:   "whitelisted_worker_added",
	EventWhitelistedWorkerRemoved: "whitelisted_worker_removed",
	EventCollateralWithdrawn:      "collateral_withdrawn",
	EventWorkerMessage:            "worker_message",
	EventOwnerMessage:             "owner_message",
}

func (t JobEventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unrecognized"
}

// Known reports whether t is one of the contract's event tags. Unrecognized
// tags never match a thread or status rule.
func (t JobEventType) Known() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// IsMessage reports whether the event carries an encrypted chat payload.
// The two tags encode direction: owner messages flow creator to worker,
// worker messages flow worker (or applicant) to creator.
func (t JobEventType) IsMessage() bool {
	return t == EventWorkerMessage || t == EventOwnerMessage
}

// JobRoles holds the addresses party to a job. Worker and Arbitrator stay at
// the zero sentinel until assigned.
type JobRoles struct {
	Creator    string `json:"creator"`
	Worker     string `json:"worker"`
	Arbitrator string `json:"arbitrator"`
}

// Job is the indexer's snapshot of one escrowed engagement. Snapshots are
// replaced wholesale when a fresher one arrives, never mutated in place.
type Job struct {
	ID               string   `json:"id"`
	State            JobState `json:"state"`
	Title            string   `json:"title"`
	ContentHash      string   `json:"content_hash"`
	ResultHash       string   `json:"result_hash"`
	Roles            JobRoles `json:"roles"`
	Disputed         bool     `json:"disputed"`
	Rating           uint8    `json:"rating"`
	Amount           string   `json:"amount"`
	Token            string   `json:"token"`
	CreatedAt        int64    `json:"created_at"`
	AssignedAt       int64    `json:"assigned_at,omitempty"`
	ClosedAt         int64    `json:"closed_at,omitempty"`
	WhitelistWorkers bool     `json:"whitelist_workers"`
	AllowedWorkers   []string `json:"allowed_workers,omitempty"`
}

// FieldChange records one job field mutated by an event, letting callers
// reconstruct point-in-time snapshots from the log.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// JobEvent is one entry of a job's append-only event log, ordered by
// SequenceIndex assigned at emission time.
type JobEvent struct {
	SequenceIndex uint64        `json:"sequence_index"`
	Type          JobEventType  `json:"type"`
	Address       string        `json:"address"`
	Timestamp     int64         `json:"timestamp"`
	Recipient     string        `json:"recipient,omitempty"`
	ContentHash   string        `json:"content_hash,omitempty"`
	Diffs         []FieldChange `json:"diffs,omitempty"`
}

// User is an address-keyed display profile.
type User struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// DisplayStatus is the single lifecycle status shown for a job. Exactly one
// applies at a time; see ResolveStatus for the priority rules.
type DisplayStatus uint8

const (
	StatusUnknown DisplayStatus = iota
	StatusCancelled
	StatusCompleted
	StatusArbitrationComplete
	StatusAwaitingAcceptance
	StatusStarted
	StatusDelivered
	StatusAwaitingArbitration
)

func (s DisplayStatus) String() string {
	switch s {
	case StatusCancelled:
		return "cancelled"
	case StatusCompleted:
		return "completed"
	case StatusArbitrationComplete:
		return "arbitration_complete"
	case StatusAwaitingAcceptance:
		return "awaiting_acceptance"
	case StatusStarted:
		return "started"
	case StatusDelivered:
		return "delivered"
	case StatusAwaitingArbitration:
		return "awaiting_arbitration"
	default:
		return ""
	}
}
