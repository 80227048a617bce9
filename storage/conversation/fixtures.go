package conversation

import (
	"time"

	"openwork-backend/core/conversation"
)

// Fixture addresses used by the dev seed.
const (
	SeedCreator    = "0x1111111111111111111111111111111111111111"
	SeedWorker     = "0x2222222222222222222222222222222222222222"
	SeedApplicant  = "0x3333333333333333333333333333333333333333"
	SeedArbitrator = "0x4444444444444444444444444444444444444444"
)

// SeedData returns demo jobs, event logs and users for dev mode: one open
// job with two concurrent applicant threads and one taken job mid-delivery.
func SeedData() ([]conversation.Job, map[string][]conversation.JobEvent, []conversation.User) {
	now := time.Now().Unix()

	jobs := []conversation.Job{
		{
			ID:          "JOB-1001",
			State:       conversation.JobStateOpen,
			Title:       "Index historical escrow events",
			ContentHash: "QmSeedJobSpec1001",
			ResultHash:  conversation.ZeroHash,
			Roles: conversation.JobRoles{
				Creator:    SeedCreator,
				Worker:     conversation.ZeroAddress,
				Arbitrator: SeedArbitrator,
			},
			Amount:    "250000000000000000",
			Token:     "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			CreatedAt: now - 3600,
		},
		{
			ID:          "JOB-1002",
			State:       conversation.JobStateTaken,
			Title:       "Port payout widget to the new indexer API",
			ContentHash: "QmSeedJobSpec1002",
			ResultHash:  conversation.ZeroHash,
			Roles: conversation.JobRoles{
				Creator:    SeedCreator,
				Worker:     SeedWorker,
				Arbitrator: SeedArbitrator,
			},
			Amount:     "1000000000000000000",
			Token:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			CreatedAt:  now - 7200,
			AssignedAt: now - 3000,
		},
	}

	events := map[string][]conversation.JobEvent{
		"JOB-1001": {
			{SequenceIndex: 0, Type: conversation.EventJobCreated, Address: SeedCreator, Timestamp: now - 3600},
			{SequenceIndex: 1, Type: conversation.EventWorkerMessage, Address: SeedWorker, Recipient: SeedCreator, ContentHash: "QmSeedMsg1", Timestamp: now - 3300},
			{SequenceIndex: 2, Type: conversation.EventWorkerMessage, Address: SeedApplicant, Recipient: SeedCreator, ContentHash: "QmSeedMsg2", Timestamp: now - 3200},
			{SequenceIndex: 3, Type: conversation.EventOwnerMessage, Address: SeedCreator, Recipient: SeedWorker, ContentHash: "QmSeedMsg3", Timestamp: now - 3100},
		},
		"JOB-1002": {
			{SequenceIndex: 0, Type: conversation.EventJobCreated, Address: SeedCreator, Timestamp: now - 7200},
			{SequenceIndex: 1, Type: conversation.EventWorkerMessage, Address: SeedWorker, Recipient: SeedCreator, ContentHash: "QmSeedMsg4", Timestamp: now - 5000},
			{SequenceIndex: 2, Type: conversation.EventJobTaken, Address: SeedWorker, Timestamp: now - 3000,
				Diffs: []conversation.FieldChange{{Field: "state", Old: "open", New: "taken"}, {Field: "roles.worker", Old: conversation.ZeroAddress, New: SeedWorker}}},
			{SequenceIndex: 3, Type: conversation.EventOwnerMessage, Address: SeedCreator, Recipient: SeedWorker, ContentHash: "QmSeedMsg5", Timestamp: now - 2000},
		},
	}

	users := []conversation.User{
		{Address: SeedCreator, Name: "Ada", Bio: "Posts indexing and tooling jobs"},
		{Address: SeedWorker, Name: "Bram", Bio: "Backend contractor"},
		{Address: SeedApplicant, Name: "Cato"},
		{Address: SeedArbitrator, Name: "Dispute Desk", Bio: "Neutral arbitration service"},
	}

	return jobs, events, users
}
