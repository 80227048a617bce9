package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"openwork-backend/core/conversation"
)

// PGStore persists the indexer mirror in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects, initializes the schema, and optionally seeds demo
// fixtures.
func NewPGStore(ctx context.Context, dsn string, seed bool) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if seed {
		if err := s.seedFixtures(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS conv_jobs (
  id TEXT PRIMARY KEY,
  state SMALLINT NOT NULL,
  title TEXT,
  content_hash TEXT,
  result_hash TEXT,
  creator TEXT NOT NULL,
  worker TEXT,
  arbitrator TEXT,
  disputed BOOLEAN NOT NULL DEFAULT FALSE,
  rating SMALLINT NOT NULL DEFAULT 0,
  amount TEXT,
  token TEXT,
  created_at BIGINT,
  assigned_at BIGINT,
  closed_at BIGINT,
  whitelist_workers BOOLEAN NOT NULL DEFAULT FALSE,
  allowed_workers TEXT[]
);
CREATE TABLE IF NOT EXISTS conv_events (
  job_id TEXT NOT NULL,
  seq BIGINT NOT NULL,
  type SMALLINT NOT NULL,
  address TEXT NOT NULL,
  ts BIGINT NOT NULL,
  recipient TEXT,
  content_hash TEXT,
  diffs JSONB,
  PRIMARY KEY (job_id, seq)
);
CREATE TABLE IF NOT EXISTS conv_users (
  address TEXT PRIMARY KEY,
  name TEXT,
  avatar_url TEXT,
  bio TEXT
);
CREATE INDEX IF NOT EXISTS conv_jobs_creator_idx ON conv_jobs (creator);
CREATE INDEX IF NOT EXISTS conv_jobs_worker_idx ON conv_jobs (worker);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PGStore) seedFixtures(ctx context.Context) error {
	jobs, events, users := SeedData()
	for _, job := range jobs {
		if err := s.UpsertJob(ctx, job); err != nil {
			return err
		}
	}
	for jobID, evs := range events {
		if err := s.AppendEvents(ctx, jobID, evs); err != nil {
			return err
		}
	}
	for _, user := range users {
		if err := s.UpsertUser(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// UpsertJob replaces the stored snapshot wholesale.
func (s *PGStore) UpsertJob(ctx context.Context, job conversation.Job) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO conv_jobs (id, state, title, content_hash, result_hash, creator, worker, arbitrator,
  disputed, rating, amount, token, created_at, assigned_at, closed_at, whitelist_workers, allowed_workers)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  state = EXCLUDED.state,
  title = EXCLUDED.title,
  content_hash = EXCLUDED.content_hash,
  result_hash = EXCLUDED.result_hash,
  creator = EXCLUDED.creator,
  worker = EXCLUDED.worker,
  arbitrator = EXCLUDED.arbitrator,
  disputed = EXCLUDED.disputed,
  rating = EXCLUDED.rating,
  amount = EXCLUDED.amount,
  token = EXCLUDED.token,
  created_at = EXCLUDED.created_at,
  assigned_at = EXCLUDED.assigned_at,
  closed_at = EXCLUDED.closed_at,
  whitelist_workers = EXCLUDED.whitelist_workers,
  allowed_workers = EXCLUDED.allowed_workers`,
		job.ID, int16(job.State), job.Title, job.ContentHash, job.ResultHash,
		strings.ToLower(job.Roles.Creator), strings.ToLower(job.Roles.Worker), strings.ToLower(job.Roles.Arbitrator),
		job.Disputed, int16(job.Rating), job.Amount, job.Token,
		job.CreatedAt, job.AssignedAt, job.ClosedAt, job.WhitelistWorkers, job.AllowedWorkers)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the stored snapshot for id.
func (s *PGStore) GetJob(ctx context.Context, id string) (conversation.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, state, title, content_hash, result_hash, creator, worker, arbitrator,
  disputed, rating, amount, token, created_at, assigned_at, closed_at, whitelist_workers, allowed_workers
FROM conv_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return conversation.Job{}, ErrJobNotFound
	}
	if err != nil {
		return conversation.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *PGStore) ListJobs(ctx context.Context, filter JobFilter) ([]conversation.Job, error) {
	query := `
SELECT id, state, title, content_hash, result_hash, creator, worker, arbitrator,
  disputed, rating, amount, token, created_at, assigned_at, closed_at, whitelist_workers, allowed_workers
FROM conv_jobs WHERE 1=1`
	args := []interface{}{}
	if filter.State != nil {
		args = append(args, int16(*filter.State))
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	if filter.Creator != "" {
		args = append(args, strings.ToLower(filter.Creator))
		query += fmt.Sprintf(" AND creator = $%d", len(args))
	}
	if filter.Worker != "" {
		args = append(args, strings.ToLower(filter.Worker))
		query += fmt.Sprintf(" AND worker = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []conversation.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (conversation.Job, error) {
	var job conversation.Job
	var state, rating int16
	err := row.Scan(&job.ID, &state, &job.Title, &job.ContentHash, &job.ResultHash,
		&job.Roles.Creator, &job.Roles.Worker, &job.Roles.Arbitrator,
		&job.Disputed, &rating, &job.Amount, &job.Token,
		&job.CreatedAt, &job.AssignedAt, &job.ClosedAt, &job.WhitelistWorkers, &job.AllowedWorkers)
	if err != nil {
		return conversation.Job{}, err
	}
	job.State = conversation.JobState(state)
	job.Rating = uint8(rating)
	return job, nil
}

// AppendEvents extends a job's log; already-stored sequence indexes are left
// untouched, so re-delivered indexer pages are harmless.
func (s *PGStore) AppendEvents(ctx context.Context, jobID string, events []conversation.JobEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		var diffs []byte
		if len(ev.Diffs) > 0 {
			b, err := json.Marshal(ev.Diffs)
			if err != nil {
				return fmt.Errorf("encode diffs for event %d: %w", ev.SequenceIndex, err)
			}
			diffs = b
		}
		_, err := s.pool.Exec(ctx, `
INSERT INTO conv_events (job_id, seq, type, address, ts, recipient, content_hash, diffs)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (job_id, seq) DO NOTHING`,
			jobID, int64(ev.SequenceIndex), int16(ev.Type), strings.ToLower(ev.Address),
			ev.Timestamp, strings.ToLower(ev.Recipient), ev.ContentHash, diffs)
		if err != nil {
			return fmt.Errorf("append event %d for job %s: %w", ev.SequenceIndex, jobID, err)
		}
	}
	return nil
}

// ListEvents returns the events with sequence index at or above fromSeq in
// log order.
func (s *PGStore) ListEvents(ctx context.Context, jobID string, fromSeq uint64) ([]conversation.JobEvent, error) {
	rows, err := s.pool.Query(ctx, `
SELECT seq, type, address, ts, recipient, content_hash, diffs
FROM conv_events WHERE job_id = $1 AND seq >= $2 ORDER BY seq`, jobID, int64(fromSeq))
	if err != nil {
		return nil, fmt.Errorf("list events for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []conversation.JobEvent
	for rows.Next() {
		var ev conversation.JobEvent
		var seq int64
		var evType int16
		var diffs []byte
		if err := rows.Scan(&seq, &evType, &ev.Address, &ev.Timestamp, &ev.Recipient, &ev.ContentHash, &diffs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.SequenceIndex = uint64(seq)
		ev.Type = conversation.JobEventType(evType)
		if len(diffs) > 0 {
			if err := json.Unmarshal(diffs, &ev.Diffs); err != nil {
				return nil, fmt.Errorf("decode diffs for event %d: %w", seq, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpsertUser stores a display profile keyed by address.
func (s *PGStore) UpsertUser(ctx context.Context, user conversation.User) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO conv_users (address, name, avatar_url, bio) VALUES ($1,$2,$3,$4)
ON CONFLICT (address) DO UPDATE SET
  name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, bio = EXCLUDED.bio`,
		strings.ToLower(user.Address), user.Name, user.AvatarURL, user.Bio)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.Address, err)
	}
	return nil
}

// GetUser returns the profile for an address.
func (s *PGStore) GetUser(ctx context.Context, address string) (conversation.User, error) {
	var user conversation.User
	err := s.pool.QueryRow(ctx, `
SELECT address, name, avatar_url, bio FROM conv_users WHERE address = $1`,
		strings.ToLower(address)).Scan(&user.Address, &user.Name, &user.AvatarURL, &user.Bio)
	if err == pgx.ErrNoRows {
		return conversation.User{}, ErrUserNotFound
	}
	if err != nil {
		return conversation.User{}, fmt.Errorf("get user %s: %w", address, err)
	}
	return user, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
