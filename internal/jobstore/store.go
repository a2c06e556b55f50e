// Package jobstore holds processed jobs in memory. Data is lost on restart;
// retention is bounded by TTL and a maximum job count.
package jobstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/statement"
)

// Store is an in-memory job store, safe for concurrent use. Every job that
// crosses the boundary is a deep copy, so callers can never mutate stored
// state and eviction can never invalidate a job a reader already holds.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*statement.Job

	ttl      time.Duration
	maxCount int
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a store. ttl <= 0 disables age-based eviction; maxCount <= 0
// disables count-based eviction.
func New(ttl time.Duration, maxCount int, log zerolog.Logger) *Store {
	return &Store{
		jobs:     make(map[string]*statement.Job),
		ttl:      ttl,
		maxCount: maxCount,
		now:      time.Now,
		log:      log,
	}
}

// Create registers a new job in the processing state and returns a copy.
// IDs are random; on the off chance of a collision a fresh one is drawn.
func (s *Store) Create(filename string) *statement.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for _, exists := s.jobs[id]; exists; _, exists = s.jobs[id] {
		id = uuid.NewString()
	}

	job := &statement.Job{
		ID:        id,
		CreatedAt: s.now(),
		Filename:  filename,
		State:     statement.StateProcessing,
	}
	s.jobs[id] = job
	return job.Clone()
}

// Complete transitions a processing job to ready with its results. Ready
// jobs are immutable from here on.
func (s *Store) Complete(id string, method statement.ExtractionMethod, rawText string,
	txs []statement.Transaction, summary []statement.CategorySummary,
	dropped int, warning string) (*statement.Job, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, statement.Errorf(statement.KindJobNotFound, "job %s not found", id)
	}
	job.State = statement.StateReady
	job.Method = method
	job.RawText = rawText
	job.Transactions = txs
	job.Summary = summary
	job.DroppedCandidates = dropped
	job.Warning = warning
	return job.Clone(), nil
}

// Fail transitions a processing job to failed with its error classification.
func (s *Store) Fail(id string, kind statement.ErrorKind, detail string) (*statement.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, statement.Errorf(statement.KindJobNotFound, "job %s not found", id)
	}
	job.State = statement.StateFailed
	job.FailureKind = kind
	job.FailureDetail = detail
	return job.Clone(), nil
}

// Get returns a copy of the job. Unknown and evicted ids are
// indistinguishable: both are JobNotFound.
func (s *Store) Get(id string) (*statement.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, statement.Errorf(statement.KindJobNotFound, "job %s not found", id)
	}
	return job.Clone(), nil
}

// GetReady returns a copy of the job only once the pipeline has finished
// with it. A processing job is JobNotReady; a failed job surfaces its
// recorded failure kind.
func (s *Store) GetReady(id string) (*statement.Job, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	switch job.State {
	case statement.StateProcessing:
		return nil, statement.Errorf(statement.KindJobNotReady, "job %s is still processing", id)
	case statement.StateFailed:
		return nil, statement.NewError(job.FailureKind, job.FailureDetail)
	}
	return job, nil
}

// Len reports the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep evicts expired jobs, then trims oldest-first down to the maximum
// count. Jobs still processing are never evicted. Returns how many jobs were
// removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl)
		for id, job := range s.jobs {
			if job.State != statement.StateProcessing && job.CreatedAt.Before(cutoff) {
				delete(s.jobs, id)
				evicted++
			}
		}
	}

	if s.maxCount > 0 && len(s.jobs) > s.maxCount {
		ids := make([]string, 0, len(s.jobs))
		for id := range s.jobs {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return s.jobs[ids[i]].CreatedAt.Before(s.jobs[ids[j]].CreatedAt)
		})
		for _, id := range ids {
			if len(s.jobs) <= s.maxCount {
				break
			}
			if s.jobs[id].State == statement.StateProcessing {
				continue
			}
			delete(s.jobs, id)
			evicted++
		}
	}

	if evicted > 0 {
		s.log.Info().Int("evicted", evicted).Int("remaining", len(s.jobs)).Msg("job sweep finished")
	}
	return evicted
}
