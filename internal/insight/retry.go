package insight

import (
	"fmt"
	"sync"
	"time"

	"github.com/DevByZero/flowlens-api/internal/domain"
)

// RetryEntry tracks one pull request whose enrichment has failed past the
// engine's own attempt budget. The record snapshot is kept so the background
// sweep can retry without re-reading storage.
type RetryEntry struct {
	PR          domain.PullRequest
	Attempts    int
	LastAttempt time.Time
}

// RetryStore is a concurrency-safe ledger of pending enrichment retries,
// keyed by (repo_id, pr_number). It is injected so that tests can run
// against an isolated instance.
type RetryStore struct {
	mu      sync.Mutex
	entries map[string]*RetryEntry
	now     func() time.Time
}

func NewRetryStore() *RetryStore {
	return &RetryStore{
		entries: make(map[string]*RetryEntry),
		now:     time.Now,
	}
}

func retryKey(pr *domain.PullRequest) string {
	return fmt.Sprintf("%s/%d", pr.RepoID, pr.PRNumber)
}

// Register adds a pull request to the ledger. Re-registering an existing
// entry refreshes the snapshot but keeps the attempt count.
func (s *RetryStore) Register(pr *domain.PullRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := retryKey(pr)

	if existing, ok := s.entries[key]; ok {
		existing.PR = *pr
		return
	}

	s.entries[key] = &RetryEntry{
		PR:          *pr,
		Attempts:    1,
		LastAttempt: s.now(),
	}
}

// Due returns a snapshot of entries whose last attempt is older than the
// cooldown interval.
func (s *RetryStore) Due(cooldown time.Duration) []RetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-cooldown)

	var due []RetryEntry

	for _, entry := range s.entries {
		if entry.LastAttempt.Before(cutoff) {
			due = append(due, *entry)
		}
	}

	return due
}

// Bump records another failed attempt and returns the new count.
func (s *RetryStore) Bump(pr *domain.PullRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[retryKey(pr)]
	if !ok {
		return 0
	}

	entry.Attempts++
	entry.LastAttempt = s.now()

	return entry.Attempts
}

// Evict removes an entry. Safe to call for an absent key.
func (s *RetryStore) Evict(pr *domain.PullRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, retryKey(pr))
}

// Len reports the current number of pending entries.
func (s *RetryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}
