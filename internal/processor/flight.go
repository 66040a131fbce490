package processor

import (
	"fmt"
	"sync"

	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/google/uuid"
)

// Flight tracks change records currently being processed so the listener and
// the poller can never work the same record at the same time.
type Flight struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewFlight() *Flight {
	return &Flight{
		inFlight: make(map[string]struct{}),
	}
}

func flightKey(kind domain.EventKind, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s", kind, id)
}

// TryAcquire claims the record. Returns false when another delivery path
// already holds it.
func (f *Flight) TryAcquire(kind domain.EventKind, id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := flightKey(kind, id)
	if _, ok := f.inFlight[key]; ok {
		return false
	}

	f.inFlight[key] = struct{}{}

	return true
}

// Release frees the record. Safe to call for an unheld key.
func (f *Flight) Release(kind domain.EventKind, id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.inFlight, flightKey(kind, id))
}

// Len reports the number of records in flight.
func (f *Flight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.inFlight)
}
