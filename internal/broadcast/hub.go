// package broadcast fans state deltas out to connected dashboard clients.
package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
)

// Subscriber is one connected client. Send must be safe for use from the
// hub's broadcast goroutines; implementations guard their own connection.
type Subscriber interface {
	// ID identifies the subscriber in logs.
	ID() string
	// Send delivers one text frame. A non-nil error marks the subscriber
	// as dead and the hub drops it after the broadcast completes.
	Send(text string) error
}

// Hub tracks the live subscriber set and pushes every state delta to all of
// them. Subscriber failures are isolated: one dead connection never blocks
// or fails delivery to the rest.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Subscriber]struct{}
	log         *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[Subscriber]struct{}),
		log:         log,
	}
}

func (h *Hub) Connect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribers[sub] = struct{}{}
	subscribersConnected.Set(float64(len(h.subscribers)))

	h.log.Info("subscriber connected",
		slog.String("subscriber", sub.ID()),
		slog.Int("total", len(h.subscribers)),
	)
}

// Disconnect removes a subscriber. Safe to call more than once; a concurrent
// broadcast prune and an explicit disconnect may race on the same client.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}

	delete(h.subscribers, sub)
	subscribersConnected.Set(float64(len(h.subscribers)))

	h.log.Info("subscriber disconnected",
		slog.String("subscriber", sub.ID()),
		slog.Int("total", len(h.subscribers)),
	)
}

// envelope is the wire frame wrapping every delta.
type envelope struct {
	EventType string            `json:"event_type"`
	Data      domain.StateDelta `json:"data"`
}

// Broadcast pushes the delta to every current subscriber concurrently and
// prunes the ones whose Send failed. An empty subscriber set is a no-op.
func (h *Hub) Broadcast(delta domain.StateDelta) error {
	const op = "internal.broadcast.Broadcast"

	msg, err := json.Marshal(envelope{EventType: "state_update", Data: delta})
	if err != nil {
		return fmt.Errorf("%s: failed to marshal delta: %w", op, err)
	}

	h.mu.Lock()
	subs := make([]Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []Subscriber
	)

	for _, sub := range subs {
		wg.Add(1)

		go func(sub Subscriber) {
			defer wg.Done()

			if err := sub.Send(string(msg)); err != nil {
				h.log.Warn("failed to deliver delta to subscriber",
					slog.String("subscriber", sub.ID()), sl.Err(err))

				failMu.Lock()
				failed = append(failed, sub)
				failMu.Unlock()

				return
			}

			deltasDelivered.Inc()
		}(sub)
	}

	wg.Wait()

	for _, sub := range failed {
		h.Disconnect(sub)
	}

	return nil
}

// Len reports the current subscriber count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}
