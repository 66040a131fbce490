package listener

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/processor"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sourceStub struct {
	notifications chan *pq.Notification
}

func newSourceStub() *sourceStub {
	return &sourceStub{notifications: make(chan *pq.Notification, 16)}
}

func (s *sourceStub) Listen(string) error { return nil }

func (s *sourceStub) NotificationChannel() <-chan *pq.Notification { return s.notifications }

func (s *sourceStub) Ping() error { return nil }

func (s *sourceStub) Close() error { return nil }

type handlerStub struct {
	mu    sync.Mutex
	calls []struct {
		kind domain.EventKind
		id   uuid.UUID
	}
}

func (h *handlerStub) Process(_ context.Context, kind domain.EventKind, id uuid.UUID) (processor.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, struct {
		kind domain.EventKind
		id   uuid.UUID
	}{kind, id})

	return processor.Settled, nil
}

func (h *handlerStub) processed() []struct {
	kind domain.EventKind
	id   uuid.UUID
} {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append(h.calls[:0:0], h.calls...)
}

func runListener(t *testing.T, source notificationSource, handler Handler) (context.CancelFunc, chan struct{}) {
	t.Helper()

	cfg := config.Listener{PingInterval: time.Minute}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	l := newWithSource(source, handler, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		require.NoError(t, l.Run(ctx))
	}()

	return cancel, done
}

func TestListener_RoutesChannelsToKinds(t *testing.T) {
	source := newSourceStub()
	handler := &handlerStub{}

	cancel, done := runListener(t, source, handler)

	prID := uuid.New()
	runID := uuid.New()
	insightID := uuid.New()

	source.notifications <- &pq.Notification{Channel: ChannelPullRequests, Extra: prID.String()}
	source.notifications <- &pq.Notification{Channel: ChannelPipelineRuns, Extra: runID.String()}
	source.notifications <- &pq.Notification{Channel: ChannelInsights, Extra: insightID.String()}

	require.Eventually(t, func() bool {
		return len(handler.processed()) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	calls := handler.processed()
	assert.Equal(t, domain.KindPullRequest, calls[0].kind)
	assert.Equal(t, prID, calls[0].id)
	assert.Equal(t, domain.KindPipelineRun, calls[1].kind)
	assert.Equal(t, runID, calls[1].id)
	assert.Equal(t, domain.KindInsight, calls[2].kind)
	assert.Equal(t, insightID, calls[2].id)
}

func TestListener_ToleratesBadPayloadAndReconnect(t *testing.T) {
	source := newSourceStub()
	handler := &handlerStub{}

	cancel, done := runListener(t, source, handler)

	goodID := uuid.New()

	// A reconnect surfaces as nil; bad payloads and unknown channels are
	// dropped. None of these may stall the stream.
	source.notifications <- nil
	source.notifications <- &pq.Notification{Channel: ChannelPullRequests, Extra: "not-a-uuid"}
	source.notifications <- &pq.Notification{Channel: "someone_elses_channel", Extra: goodID.String()}
	source.notifications <- &pq.Notification{Channel: ChannelPullRequests, Extra: goodID.String()}

	require.Eventually(t, func() bool {
		return len(handler.processed()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	calls := handler.processed()
	require.Len(t, calls, 1)
	assert.Equal(t, goodID, calls[0].id)
}
