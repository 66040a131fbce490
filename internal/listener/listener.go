// package listener is the low-latency delivery path: it holds a dedicated
// LISTEN/NOTIFY connection and hands each notified record id to the event
// processor. It is best-effort; the reconciliation poller covers anything
// lost here.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/processor"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Per-entity notification channels. Triggers installed by the migrations
// NOTIFY the table's channel with the row id as payload.
const (
	ChannelPullRequests = "pull_requests_events"
	ChannelPipelineRuns = "pipeline_runs_events"
	ChannelInsights     = "insights_events"
)

var channelKinds = map[string]domain.EventKind{
	ChannelPullRequests: domain.KindPullRequest,
	ChannelPipelineRuns: domain.KindPipelineRun,
	ChannelInsights:     domain.KindInsight,
}

// Handler processes one change record. Satisfied by processor.Processor.
type Handler interface {
	Process(ctx context.Context, kind domain.EventKind, id uuid.UUID) (processor.Result, error)
}

// notificationSource is the slice of *pq.Listener the dispatcher needs,
// extracted so tests can drive the loop with fake notifications.
type notificationSource interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type Listener struct {
	source  notificationSource
	handler Handler
	cfg     config.Listener
	log     *slog.Logger
}

// New opens a dedicated notification connection. The connection reconnects
// itself with backoff between MinReconnect and MaxReconnect; a reconnect
// surfaces as a nil notification on the channel.
func New(connStr string, handler Handler, cfg config.Listener, log *slog.Logger) (*Listener, error) {
	const op = "internal.listener.New"

	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("notification connection event", slog.Int("event", int(ev)), sl.Err(err))
		}
	}

	source := pq.NewListener(connStr, cfg.MinReconnect, cfg.MaxReconnect, reportProblem)

	l := &Listener{
		source:  source,
		handler: handler,
		cfg:     cfg,
		log:     log,
	}

	for _, channel := range []string{ChannelPullRequests, ChannelPipelineRuns, ChannelInsights} {
		if err := source.Listen(channel); err != nil {
			_ = source.Close()
			return nil, fmt.Errorf("%s: failed to listen on %s: %w", op, channel, err)
		}
	}

	return l, nil
}

// newWithSource is the test seam.
func newWithSource(source notificationSource, handler Handler, cfg config.Listener, log *slog.Logger) *Listener {
	return &Listener{
		source:  source,
		handler: handler,
		cfg:     cfg,
		log:     log,
	}
}

// Run consumes notifications until the context is cancelled. A single
// dispatcher goroutine keeps per-record processing ordered with respect to
// arrival; the processor's own in-flight set guards against the poller.
func (l *Listener) Run(ctx context.Context) error {
	const op = "internal.listener.Run"
	log := l.log.With(slog.String("op", op))

	log.Info("notification listener started")

	ping := time.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()
	defer func() {
		if err := l.source.Close(); err != nil {
			log.Warn("failed to close notification connection", sl.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("notification listener stopped")
			return nil
		case <-ping.C:
			if err := l.source.Ping(); err != nil {
				log.Warn("notification connection ping failed", sl.Err(err))
			}
		case notification := <-l.source.NotificationChannel():
			// A nil notification signals the driver reconnected;
			// the poller reconciles anything missed in between.
			if notification == nil {
				log.Warn("notification connection re-established")
				notificationsReceived.WithLabelValues("reconnect").Inc()

				continue
			}

			l.dispatch(ctx, notification)
		}
	}
}

// dispatch routes one notification to the processor. Failures are logged and
// swallowed so a bad payload never stalls the stream.
func (l *Listener) dispatch(ctx context.Context, notification *pq.Notification) {
	const op = "internal.listener.dispatch"
	log := l.log.With(
		slog.String("op", op),
		slog.String("channel", notification.Channel),
		slog.String("payload", notification.Extra),
	)

	kind, ok := channelKinds[notification.Channel]
	if !ok {
		log.Warn("notification on unknown channel")
		notificationsReceived.WithLabelValues("unknown_channel").Inc()

		return
	}

	id, err := uuid.Parse(notification.Extra)
	if err != nil {
		log.Warn("notification payload is not a record id", sl.Err(err))
		notificationsReceived.WithLabelValues("bad_payload").Inc()

		return
	}

	notificationsReceived.WithLabelValues("ok").Inc()

	if _, err := l.handler.Process(ctx, kind, id); err != nil {
		log.Warn("failed to process notified record", sl.Err(err))
	}
}
