// package poller is the reconciliation delivery path: a periodic scan of
// every entity table for rows not yet settled. Together with the listener
// it gives at-least-once delivery even across notification loss or downtime.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/processor"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/google/uuid"
)

// Handler processes one change record. Satisfied by processor.Processor.
type Handler interface {
	Process(ctx context.Context, kind domain.EventKind, id uuid.UUID) (processor.Result, error)
}

type Poller struct {
	prs      repository.PullRequestRepository
	runs     repository.PipelineRunRepository
	insights repository.InsightRepository
	handler  Handler
	cfg      config.Poller
	log      *slog.Logger
}

func New(
	prs repository.PullRequestRepository,
	runs repository.PipelineRunRepository,
	insights repository.InsightRepository,
	handler Handler,
	cfg config.Poller,
	log *slog.Logger,
) *Poller {
	return &Poller{
		prs:      prs,
		runs:     runs,
		insights: insights,
		handler:  handler,
		cfg:      cfg,
		log:      log,
	}
}

// Run scans on a fixed interval until the context is cancelled. One cycle
// covers all three entity tables, oldest rows first.
func (p *Poller) Run(ctx context.Context) error {
	const op = "internal.poller.Run"
	log := p.log.With(slog.String("op", op))

	log.Info("reconciliation poller started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Int("batch_size", p.cfg.BatchSize),
	)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciliation poller stopped")
			return nil
		case <-ticker.C:
			if err := p.scanOnce(ctx); err != nil {
				log.Error("reconciliation scan failed", sl.Err(err))
				pollerScans.WithLabelValues("error").Inc()

				// Give the database room to recover before the
				// next tick fires.
				if err := sleepCtx(ctx, p.cfg.ErrorBackoff); err != nil {
					return nil
				}

				continue
			}

			pollerScans.WithLabelValues("ok").Inc()
		}
	}
}

// scanOnce walks one batch per entity table. A failure on one record is
// logged and the scan moves on; a failure to read a table aborts the cycle.
func (p *Poller) scanOnce(ctx context.Context) error {
	const op = "internal.poller.scanOnce"

	prs, err := p.prs.GetUnprocessed(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("%s: failed to scan pull requests: %w", op, err)
	}

	for _, pr := range prs {
		p.handleRecord(ctx, domain.KindPullRequest, pr.ID)
	}

	runs, err := p.runs.GetUnprocessed(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("%s: failed to scan pipeline runs: %w", op, err)
	}

	for _, run := range runs {
		p.handleRecord(ctx, domain.KindPipelineRun, run.ID)
	}

	insights, err := p.insights.GetUnprocessed(ctx, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("%s: failed to scan insights: %w", op, err)
	}

	for _, insight := range insights {
		p.handleRecord(ctx, domain.KindInsight, insight.ID)
	}

	return nil
}

func (p *Poller) handleRecord(ctx context.Context, kind domain.EventKind, id uuid.UUID) {
	if _, err := p.handler.Process(ctx, kind, id); err != nil {
		p.log.Warn("failed to process record during reconciliation",
			slog.String("kind", string(kind)),
			slog.String("id", id.String()),
			sl.Err(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
