// package processor is the convergence point of both delivery paths: the
// LISTEN/NOTIFY listener and the reconciliation poller both hand change
// records here, and processing is idempotent so duplicate delivery is safe.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DevByZero/flowlens-api/internal/apperrors"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/google/uuid"
)

// Result classifies the outcome of a Process call so callers know whether a
// redelivery is worthwhile.
type Result int

const (
	// Settled means the record was fully processed and flagged, or was
	// already settled before the call.
	Settled Result = iota
	// Skipped means the record needs no work right now: it is held by the
	// other delivery path or no longer exists.
	Skipped
	// Retryable means a transient failure stopped processing; the record
	// stays unsettled and the poller will pick it up again.
	Retryable
)

func (r Result) String() string {
	switch r {
	case Settled:
		return "settled"
	case Skipped:
		return "skipped"
	case Retryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// Enricher produces an insight for a pull request. Failures are tolerated:
// enrichment never blocks state delivery.
type Enricher interface {
	Enrich(ctx context.Context, pr *domain.PullRequest) (*domain.Insight, error)
}

// Broadcaster pushes state deltas to connected clients.
type Broadcaster interface {
	Broadcast(delta domain.StateDelta) error
}

type Processor struct {
	prs      repository.PullRequestRepository
	runs     repository.PipelineRunRepository
	insights repository.InsightRepository
	enricher Enricher
	hub      Broadcaster
	flight   *Flight
	log      *slog.Logger
}

func New(
	prs repository.PullRequestRepository,
	runs repository.PipelineRunRepository,
	insights repository.InsightRepository,
	enricher Enricher,
	hub Broadcaster,
	flight *Flight,
	log *slog.Logger,
) *Processor {
	return &Processor{
		prs:      prs,
		runs:     runs,
		insights: insights,
		enricher: enricher,
		hub:      hub,
		flight:   flight,
		log:      log,
	}
}

// Process handles one change record identified by entity kind and row id.
// It is safe to call concurrently and repeatedly for the same record: the
// in-flight set serializes the two delivery paths and the processed flag
// makes redelivery a no-op.
func (p *Processor) Process(ctx context.Context, kind domain.EventKind, id uuid.UUID) (Result, error) {
	const op = "internal.processor.Process"

	if !p.flight.TryAcquire(kind, id) {
		p.log.Debug("record already in flight",
			slog.String("kind", string(kind)), slog.String("id", id.String()))
		eventsProcessed.WithLabelValues(string(kind), "in_flight").Inc()

		return Skipped, nil
	}
	defer p.flight.Release(kind, id)

	var (
		result Result
		err    error
	)

	switch kind {
	case domain.KindPullRequest:
		result, err = p.processPullRequest(ctx, id)
	case domain.KindPipelineRun:
		result, err = p.processPipelineRun(ctx, id)
	case domain.KindInsight:
		result, err = p.processInsight(ctx, id)
	default:
		return Skipped, fmt.Errorf("%s: unknown event kind %q", op, kind)
	}

	eventsProcessed.WithLabelValues(string(kind), result.String()).Inc()

	return result, err
}

func (p *Processor) processPullRequest(ctx context.Context, id uuid.UUID) (Result, error) {
	const op = "internal.processor.processPullRequest"
	log := p.log.With(slog.String("op", op), slog.String("id", id.String()))

	pr, err := p.prs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warn("pull request vanished before processing")
			return Skipped, nil
		}

		return Retryable, fmt.Errorf("%s: failed to load pull request: %w", op, err)
	}

	if pr.Processed {
		return Settled, nil
	}

	log = log.With(slog.String("repo_id", pr.RepoID.String()), slog.Int("pr_number", pr.PRNumber))

	p.maybeEnrich(ctx, pr, log)

	state, err := p.resolveState(ctx, pr)
	if err != nil {
		return Retryable, fmt.Errorf("%s: failed to resolve state: %w", op, err)
	}

	delta := domain.NewStateDelta(pr.RepoID, pr.PRNumber, state, pr.UpdatedAt)
	if err := p.hub.Broadcast(delta); err != nil {
		return Retryable, fmt.Errorf("%s: failed to broadcast delta: %w", op, err)
	}

	if err := p.prs.MarkProcessed(ctx, id); err != nil {
		return Retryable, fmt.Errorf("%s: failed to mark processed: %w", op, err)
	}

	log.Info("pull request settled", slog.String("state", string(state)))

	return Settled, nil
}

// maybeEnrich runs insight enrichment for first-seen pull requests that
// carry file change data. Enrichment failure is logged and swallowed: the
// state delta must reach clients regardless.
func (p *Processor) maybeEnrich(ctx context.Context, pr *domain.PullRequest, log *slog.Logger) {
	if len(pr.FilesChanged) == 0 {
		return
	}

	exists, err := p.insights.ExistsForPR(ctx, pr.RepoID, pr.PRNumber)
	if err != nil {
		log.Warn("failed to check existing insights, skipping enrichment", sl.Err(err))
		return
	}

	if exists {
		return
	}

	if _, err := p.enricher.Enrich(ctx, pr); err != nil {
		log.Warn("enrichment failed", sl.Err(err))
	}
}

// resolveState prefers the pipeline row when one exists; the PR row's own
// history and flags are the fallback for PRs no pipeline has touched yet.
func (p *Processor) resolveState(ctx context.Context, pr *domain.PullRequest) (domain.EventState, error) {
	run, err := p.runs.GetByRepoAndNumber(ctx, pr.RepoID, pr.PRNumber)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return derivePullRequestState(pr), nil
		}

		return "", err
	}

	return derivePipelineState(run), nil
}

func (p *Processor) processPipelineRun(ctx context.Context, id uuid.UUID) (Result, error) {
	const op = "internal.processor.processPipelineRun"
	log := p.log.With(slog.String("op", op), slog.String("id", id.String()))

	run, err := p.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warn("pipeline run vanished before processing")
			return Skipped, nil
		}

		return Retryable, fmt.Errorf("%s: failed to load pipeline run: %w", op, err)
	}

	if run.Processed {
		return Settled, nil
	}

	state := derivePipelineState(run)

	delta := domain.NewStateDelta(run.RepoID, run.PRNumber, state, run.UpdatedAt)
	if err := p.hub.Broadcast(delta); err != nil {
		return Retryable, fmt.Errorf("%s: failed to broadcast delta: %w", op, err)
	}

	if err := p.runs.MarkProcessed(ctx, id); err != nil {
		return Retryable, fmt.Errorf("%s: failed to mark processed: %w", op, err)
	}

	log.Info("pipeline run settled",
		slog.String("repo_id", run.RepoID.String()),
		slog.Int("pr_number", run.PRNumber),
		slog.String("state", string(state)),
	)

	return Settled, nil
}

// processInsight settles insight rows. An insight carries no workflow state
// transition, so no delta is pushed for it.
func (p *Processor) processInsight(ctx context.Context, id uuid.UUID) (Result, error) {
	const op = "internal.processor.processInsight"
	log := p.log.With(slog.String("op", op), slog.String("id", id.String()))

	insight, err := p.insights.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Warn("insight vanished before processing")
			return Skipped, nil
		}

		return Retryable, fmt.Errorf("%s: failed to load insight: %w", op, err)
	}

	if insight.Processed {
		return Settled, nil
	}

	if err := p.insights.MarkProcessed(ctx, id); err != nil {
		return Retryable, fmt.Errorf("%s: failed to mark processed: %w", op, err)
	}

	log.Debug("insight settled",
		slog.String("repo_id", insight.RepoID.String()),
		slog.Int("pr_number", insight.PRNumber),
	)

	return Settled, nil
}
