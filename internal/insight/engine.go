// package insight implements the enrichment engine: it turns a pull request
// record into a persisted {risk, summary, recommendation} insight via the
// generative model collaborator, degrading to a deterministic heuristic and
// finally to a background retry ledger under partial failure.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DevByZero/flowlens-api/internal/ai"
	"github.com/DevByZero/flowlens-api/internal/apperrors"
	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/DevByZero/flowlens-api/pkg/logger/sl"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type Engine struct {
	insights repository.InsightRepository
	gen      ai.Generator
	retries  *RetryStore
	cfg      config.AI
	retryCfg config.Retry
	log      *slog.Logger

	// newBackOff produces the delay schedule between model attempts.
	// Overridable in tests to avoid real sleeps.
	newBackOff func() backoff.BackOff
}

func NewEngine(
	insights repository.InsightRepository,
	gen ai.Generator,
	retries *RetryStore,
	cfg config.AI,
	retryCfg config.Retry,
	log *slog.Logger,
) *Engine {
	return &Engine{
		insights: insights,
		gen:      gen,
		retries:  retries,
		cfg:      cfg,
		retryCfg: retryCfg,
		log:      log,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxInterval = 10 * time.Second

			return bo
		},
	}
}

// Enrich produces and persists exactly one insight for the pull request, or
// registers it for background retry. The returned error is apperrors.
// ErrEnrichmentFailed when every path is exhausted; callers must not treat
// that as fatal to the surrounding reconciliation.
func (e *Engine) Enrich(ctx context.Context, pr *domain.PullRequest) (*domain.Insight, error) {
	const op = "internal.insight.Enrich"
	log := e.log.With(slog.String("op", op), slog.String("repo_id", pr.RepoID.String()), slog.Int("pr_number", pr.PRNumber))

	p, err := e.generateWithRetries(ctx, pr, log)
	if err == nil {
		enrichmentResults.WithLabelValues("ai").Inc()
		return e.persistOrDefer(ctx, pr, p, log)
	}

	log.Warn("model enrichment exhausted, trying heuristic", sl.Err(err))

	if canRunHeuristic(pr) {
		enrichmentResults.WithLabelValues("heuristic").Inc()
		return e.persistOrDefer(ctx, pr, heuristicPayload(pr), log)
	}

	e.retries.Register(pr)
	enrichmentResults.WithLabelValues("deferred").Inc()
	log.Warn("record has no usable change data, registered for background retry")

	return nil, fmt.Errorf("%s: %w", op, apperrors.ErrEnrichmentFailed)
}

// generateWithRetries runs the model attempt loop. Attempt k shrinks the
// file-change payload one level further than attempt k-1.
func (e *Engine) generateWithRetries(ctx context.Context, pr *domain.PullRequest, log *slog.Logger) (*payload, error) {
	const op = "internal.insight.generateWithRetries"

	bo := e.newBackOff()

	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}

		shrink := attempt
		if shrink > shrinkFilenames {
			shrink = shrinkFilenames
		}

		text, err := e.gen.Generate(ctx, buildPrompt(pr, shrink), e.cfg.Temperature, e.cfg.MaxTokens)
		if err != nil {
			enrichmentAttempts.WithLabelValues("call_failed").Inc()
			log.Warn("model call failed", slog.Int("attempt", attempt+1), sl.Err(err))
			lastErr = err

			continue
		}

		p, err := parseInsight(text)
		if err != nil {
			enrichmentAttempts.WithLabelValues("unparsable").Inc()
			log.Warn("model response unparsable", slog.Int("attempt", attempt+1), sl.Err(err))
			lastErr = err

			continue
		}

		enrichmentAttempts.WithLabelValues("ok").Inc()

		return p, nil
	}

	return nil, fmt.Errorf("%s: all %d attempts failed: %w", op, e.cfg.MaxAttempts, lastErr)
}

func (e *Engine) persist(ctx context.Context, pr *domain.PullRequest, p *payload) (*domain.Insight, error) {
	const op = "internal.insight.persist"

	insight := &domain.Insight{
		ID:             uuid.New(),
		RepoID:         pr.RepoID,
		PRNumber:       pr.PRNumber,
		CommitSHA:      pr.CommitSHA,
		RiskLevel:      domain.RiskLevel(p.RiskLevel),
		Summary:        p.Summary,
		Recommendation: p.Recommendation,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.insights.Insert(ctx, insight); err != nil {
		return nil, fmt.Errorf("%s: failed to insert insight: %w", op, err)
	}

	return insight, nil
}

// persistOrDefer writes the insight, registering the pull request in the
// retry ledger when storage rejects it. A payload that was produced but not
// stored would otherwise vanish: the caller settles the record regardless,
// so the sweep is the only path that would ever try again.
func (e *Engine) persistOrDefer(ctx context.Context, pr *domain.PullRequest, p *payload, log *slog.Logger) (*domain.Insight, error) {
	insight, err := e.persist(ctx, pr, p)
	if err != nil {
		e.retries.Register(pr)
		enrichmentResults.WithLabelValues("deferred").Inc()
		log.Warn("failed to persist insight, registered for background retry", sl.Err(err))

		return nil, err
	}

	return insight, nil
}

// RunSweep periodically retries ledger entries whose cooldown has elapsed.
// Entries are evicted on success or abandoned (with a log record) once the
// hard attempt cap is reached; they are never dropped silently.
func (e *Engine) RunSweep(ctx context.Context) {
	const op = "internal.insight.RunSweep"
	log := e.log.With(slog.String("op", op))

	log.Info("starting enrichment retry sweep", slog.Duration("interval", e.retryCfg.SweepInterval))

	ticker := time.NewTicker(e.retryCfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("enrichment retry sweep stopped")
			return
		case <-ticker.C:
			e.sweep(ctx, log)
		}
	}
}

func (e *Engine) sweep(ctx context.Context, log *slog.Logger) {
	for _, entry := range e.retries.Due(e.retryCfg.Cooldown) {
		pr := entry.PR
		entryLog := log.With(slog.String("repo_id", pr.RepoID.String()), slog.Int("pr_number", pr.PRNumber))

		// The insights table is append-only, so a stored row means some
		// earlier pass already won; retrying now would write a duplicate.
		if _, err := e.insights.LatestForPR(ctx, pr.RepoID, pr.PRNumber); err == nil {
			e.retries.Evict(&pr)
			entryLog.Info("insight already stored, dropping retry entry")

			continue
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			entryLog.Warn("failed to check stored insights, keeping retry entry", sl.Err(err))

			continue
		}

		if e.retryOne(ctx, &pr, entry.Attempts, entryLog) {
			e.retries.Evict(&pr)
			entryLog.Info("background enrichment retry succeeded")

			continue
		}

		attempts := e.retries.Bump(&pr)
		if attempts >= e.retryCfg.MaxAttempts {
			e.retries.Evict(&pr)
			enrichmentResults.WithLabelValues("abandoned").Inc()
			entryLog.Error("enrichment abandoned after retry cap",
				slog.Int("attempts", attempts), sl.Err(apperrors.ErrAbandoned))
		}
	}
}

// retryOne runs a single background retry. Once the model attempt budget
// has already been burned, the heuristic path is preferred over more calls.
func (e *Engine) retryOne(ctx context.Context, pr *domain.PullRequest, attempts int, log *slog.Logger) bool {
	if attempts >= e.cfg.MaxAttempts && canRunHeuristic(pr) {
		if _, err := e.persist(ctx, pr, heuristicPayload(pr)); err != nil {
			log.Warn("failed to persist heuristic insight", sl.Err(err))
			return false
		}

		enrichmentResults.WithLabelValues("heuristic").Inc()

		return true
	}

	p, err := e.generateWithRetries(ctx, pr, log)
	if err != nil {
		if canRunHeuristic(pr) {
			if _, err := e.persist(ctx, pr, heuristicPayload(pr)); err != nil {
				log.Warn("failed to persist heuristic insight", sl.Err(err))
				return false
			}

			enrichmentResults.WithLabelValues("heuristic").Inc()

			return true
		}

		return false
	}

	if _, err := e.persist(ctx, pr, p); err != nil {
		log.Warn("failed to persist insight", sl.Err(err))
		return false
	}

	enrichmentResults.WithLabelValues("ai").Inc()

	return true
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
