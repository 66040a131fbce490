// package repository defines the interfaces for the data persistence layer.
// These interfaces abstract the underlying database implementation from the
// event processing logic. All tables are owned by the external ingestion
// pipeline; this layer only reads rows, flags them settled and appends
// insights — it never issues DDL.
package repository

import (
	"context"

	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/google/uuid"
)

// PullRequestRepository reads and settles pull request change records.
type PullRequestRepository interface {
	// GetByID retrieves a single pull request row.
	// Returns apperrors.ErrNotFound if no row exists for the id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PullRequest, error)

	// GetUnprocessed returns up to limit rows not yet marked processed,
	// oldest first. Used by the reconciliation poller.
	GetUnprocessed(ctx context.Context, limit int) ([]domain.PullRequest, error)

	// MarkProcessed flags a row as settled.
	// Returns apperrors.ErrNotFound if the row does not exist.
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// PipelineRunRepository reads and settles pipeline run change records.
type PipelineRunRepository interface {
	// GetByID retrieves a single pipeline run row.
	// Returns apperrors.ErrNotFound if no row exists for the id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error)

	// GetByRepoAndNumber retrieves the pipeline row for a pull request.
	// Returns apperrors.ErrNotFound when the PR has no pipeline row yet.
	GetByRepoAndNumber(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.PipelineRun, error)

	// GetUnprocessed returns up to limit unsettled rows, oldest first.
	GetUnprocessed(ctx context.Context, limit int) ([]domain.PipelineRun, error)

	// MarkProcessed flags a row as settled.
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// InsightRepository persists and reads AI/heuristic insights.
// The insights table is append-only.
type InsightRepository interface {
	// Insert appends a new insight row.
	Insert(ctx context.Context, insight *domain.Insight) error

	// ExistsForPR reports whether any insight exists for (repo_id, pr_number).
	ExistsForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (bool, error)

	// LatestForPR returns the most recent insight for a pull request.
	// Returns apperrors.ErrNotFound when the PR has no insights.
	LatestForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.Insight, error)

	// GetByID retrieves a single insight row.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Insight, error)

	// GetUnprocessed returns up to limit unsettled rows, oldest first.
	GetUnprocessed(ctx context.Context, limit int) ([]domain.Insight, error)

	// MarkProcessed flags a row as settled.
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}
