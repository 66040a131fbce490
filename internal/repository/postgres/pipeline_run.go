package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/DevByZero/flowlens-api/internal/apperrors"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var pipelineRunColumns = []string{
	"id", "repo_id", "pr_number", "commit_sha",
	"status_pr", "status_build", "status_approval", "status_merge",
	"processed", "updated_at",
}

type PipelineRunRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewPipelineRunRepository(db *sqlx.DB, log *slog.Logger) *PipelineRunRepository {
	return &PipelineRunRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PipelineRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	const op = "internal.repository.postgres.pipelinerun.GetByID"

	query, args, err := r.sq.Select(pipelineRunColumns...).
		From("pipeline_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var run domain.PipelineRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: pipeline run with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return &run, nil
}

func (r *PipelineRunRepository) GetByRepoAndNumber(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.PipelineRun, error) {
	const op = "internal.repository.postgres.pipelinerun.GetByRepoAndNumber"

	query, args, err := r.sq.Select(pipelineRunColumns...).
		From("pipeline_runs").
		Where(sq.Eq{"repo_id": repoID, "pr_number": prNumber}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var run domain.PipelineRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: pipeline run for PR #%d", op, apperrors.ErrNotFound, prNumber)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return &run, nil
}

func (r *PipelineRunRepository) GetUnprocessed(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	const op = "internal.repository.postgres.pipelinerun.GetUnprocessed"

	query, args, err := r.sq.Select(pipelineRunColumns...).
		From("pipeline_runs").
		Where(sq.Eq{"processed": false}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var runs []domain.PipelineRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return runs, nil
}

func (r *PipelineRunRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const op = "internal.repository.postgres.pipelinerun.MarkProcessed"

	query, args, err := r.sq.Update("pipeline_runs").
		Set("processed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build update query: %w", op, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to execute update: %w", op, err)
	}

	if rowsAffected, err := res.RowsAffected(); err == nil && rowsAffected == 0 {
		return fmt.Errorf("%s: %w: pipeline run with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
