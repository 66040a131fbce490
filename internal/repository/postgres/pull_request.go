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

var pullRequestColumns = []string{
	"id", "repo_id", "pr_number", "title", "description", "author",
	"author_avatar", "commit_sha", "branch_name", "base_branch", "pr_url",
	"additions", "deletions", "changed_files", "is_draft", "merged", "state",
	"history", "files_changed", "processed", "created_at", "updated_at",
}

type PullRequestRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewPullRequestRepository(db *sqlx.DB, log *slog.Logger) *PullRequestRepository {
	return &PullRequestRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PullRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PullRequest, error) {
	const op = "internal.repository.postgres.pullrequest.GetByID"

	query, args, err := r.sq.Select(pullRequestColumns...).
		From("pull_requests").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var pr domain.PullRequest
	if err := r.db.GetContext(ctx, &pr, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: pull request with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return &pr, nil
}

func (r *PullRequestRepository) GetUnprocessed(ctx context.Context, limit int) ([]domain.PullRequest, error) {
	const op = "internal.repository.postgres.pullrequest.GetUnprocessed"

	query, args, err := r.sq.Select(pullRequestColumns...).
		From("pull_requests").
		Where(sq.Eq{"processed": false}).
		OrderBy("updated_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var prs []domain.PullRequest
	if err := r.db.SelectContext(ctx, &prs, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return prs, nil
}

func (r *PullRequestRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const op = "internal.repository.postgres.pullrequest.MarkProcessed"

	query, args, err := r.sq.Update("pull_requests").
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
		return fmt.Errorf("%s: %w: pull request with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
