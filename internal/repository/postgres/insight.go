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

var insightColumns = []string{
	"id", "repo_id", "pr_number", "commit_sha",
	"risk_level", "summary", "recommendation", "processed", "created_at",
}

type InsightRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	sq  sq.StatementBuilderType
}

func NewInsightRepository(db *sqlx.DB, log *slog.Logger) *InsightRepository {
	return &InsightRepository{
		db:  db,
		log: log,
		sq:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *InsightRepository) Insert(ctx context.Context, insight *domain.Insight) error {
	const op = "internal.repository.postgres.insight.Insert"

	query, args, err := r.sq.Insert("insights").
		Columns("id", "repo_id", "pr_number", "commit_sha", "risk_level", "summary", "recommendation", "created_at").
		Values(
			insight.ID, insight.RepoID, insight.PRNumber, insight.CommitSHA,
			insight.RiskLevel, insight.Summary, insight.Recommendation, insight.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build insert query: %w", op, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: failed to execute insert: %w", op, err)
	}

	return nil
}

func (r *InsightRepository) ExistsForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (bool, error) {
	const op = "internal.repository.postgres.insight.ExistsForPR"

	query, args, err := r.sq.Select("1").
		From("insights").
		Where(sq.Eq{"repo_id": repoID, "pr_number": prNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return true, nil
}

func (r *InsightRepository) LatestForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.Insight, error) {
	const op = "internal.repository.postgres.insight.LatestForPR"

	query, args, err := r.sq.Select(insightColumns...).
		From("insights").
		Where(sq.Eq{"repo_id": repoID, "pr_number": prNumber}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var insight domain.Insight
	if err := r.db.GetContext(ctx, &insight, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: insight for PR #%d", op, apperrors.ErrNotFound, prNumber)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return &insight, nil
}

func (r *InsightRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Insight, error) {
	const op = "internal.repository.postgres.insight.GetByID"

	query, args, err := r.sq.Select(insightColumns...).
		From("insights").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var insight domain.Insight
	if err := r.db.GetContext(ctx, &insight, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: insight with id '%s'", op, apperrors.ErrNotFound, id)
		}

		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return &insight, nil
}

func (r *InsightRepository) GetUnprocessed(ctx context.Context, limit int) ([]domain.Insight, error) {
	const op = "internal.repository.postgres.insight.GetUnprocessed"

	query, args, err := r.sq.Select(insightColumns...).
		From("insights").
		Where(sq.Eq{"processed": false}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var insights []domain.Insight
	if err := r.db.SelectContext(ctx, &insights, query, args...); err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}

	return insights, nil
}

func (r *InsightRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	const op = "internal.repository.postgres.insight.MarkProcessed"

	query, args, err := r.sq.Update("insights").
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
		return fmt.Errorf("%s: %w: insight with id '%s'", op, apperrors.ErrNotFound, id)
	}

	return nil
}
