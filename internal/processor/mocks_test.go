package processor

import (
	"context"

	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type PullRequestRepositoryMock struct {
	mock.Mock
}

var _ repository.PullRequestRepository = (*PullRequestRepositoryMock)(nil)

func (m *PullRequestRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.PullRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PullRequest), args.Error(1)
}

func (m *PullRequestRepositoryMock) GetUnprocessed(ctx context.Context, limit int) ([]domain.PullRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func (m *PullRequestRepositoryMock) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type PipelineRunRepositoryMock struct {
	mock.Mock
}

var _ repository.PipelineRunRepository = (*PipelineRunRepositoryMock)(nil)

func (m *PipelineRunRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PipelineRun), args.Error(1)
}

func (m *PipelineRunRepositoryMock) GetByRepoAndNumber(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.PipelineRun, error) {
	args := m.Called(ctx, repoID, prNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.PipelineRun), args.Error(1)
}

func (m *PipelineRunRepositoryMock) GetUnprocessed(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.PipelineRun), args.Error(1)
}

func (m *PipelineRunRepositoryMock) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type InsightRepositoryMock struct {
	mock.Mock
}

var _ repository.InsightRepository = (*InsightRepositoryMock)(nil)

func (m *InsightRepositoryMock) Insert(ctx context.Context, insight *domain.Insight) error {
	args := m.Called(ctx, insight)
	return args.Error(0)
}

func (m *InsightRepositoryMock) ExistsForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (bool, error) {
	args := m.Called(ctx, repoID, prNumber)
	return args.Bool(0), args.Error(1)
}

func (m *InsightRepositoryMock) LatestForPR(ctx context.Context, repoID uuid.UUID, prNumber int) (*domain.Insight, error) {
	args := m.Called(ctx, repoID, prNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Insight), args.Error(1)
}

func (m *InsightRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Insight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Insight), args.Error(1)
}

func (m *InsightRepositoryMock) GetUnprocessed(ctx context.Context, limit int) ([]domain.Insight, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Insight), args.Error(1)
}

func (m *InsightRepositoryMock) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type EnricherMock struct {
	mock.Mock
}

var _ Enricher = (*EnricherMock)(nil)

func (m *EnricherMock) Enrich(ctx context.Context, pr *domain.PullRequest) (*domain.Insight, error) {
	args := m.Called(ctx, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Insight), args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

var _ Broadcaster = (*BroadcasterMock)(nil)

func (m *BroadcasterMock) Broadcast(delta domain.StateDelta) error {
	args := m.Called(delta)
	return args.Error(0)
}
