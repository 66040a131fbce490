package insight

import (
	"context"

	"github.com/DevByZero/flowlens-api/internal/ai"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type GeneratorMock struct {
	mock.Mock
}

var _ ai.Generator = (*GeneratorMock)(nil)

func (m *GeneratorMock) Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	args := m.Called(ctx, prompt, temperature, maxTokens)
	return args.String(0), args.Error(1)
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
