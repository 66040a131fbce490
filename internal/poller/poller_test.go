package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/DevByZero/flowlens-api/internal/domain"
	"github.com/DevByZero/flowlens-api/internal/processor"
	"github.com/DevByZero/flowlens-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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

type handlerStub struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	failIDs map[uuid.UUID]struct{}
}

func newHandlerStub() *handlerStub {
	return &handlerStub{
		calls:   make(map[uuid.UUID]int),
		failIDs: make(map[uuid.UUID]struct{}),
	}
}

func (h *handlerStub) Process(_ context.Context, _ domain.EventKind, id uuid.UUID) (processor.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls[id]++

	if _, ok := h.failIDs[id]; ok {
		return processor.Retryable, errors.New("transient failure")
	}

	return processor.Settled, nil
}

func newTestPoller(prs *PullRequestRepositoryMock, runs *PipelineRunRepositoryMock, insights *InsightRepositoryMock, handler Handler) *Poller {
	cfg := config.Poller{BatchSize: 10}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(prs, runs, insights, handler, cfg, log)
}

func TestPoller_ScanCoversAllTables(t *testing.T) {
	ctx := context.Background()

	prs := &PullRequestRepositoryMock{}
	runs := &PipelineRunRepositoryMock{}
	insights := &InsightRepositoryMock{}
	handler := newHandlerStub()

	prID := uuid.New()
	runID := uuid.New()
	insightID := uuid.New()

	prs.On("GetUnprocessed", ctx, 10).Return([]domain.PullRequest{{ID: prID}}, nil).Once()
	runs.On("GetUnprocessed", ctx, 10).Return([]domain.PipelineRun{{ID: runID}}, nil).Once()
	insights.On("GetUnprocessed", ctx, 10).Return([]domain.Insight{{ID: insightID}}, nil).Once()

	poller := newTestPoller(prs, runs, insights, handler)
	require.NoError(t, poller.scanOnce(ctx))

	assert.Equal(t, 1, handler.calls[prID])
	assert.Equal(t, 1, handler.calls[runID])
	assert.Equal(t, 1, handler.calls[insightID])

	prs.AssertExpectations(t)
	runs.AssertExpectations(t)
	insights.AssertExpectations(t)
}

func TestPoller_RowFailureDoesNotStopScan(t *testing.T) {
	ctx := context.Background()

	prs := &PullRequestRepositoryMock{}
	runs := &PipelineRunRepositoryMock{}
	insights := &InsightRepositoryMock{}
	handler := newHandlerStub()

	badID := uuid.New()
	goodID := uuid.New()
	handler.failIDs[badID] = struct{}{}

	prs.On("GetUnprocessed", ctx, 10).Return([]domain.PullRequest{{ID: badID}, {ID: goodID}}, nil).Once()
	runs.On("GetUnprocessed", ctx, 10).Return([]domain.PipelineRun{}, nil).Once()
	insights.On("GetUnprocessed", ctx, 10).Return([]domain.Insight{}, nil).Once()

	poller := newTestPoller(prs, runs, insights, handler)
	require.NoError(t, poller.scanOnce(ctx))

	assert.Equal(t, 1, handler.calls[badID])
	assert.Equal(t, 1, handler.calls[goodID])
}

func TestPoller_TableScanFailureAbortsCycle(t *testing.T) {
	ctx := context.Background()

	prs := &PullRequestRepositoryMock{}
	runs := &PipelineRunRepositoryMock{}
	insights := &InsightRepositoryMock{}
	handler := newHandlerStub()

	prs.On("GetUnprocessed", ctx, 10).Return(nil, errors.New("connection reset")).Once()

	poller := newTestPoller(prs, runs, insights, handler)
	require.Error(t, poller.scanOnce(ctx))

	runs.AssertNotCalled(t, "GetUnprocessed", mock.Anything, mock.Anything)
	assert.Empty(t, handler.calls)
}

func TestPoller_RedeliveryAcrossScans(t *testing.T) {
	ctx := context.Background()

	prs := &PullRequestRepositoryMock{}
	runs := &PipelineRunRepositoryMock{}
	insights := &InsightRepositoryMock{}
	handler := newHandlerStub()

	// A row that failed last cycle shows up again until it settles.
	stuckID := uuid.New()
	handler.failIDs[stuckID] = struct{}{}

	prs.On("GetUnprocessed", ctx, 10).Return([]domain.PullRequest{{ID: stuckID}}, nil).Twice()
	runs.On("GetUnprocessed", ctx, 10).Return([]domain.PipelineRun{}, nil).Twice()
	insights.On("GetUnprocessed", ctx, 10).Return([]domain.Insight{}, nil).Twice()

	poller := newTestPoller(prs, runs, insights, handler)
	require.NoError(t, poller.scanOnce(ctx))
	require.NoError(t, poller.scanOnce(ctx))

	assert.Equal(t, 2, handler.calls[stuckID])
}
