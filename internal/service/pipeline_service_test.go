package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type MockHarvester struct {
	mock.Mock
}

func (m *MockHarvester) Harvest(ctx context.Context, opts port.HarvestOptions) ([]domain.RepositoryRecord, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RepositoryRecord), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeAll(ctx context.Context, records []domain.RepositoryRecord) []domain.AnalysisRecord {
	args := m.Called(ctx, records)
	return args.Get(0).([]domain.AnalysisRecord)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(p domain.ScoredProject) float64 {
	args := m.Called(p)
	return args.Get(0).(float64)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveRun(ctx context.Context, runID string, projects []domain.ScoredProject) error {
	args := m.Called(ctx, runID, projects)
	return args.Error(0)
}

func (m *MockStore) LatestRun(ctx context.Context) ([]domain.ScoredProject, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ScoredProject), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, runID string, top []domain.ScoredProject) error {
	args := m.Called(ctx, runID, top)
	return args.Error(0)
}

// nameScorer 按项目名给固定分数
type nameScorer map[string]float64

func (s nameScorer) Score(p domain.ScoredProject) float64 {
	return s[p.Name]
}

func records(names ...string) []domain.RepositoryRecord {
	out := make([]domain.RepositoryRecord, 0, len(names))
	for i, name := range names {
		out = append(out, domain.RepositoryRecord{ID: int64(i + 1), Name: name, FullName: "silragon/" + name})
	}
	return out
}

func analyses(n int) []domain.AnalysisRecord {
	out := make([]domain.AnalysisRecord, 0, n)
	for i := 0; i < n; i++ {
		a := domain.EmptyAnalysis()
		a.Complexity = domain.ComplexityMedium
		out = append(out, a)
	}
	return out
}

func TestPipelineService_Evaluate(t *testing.T) {
	opts := port.HarvestOptions{IncludePrivate: true}
	recs := records("alpha", "beta", "gamma")

	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, opts).Return(recs, nil)
	a := new(MockAnalyzer)
	a.On("AnalyzeAll", mock.Anything, recs).Return(analyses(3))
	sc := nameScorer{"alpha": 10.126, "beta": 99.999, "gamma": 0}

	svc := NewPipelineService(h, a, sc)
	got, err := svc.Evaluate(context.Background(), opts)
	require.NoError(t, err)

	require.Len(t, got, 3)
	// 顺序与抓取顺序一致，分数保留两位小数
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, 10.13, got[0].Score)
	assert.Equal(t, 100.0, got[1].Score)
	assert.Equal(t, 0.0, got[2].Score)
	assert.Equal(t, domain.ComplexityMedium, got[0].Complexity)

	h.AssertExpectations(t)
	a.AssertExpectations(t)
}

func TestPipelineService_Evaluate_MissingAnalysisFallsBack(t *testing.T) {
	recs := records("alpha", "beta")

	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, mock.Anything).Return(recs, nil)
	a := new(MockAnalyzer)
	a.On("AnalyzeAll", mock.Anything, recs).Return(analyses(1))

	svc := NewPipelineService(h, a, nameScorer{})
	got, err := svc.Evaluate(context.Background(), port.HarvestOptions{})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.ComplexityNA, got[1].Complexity)
	require.Len(t, got[1].Achievements, 1)
	assert.Contains(t, got[1].Achievements[0], "beta")
}

func TestPipelineService_Evaluate_HarvestErrorIsFatal(t *testing.T) {
	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, mock.Anything).
		Return(nil, common.NewError(common.ErrCodeAuth, "bad credentials"))
	a := new(MockAnalyzer)

	svc := NewPipelineService(h, a, nameScorer{})
	_, err := svc.Evaluate(context.Background(), port.HarvestOptions{})

	require.Error(t, err)
	assert.Equal(t, common.ErrCodeAuth, common.CodeOf(err))
	a.AssertNotCalled(t, "AnalyzeAll", mock.Anything, mock.Anything)
}

func TestPipelineService_Evaluate_NoRepositories(t *testing.T) {
	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, mock.Anything).Return([]domain.RepositoryRecord{}, nil)
	a := new(MockAnalyzer)

	svc := NewPipelineService(h, a, nameScorer{})
	got, err := svc.Evaluate(context.Background(), port.HarvestOptions{})

	require.NoError(t, err)
	assert.Empty(t, got)
	a.AssertNotCalled(t, "AnalyzeAll", mock.Anything, mock.Anything)
}

func TestPipelineService_Evaluate_MissingComponents(t *testing.T) {
	svc := NewPipelineService(nil, nil, nil)
	_, err := svc.Evaluate(context.Background(), port.HarvestOptions{})
	assert.Equal(t, common.ErrCodeConfig, common.CodeOf(err))
}

func TestPipelineService_Run(t *testing.T) {
	tests := []struct {
		name      string
		storeErr  error
		notifyErr error
	}{
		{name: "保存和推送都成功"},
		{name: "保存失败不影响结果", storeErr: errors.New("db down")},
		{name: "推送失败不影响结果", notifyErr: errors.New("webhook down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := records("a", "b", "c", "d", "e")

			h := new(MockHarvester)
			h.On("Harvest", mock.Anything, mock.Anything).Return(recs, nil)
			a := new(MockAnalyzer)
			a.On("AnalyzeAll", mock.Anything, recs).Return(analyses(5))
			sc := nameScorer{"a": 5, "b": 50, "c": 30, "d": 50, "e": 1}

			store := new(MockStore)
			store.On("SaveRun", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(tt.storeErr)
			notifier := new(MockNotifier)
			notifier.On("Notify", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(tt.notifyErr)

			svc := NewPipelineService(h, a, sc, WithStore(store), WithNotifier(notifier), WithTopK(3))
			result, err := svc.Run(context.Background(), port.HarvestOptions{})
			require.NoError(t, err)

			assert.NotEmpty(t, result.RunID)
			assert.Len(t, result.Projects, 5)
			require.Len(t, result.Top, 3)
			assert.Equal(t, []string{"b", "d", "c"}, []string{result.Top[0].Name, result.Top[1].Name, result.Top[2].Name})

			store.AssertCalled(t, "SaveRun", mock.Anything, result.RunID, result.Top)
			notifier.AssertCalled(t, "Notify", mock.Anything, result.RunID, result.Top)
		})
	}
}

func TestPipelineService_Run_WithoutStoreAndNotifier(t *testing.T) {
	recs := records("solo")
	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, mock.Anything).Return(recs, nil)
	a := new(MockAnalyzer)
	a.On("AnalyzeAll", mock.Anything, recs).Return(analyses(1))
	sc := new(MockScorer)
	sc.On("Score", mock.Anything).Return(42.0)

	svc := NewPipelineService(h, a, sc)
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	result, err := svc.Run(context.Background(), port.HarvestOptions{})
	require.NoError(t, err)
	require.Len(t, result.Top, 1)
	assert.Equal(t, 42.0, result.Top[0].Score)
	assert.Equal(t, time.Second, result.Duration)
	sc.AssertNumberOfCalls(t, "Score", 1)
}

func TestPipelineService_Run_HarvestError(t *testing.T) {
	h := new(MockHarvester)
	h.On("Harvest", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	store := new(MockStore)

	svc := NewPipelineService(h, new(MockAnalyzer), nameScorer{}, WithStore(store))
	result, err := svc.Run(context.Background(), port.HarvestOptions{})

	assert.Error(t, err)
	assert.Nil(t, result)
	store.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything, mock.Anything)
}
