package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/promptopt-client/internal/domain/model"
	"github.com/target/promptopt-client/internal/domain/notification"
	apperrors "github.com/target/promptopt-client/internal/errors"
	"github.com/target/promptopt-client/internal/testutil"
)

type fakeOptimizerAPI struct {
	center    *NotificationCenter
	optimize  func(model.OptimizationRequest) (model.OptimizationResult, error)
	requests  []model.OptimizationRequest
	evaluated []string
	queries   []model.HistoryQuery
	health    model.Health
	healthErr error
}

func (f *fakeOptimizerAPI) Optimize(_ context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	f.requests = append(f.requests, req)
	if f.center != nil && !f.center.Loading(LoadingOptimize) {
		return model.OptimizationResult{}, apperrors.Unknown(0, "loading flag not set")
	}
	if f.optimize != nil {
		return f.optimize(req)
	}
	return testutil.NewResult().WithScores(4, 8).Build(), nil
}

func (f *fakeOptimizerAPI) Evaluate(_ context.Context, req model.EvaluationRequest) (model.QualityEvaluation, error) {
	f.evaluated = append(f.evaluated, req.Prompt)
	return model.QualityEvaluation{OverallScore: 6.5}, nil
}

func (f *fakeOptimizerAPI) History(_ context.Context, q model.HistoryQuery) (model.HistoryPage, error) {
	f.queries = append(f.queries, q)
	return model.HistoryPage{Total: 1, Items: []model.OptimizationResult{testutil.NewResult().Build()}}, nil
}

func (f *fakeOptimizerAPI) Health(context.Context) (model.Health, error) {
	return f.health, f.healthErr
}

func newOptimizerFixture(t *testing.T) (*OptimizerService, *fakeOptimizerAPI, *NotificationCenter) {
	t.Helper()
	center, _ := newTestCenter(t, nil)
	api := &fakeOptimizerAPI{center: center}
	svc, err := NewOptimizerService(OptimizerServiceOptions{API: api, Center: center})
	require.NoError(t, err)
	return svc, api, center
}

func TestNewOptimizerService_RequiresDependencies(t *testing.T) {
	_, err := NewOptimizerService(OptimizerServiceOptions{})
	assert.Error(t, err)
	_, err = NewOptimizerService(OptimizerServiceOptions{API: &fakeOptimizerAPI{}})
	assert.Error(t, err)
}

func TestOptimizerService_Optimize(t *testing.T) {
	svc, api, center := newOptimizerFixture(t)

	res, err := svc.Optimize(context.Background(), model.OptimizationRequest{OriginalPrompt: "write a poem"})

	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.ScoreDelta(), 1e-9)
	require.Len(t, api.requests, 1)
	assert.Equal(t, model.OptimizationGeneral, api.requests[0].OptimizationType)
	assert.False(t, center.Loading(LoadingOptimize))

	list := center.List()
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeSuccess, list[0].Type)
	assert.Contains(t, list[0].Message, "4.0")
}

func TestOptimizerService_ValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name string
		req  model.OptimizationRequest
	}{
		{"blank prompt", model.OptimizationRequest{OriginalPrompt: "   "}},
		{"unknown type", model.OptimizationRequest{OriginalPrompt: "x", OptimizationType: "poetry"}},
		{"prompt too long", model.OptimizationRequest{OriginalPrompt: strings.Repeat("a", 10001)}},
		{"context too long", model.OptimizationRequest{OriginalPrompt: "x", UserContext: strings.Repeat("c", 2001)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api, center := newOptimizerFixture(t)

			_, err := svc.Optimize(context.Background(), tt.req)

			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Zero(t, apperrors.StatusOf(err))
			assert.Empty(t, api.requests)
			require.Len(t, center.List(), 1)
			assert.Equal(t, notification.TypeWarning, center.List()[0].Type)
			assert.NotNil(t, center.LastError())
		})
	}
}

func TestOptimizerService_PropagatesPipelineErrors(t *testing.T) {
	svc, api, center := newOptimizerFixture(t)
	api.optimize = func(model.OptimizationRequest) (model.OptimizationResult, error) {
		return model.OptimizationResult{}, apperrors.Server(503, "")
	}

	_, err := svc.Optimize(context.Background(), model.OptimizationRequest{OriginalPrompt: "x"})

	assert.True(t, apperrors.IsServer(err))
	assert.False(t, center.Loading(LoadingOptimize))
	assert.Empty(t, center.List(), "the pipeline owns failure notifications")
}

func TestOptimizerService_Evaluate(t *testing.T) {
	svc, api, _ := newOptimizerFixture(t)

	eval, err := svc.Evaluate(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.InDelta(t, 6.5, eval.OverallScore, 1e-9)
	assert.Equal(t, []string{"summarize this"}, api.evaluated)

	_, err = svc.Evaluate(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Len(t, api.evaluated, 1)
}

func TestOptimizerService_History(t *testing.T) {
	svc, api, _ := newOptimizerFixture(t)

	page, err := svc.History(context.Background(), model.HistoryQuery{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, api.queries, 1)

	_, err = svc.History(context.Background(), model.HistoryQuery{Limit: 500})
	assert.True(t, apperrors.IsValidation(err))
	assert.Len(t, api.queries, 1)
}

func TestOptimizerService_Health(t *testing.T) {
	svc, api, _ := newOptimizerFixture(t)
	api.health = model.Health{Status: "healthy"}

	h, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Healthy())

	api.healthErr = apperrors.Network(context.DeadlineExceeded)
	_, err = svc.Health(context.Background())
	assert.True(t, apperrors.IsNetwork(err))
}
