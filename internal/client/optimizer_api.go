package client

import (
	"context"

	"github.com/target/promptopt-client/internal/domain/model"
	"github.com/target/promptopt-client/internal/ports"
)

// Optimizer endpoint paths relative to the base URL.
const (
	PathOptimize = "/optimizer/optimize"
	PathEvaluate = "/optimizer/evaluate"
	PathHistory  = "/optimizer/history"
	PathHealth   = "/health/"
)

// OptimizerAPI binds the optimization endpoints to the pipeline.
type OptimizerAPI struct {
	c *Client
}

var _ ports.OptimizerGateway = (*OptimizerAPI)(nil)

// NewOptimizerAPI creates an OptimizerAPI over c.
func NewOptimizerAPI(c *Client) *OptimizerAPI {
	return &OptimizerAPI{c: c}
}

// Optimize submits a prompt for optimization.
func (a *OptimizerAPI) Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	var res model.OptimizationResult
	if err := a.c.Post(ctx, PathOptimize, req, &res); err != nil {
		return model.OptimizationResult{}, err
	}
	return res, nil
}

// Evaluate scores a prompt without rewriting it.
func (a *OptimizerAPI) Evaluate(ctx context.Context, req model.EvaluationRequest) (model.QualityEvaluation, error) {
	var res model.QualityEvaluation
	if err := a.c.Post(ctx, PathEvaluate, req, &res); err != nil {
		return model.QualityEvaluation{}, err
	}
	return res, nil
}

// History lists past optimizations. Pages are cached briefly.
func (a *OptimizerAPI) History(ctx context.Context, q model.HistoryQuery) (model.HistoryPage, error) {
	var page model.HistoryPage
	if err := a.c.Get(ctx, PathHistory, &page, Query(q.Values()), Cacheable()); err != nil {
		return model.HistoryPage{}, err
	}
	return page, nil
}

// Health reports backend health. Transient failures are retried once.
func (a *OptimizerAPI) Health(ctx context.Context) (model.Health, error) {
	var h model.Health
	if err := a.c.Get(ctx, PathHealth, &h, Retries(1)); err != nil {
		return model.Health{}, err
	}
	return h, nil
}
