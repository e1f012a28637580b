package ports

import (
	"context"

	"github.com/target/promptopt-client/internal/domain/model"
)

// OptimizerGateway talks to the prompt optimization endpoints.
type OptimizerGateway interface {
	Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error)
	Evaluate(ctx context.Context, req model.EvaluationRequest) (model.QualityEvaluation, error)
	History(ctx context.Context, q model.HistoryQuery) (model.HistoryPage, error)
	Health(ctx context.Context) (model.Health, error)
}
