package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/promptopt-client/internal/domain/model"
	"github.com/target/promptopt-client/internal/domain/notification"
	apperrors "github.com/target/promptopt-client/internal/errors"
	"github.com/target/promptopt-client/internal/ports"
)

// OptimizerServiceOptions groups dependencies for OptimizerService.
type OptimizerServiceOptions struct {
	API    ports.OptimizerGateway
	Center *NotificationCenter
	Logger *slog.Logger
}

// OptimizerService validates optimization requests and runs them against the backend,
// tracking progress on the notification center.
type OptimizerService struct {
	api    ports.OptimizerGateway
	center *NotificationCenter
	logger *slog.Logger
}

// NewOptimizerService constructs an OptimizerService.
func NewOptimizerService(opts OptimizerServiceOptions) (*OptimizerService, error) {
	if opts.API == nil {
		return nil, errors.New("optimizer api is required")
	}
	if opts.Center == nil {
		return nil, errors.New("notification center is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizerService{
		api:    opts.API,
		center: opts.Center,
		logger: logger.With("component", "optimizer_service"),
	}, nil
}

// Optimize submits req. An empty optimization type selects general.
func (s *OptimizerService) Optimize(ctx context.Context, req model.OptimizationRequest) (model.OptimizationResult, error) {
	if req.OptimizationType == "" {
		req.OptimizationType = model.OptimizationGeneral
	}
	if err := req.Validate(); err != nil {
		return model.OptimizationResult{}, s.rejected(err)
	}

	s.center.SetLoading(LoadingOptimize, true)
	defer s.center.SetLoading(LoadingOptimize, false)

	res, err := s.api.Optimize(ctx, req)
	if err != nil {
		return model.OptimizationResult{}, fmt.Errorf("optimize prompt: %w", err)
	}

	s.logger.InfoContext(ctx, "prompt optimized",
		"optimization_id", res.ID,
		"optimization_type", res.OptimizationType,
		"score_before", res.QualityScoreBefore,
		"score_after", res.QualityScoreAfter,
	)
	s.center.Success("Optimization complete",
		fmt.Sprintf("Quality score %.1f → %.1f", res.QualityScoreBefore, res.QualityScoreAfter))
	return res, nil
}

// Evaluate scores prompt without rewriting it.
func (s *OptimizerService) Evaluate(ctx context.Context, prompt string) (model.QualityEvaluation, error) {
	req := model.EvaluationRequest{Prompt: prompt}
	if err := req.Validate(); err != nil {
		return model.QualityEvaluation{}, s.rejected(err)
	}

	s.center.SetLoading(LoadingEvaluate, true)
	defer s.center.SetLoading(LoadingEvaluate, false)

	eval, err := s.api.Evaluate(ctx, req)
	if err != nil {
		return model.QualityEvaluation{}, fmt.Errorf("evaluate prompt: %w", err)
	}
	return eval, nil
}

// History lists past optimizations.
func (s *OptimizerService) History(ctx context.Context, q model.HistoryQuery) (model.HistoryPage, error) {
	if err := q.Validate(); err != nil {
		return model.HistoryPage{}, s.rejected(err)
	}

	s.center.SetLoading(LoadingHistory, true)
	defer s.center.SetLoading(LoadingHistory, false)

	page, err := s.api.History(ctx, q)
	if err != nil {
		return model.HistoryPage{}, fmt.Errorf("list history: %w", err)
	}
	return page, nil
}

// Health reports backend health.
func (s *OptimizerService) Health(ctx context.Context) (model.Health, error) {
	h, err := s.api.Health(ctx)
	if err != nil {
		return model.Health{}, fmt.Errorf("check health: %w", err)
	}
	return h, nil
}

// rejected turns a local validation failure into the normalized error shape and reports it
// once, the same way the pipeline reports backend validation failures.
func (s *OptimizerService) rejected(err error) *apperrors.APIError {
	apiErr := apperrors.Validationf("%s", err.Error())
	s.center.SetLastError(apiErr)
	s.center.Add(notification.Input{
		Type:      notification.TypeWarning,
		Title:     "Validation failed",
		Message:   apiErr.Message,
		ErrorKind: string(apiErr.Kind),
	})
	return apiErr
}
