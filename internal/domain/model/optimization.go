// Package model defines the request and response types exchanged with the prompt optimization backend.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxPromptLen is the maximum allowed prompt length in characters.
	maxPromptLen = 10000
	// maxContextLen is the maximum allowed user context length in characters.
	maxContextLen = 2000
)

// OptimizationType selects the optimization strategy applied by the backend.
type OptimizationType string

const (
	OptimizationGeneral  OptimizationType = "general"
	OptimizationCode     OptimizationType = "code"
	OptimizationWriting  OptimizationType = "writing"
	OptimizationAnalysis OptimizationType = "analysis"
)

// OptimizationTypes lists the known optimization types.
func OptimizationTypes() []OptimizationType {
	return []OptimizationType{OptimizationGeneral, OptimizationCode, OptimizationWriting, OptimizationAnalysis}
}

// Valid reports whether t is a known optimization type.
func (t OptimizationType) Valid() bool {
	for _, known := range OptimizationTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseOptimizationType parses s, defaulting to general when empty.
func ParseOptimizationType(s string) (OptimizationType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OptimizationGeneral, nil
	}
	t := OptimizationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown optimization type %q", s)
	}
	return t, nil
}

// OptimizationRequest is the payload submitted to the optimize endpoint.
type OptimizationRequest struct {
	OriginalPrompt   string           `json:"original_prompt"`
	OptimizationType OptimizationType `json:"optimization_type"`
	UserContext      string           `json:"user_context,omitempty"`
}

// Validate validates the OptimizationRequest fields.
func (r *OptimizationRequest) Validate() error {
	if err := validatePrompt(r.OriginalPrompt); err != nil {
		return err
	}
	if !r.OptimizationType.Valid() {
		return fmt.Errorf("optimization type %q is not supported", r.OptimizationType)
	}
	if utf8.RuneCountInString(r.UserContext) > maxContextLen {
		return fmt.Errorf("user context cannot exceed %d characters", maxContextLen)
	}
	return nil
}

// EvaluationRequest is the payload submitted to the evaluate endpoint.
type EvaluationRequest struct {
	Prompt string `json:"prompt"`
}

// Validate validates the EvaluationRequest fields.
func (r *EvaluationRequest) Validate() error {
	return validatePrompt(r.Prompt)
}

func validatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt is required and cannot be empty")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLen {
		return fmt.Errorf("prompt cannot exceed %d characters", maxPromptLen)
	}
	return nil
}

// Improvement describes a single change applied to the prompt.
type Improvement struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	BeforeText  string `json:"before_text,omitempty"`
	AfterText   string `json:"after_text,omitempty"`
}

// TokenUsage reports model token consumption for one optimization.
type TokenUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostEstimate     float64 `json:"cost_estimate"`
}

// OptimizationResult is the optimize endpoint response.
type OptimizationResult struct {
	ID                 string           `json:"id"`
	OriginalPrompt     string           `json:"original_prompt"`
	OptimizedPrompt    string           `json:"optimized_prompt"`
	QualityScoreBefore float64          `json:"quality_score_before"`
	QualityScoreAfter  float64          `json:"quality_score_after"`
	OptimizationType   OptimizationType `json:"optimization_type"`
	Improvements       []Improvement    `json:"improvements"`
	ProcessingTime     float64          `json:"processing_time"`
	TokenUsage         *TokenUsage      `json:"token_usage,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ScoreDelta returns the quality score gained by the optimization.
func (r OptimizationResult) ScoreDelta() float64 {
	return r.QualityScoreAfter - r.QualityScoreBefore
}

// DetailedScores breaks a quality evaluation down by dimension.
type DetailedScores struct {
	Clarity       float64 `json:"clarity"`
	Completeness  float64 `json:"completeness"`
	Structure     float64 `json:"structure"`
	Specificity   float64 `json:"specificity"`
	Actionability float64 `json:"actionability"`
}

// QualityEvaluation is the evaluate endpoint response.
type QualityEvaluation struct {
	OverallScore   float64        `json:"overall_score"`
	DetailedScores DetailedScores `json:"detailed_scores"`
	Issues         []string       `json:"issues"`
	Suggestions    []string       `json:"suggestions"`
	ProcessingTime float64        `json:"processing_time"`
}
