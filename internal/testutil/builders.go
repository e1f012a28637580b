// Package testutil provides testing utilities and helpers for the promptopt client.
package testutil

import (
	"time"

	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	"github.com/target/promptopt-client/internal/domain/model"
)

// UserBuilder provides a fluent interface for building User values for testing.
type UserBuilder struct {
	user domainauth.User
}

// NewUser creates a new UserBuilder with sensible defaults.
func NewUser() *UserBuilder {
	return &UserBuilder{
		user: domainauth.User{
			ID:        1,
			Username:  "alice",
			Email:     "alice@example.com",
			IsActive:  true,
			CreatedAt: TestTime(),
		},
	}
}

// WithID sets the user ID.
func (b *UserBuilder) WithID(id int64) *UserBuilder {
	b.user.ID = id
	return b
}

// WithUsername sets the username and derives the email from it.
func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.user.Username = username
	b.user.Email = username + "@example.com"
	return b
}

// WithFullName sets the display name.
func (b *UserBuilder) WithFullName(name string) *UserBuilder {
	b.user.FullName = name
	return b
}

// Superuser marks the user as a superuser.
func (b *UserBuilder) Superuser() *UserBuilder {
	b.user.IsSuperuser = true
	return b
}

// Build returns the constructed User.
func (b *UserBuilder) Build() domainauth.User {
	return b.user
}

// Ptr returns a pointer to a copy of the constructed User.
func (b *UserBuilder) Ptr() *domainauth.User {
	u := b.user
	return &u
}

// ResultBuilder provides a fluent interface for building OptimizationResult values.
type ResultBuilder struct {
	res model.OptimizationResult
}

// NewResult creates a new ResultBuilder with sensible defaults.
func NewResult() *ResultBuilder {
	return &ResultBuilder{
		res: model.OptimizationResult{
			ID:                 "opt-1",
			OriginalPrompt:     "write a sql query",
			OptimizedPrompt:    "Write a PostgreSQL query that returns ...",
			QualityScoreBefore: 4.2,
			QualityScoreAfter:  8.7,
			OptimizationType:   model.OptimizationCode,
			Improvements: []model.Improvement{
				{Type: "specificity", Description: "named the SQL dialect"},
			},
			ProcessingTime: 1.25,
			TokenUsage: &model.TokenUsage{
				PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200, CostEstimate: 0.0004,
			},
			CreatedAt: TestTime(),
		},
	}
}

// WithID sets the result ID.
func (b *ResultBuilder) WithID(id string) *ResultBuilder {
	b.res.ID = id
	return b
}

// WithType sets the optimization type.
func (b *ResultBuilder) WithType(t model.OptimizationType) *ResultBuilder {
	b.res.OptimizationType = t
	return b
}

// WithScores sets the before and after quality scores.
func (b *ResultBuilder) WithScores(before, after float64) *ResultBuilder {
	b.res.QualityScoreBefore = before
	b.res.QualityScoreAfter = after
	return b
}

// WithCreatedAt sets the creation time.
func (b *ResultBuilder) WithCreatedAt(t time.Time) *ResultBuilder {
	b.res.CreatedAt = t
	return b
}

// Build returns the constructed OptimizationResult.
func (b *ResultBuilder) Build() model.OptimizationResult {
	return b.res
}
