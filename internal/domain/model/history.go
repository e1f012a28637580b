package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHistoryLimit is the page size used when none is given.
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps the page size accepted by the backend.
	MaxHistoryLimit = 100
)

// HistoryQuery groups parameters for listing past optimizations with optional filters.
type HistoryQuery struct {
	Skip             int
	Limit            int
	OptimizationType *OptimizationType // Optional filter by type
	SearchKeyword    string            // Optional full-text filter
	StartDate        *time.Time        // Optional lower bound on created_at
	EndDate          *time.Time        // Optional upper bound on created_at
}

// Validate validates the HistoryQuery fields.
func (q *HistoryQuery) Validate() error {
	if q.Skip < 0 {
		return fmt.Errorf("skip cannot be negative")
	}
	if q.Limit < 0 || q.Limit > MaxHistoryLimit {
		return fmt.Errorf("limit must be between 0 and %d", MaxHistoryLimit)
	}
	if q.OptimizationType != nil && !q.OptimizationType.Valid() {
		return fmt.Errorf("optimization type %q is not supported", *q.OptimizationType)
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return fmt.Errorf("end date must not precede start date")
	}
	return nil
}

// Values encodes the query as URL parameters.
func (q HistoryQuery) Values() url.Values {
	limit := q.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	v := url.Values{}
	v.Set("skip", strconv.Itoa(q.Skip))
	v.Set("limit", strconv.Itoa(limit))
	if q.OptimizationType != nil {
		v.Set("optimization_type", string(*q.OptimizationType))
	}
	if kw := strings.TrimSpace(q.SearchKeyword); kw != "" {
		v.Set("search_keyword", kw)
	}
	if q.StartDate != nil {
		v.Set("start_date", q.StartDate.UTC().Format(time.RFC3339))
	}
	if q.EndDate != nil {
		v.Set("end_date", q.EndDate.UTC().Format(time.RFC3339))
	}
	return v
}

// HistoryPage is one page of past optimizations.
type HistoryPage struct {
	Items   []OptimizationResult `json:"items"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Pages   int                  `json:"pages"`
	HasNext bool                 `json:"has_next"`
	HasPrev bool                 `json:"has_prev"`
}

// Health is the health endpoint response.
type Health struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
	Services  map[string]string `json:"services,omitempty"`
}

// Healthy reports whether the backend declared itself healthy.
func (h Health) Healthy() bool {
	switch strings.ToLower(h.Status) {
	case "ok", "healthy", "up":
		return true
	default:
		return false
	}
}
