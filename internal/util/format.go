// Package util hosts display helpers shared by the CLI renderers.
package util //nolint:revive // package name util hosts shared formatting helpers

import (
	"math"
	"time"
)

// Seconds converts a backend-reported processing time in fractional seconds to a Duration.
// Negative, NaN and infinite inputs yield zero.
func Seconds(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// FormatProcessingDuration formats d for display. Zero means unknown and renders as "—";
// anything at or above a millisecond is truncated to milliseconds.
func FormatProcessingDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "—"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}
