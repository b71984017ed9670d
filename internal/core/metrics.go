package core

import (
	"time"

	"orthoinfer/internal/inference"
)

// MetricsRecorder receives per-species run outcomes.
type MetricsRecorder interface {
	ObserveSpecies(target string, ledger *inference.Ledger, elapsed time.Duration)
	ConfigurationError(target string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSpecies(string, *inference.Ledger, time.Duration) {}
func (noopMetrics) ConfigurationError(string)                              {}
