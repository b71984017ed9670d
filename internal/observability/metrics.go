// Package observability exposes Prometheus metrics for inference runs.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orthoinfer/internal/inference"
)

// RunCollector bundles the per-species run metrics.
type RunCollector struct {
	gatherer prometheus.Gatherer

	Reactions    *prometheus.CounterVec
	Skips        *prometheus.CounterVec
	ConfigErrors *prometheus.CounterVec
	Eligible     *prometheus.GaugeVec
	Inferred     *prometheus.GaugeVec
	Pathways     *prometheus.GaugeVec
	Durations    *prometheus.HistogramVec
}

// NewRunCollector registers the run metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	reactions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orthoinfer_reactions_total",
		Help: "Reactions handled per target species, labeled by outcome (created, reused, skipped).",
	}, []string{"target", "outcome"}))
	if err != nil {
		return nil, err
	}
	skips, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orthoinfer_skips_total",
		Help: "Skipped reactions per target species and reason.",
	}, []string{"target", "reason"}))
	if err != nil {
		return nil, err
	}
	configErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orthoinfer_configuration_errors_total",
		Help: "Species abandoned because their inputs could not be loaded.",
	}, []string{"target"}))
	if err != nil {
		return nil, err
	}
	eligible, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orthoinfer_eligible_reactions",
		Help: "Eligible reactions in the last run per target species.",
	}, []string{"target"}))
	if err != nil {
		return nil, err
	}
	inferred, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orthoinfer_inferred_reactions",
		Help: "Inferred reactions in the last run per target species.",
	}, []string{"target"}))
	if err != nil {
		return nil, err
	}
	pathways, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orthoinfer_inferred_pathways",
		Help: "Inferred pathways in the last run per target species.",
	}, []string{"target"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orthoinfer_species_duration_seconds",
		Help:    "Wall time spent inferring one target species.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"target"}))
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:     gatherer,
		Reactions:    reactions,
		Skips:        skips,
		ConfigErrors: configErrors,
		Eligible:     eligible,
		Inferred:     inferred,
		Pathways:     pathways,
		Durations:    durations,
	}, nil
}

// ObserveSpecies records the ledger of one finished species.
func (c *RunCollector) ObserveSpecies(target string, l *inference.Ledger, elapsed time.Duration) {
	if c == nil || l == nil {
		return
	}
	c.Reactions.WithLabelValues(target, "created").Add(float64(l.Inferred - l.Reused))
	c.Reactions.WithLabelValues(target, "reused").Add(float64(l.Reused))
	skipped := 0
	for _, reason := range l.SkipReasons() {
		n := l.Skips[reason]
		skipped += n
		c.Skips.WithLabelValues(target, string(reason)).Add(float64(n))
	}
	c.Reactions.WithLabelValues(target, "skipped").Add(float64(skipped))
	c.Eligible.WithLabelValues(target).Set(float64(l.Eligible))
	c.Inferred.WithLabelValues(target).Set(float64(l.Inferred))
	c.Pathways.WithLabelValues(target).Set(float64(l.Pathways))
	c.Durations.WithLabelValues(target).Observe(elapsed.Seconds())
}

// ConfigurationError counts a species abandoned before translation.
func (c *RunCollector) ConfigurationError(target string) {
	if c == nil {
		return
	}
	c.ConfigErrors.WithLabelValues(target).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register adds collector to reg, returning the already registered
// collector of the same type when present.
func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector %T already registered with incompatible type", collector)
		}
		var zero C
		return zero, err
	}
	return collector, nil
}
