package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"orthoinfer/internal/inference"
)

func TestObserveSpeciesRecordsLedger(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}

	ledger := inference.NewLedger("Homo sapiens", "Mus musculus")
	ledger.Eligible = 4
	ledger.Inferred = 3
	ledger.Reused = 1
	ledger.Pathways = 2
	ledger.Skip(inference.ReasonChimeric)
	ledger.Skip(inference.ReasonParticipantSkipped)
	ledger.Skip(inference.ReasonParticipantSkipped)
	collector.ObserveSpecies("mmus", ledger, 2*time.Second)

	if got := testutil.ToFloat64(collector.Reactions.WithLabelValues("mmus", "created")); got != 2 {
		t.Fatalf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Reactions.WithLabelValues("mmus", "skipped")); got != 3 {
		t.Fatalf("skipped = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.Skips.WithLabelValues("mmus", "participant_skipped")); got != 2 {
		t.Fatalf("participant_skipped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Eligible.WithLabelValues("mmus")); got != 4 {
		t.Fatalf("eligible = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.Pathways.WithLabelValues("mmus")); got != 2 {
		t.Fatalf("pathways = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "orthoinfer_species_duration_seconds", map[string]string{"target": "mmus"}); count != 1 {
		t.Fatalf("duration sample_count = %d, want 1", count)
	}
}

func TestConfigurationErrorAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}
	collector.ConfigurationError("rnor")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `orthoinfer_configuration_errors_total{target="rnor"} 1`) {
		t.Fatalf("metrics output missing configuration error:\n%s", rec.Body.String())
	}
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.ConfigurationError("mmus")
	if got := testutil.ToFloat64(second.ConfigErrors.WithLabelValues("mmus")); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *RunCollector
	c.ObserveSpecies("mmus", inference.NewLedger("a", "b"), time.Second)
	c.ConfigurationError("mmus")
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
