package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObservePhaseRecordsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := c.Timer(PhasePrepare, ExecutorJailed)
	done(OutcomeOK)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var sawCounter, sawHistogram bool
	for _, fam := range families {
		switch fam.GetName() {
		case "firecracker_sdk_phase_total":
			sawCounter = true
			assertHasLabel(t, fam, "outcome", "ok")
		case "firecracker_sdk_phase_duration_seconds":
			sawHistogram = true
		}
	}
	if !sawCounter || !sawHistogram {
		t.Fatalf("expected both counter and histogram families, got %d families", len(families))
	}
}

func assertHasLabel(t *testing.T, fam *dto.MetricFamily, name, value string) {
	t.Helper()
	for _, m := range fam.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return
			}
		}
	}
	t.Fatalf("expected metric family %s to have label %s=%s", fam.GetName(), name, value)
}
