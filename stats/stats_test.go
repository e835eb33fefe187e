package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestTransportCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewTransport(reg)

	tr.FramesTx.Inc()
	tr.FramesTx.Inc()
	tr.BytesTx.Add(128)

	var m dto.Metric
	if err := tr.FramesTx.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Fatalf("FramesTx = %v, want 2", got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewTransport(reg)

	tr.ActiveSessions.Set(3)
	tr.ActiveSessions.Dec()

	var m dto.Metric
	if err := tr.ActiveSessions.Write(&m); err != nil {
		t.Fatal(err)
	}
	if got := m.GetGauge().GetValue(); got != 2 {
		t.Fatalf("ActiveSessions = %v, want 2", got)
	}
}
