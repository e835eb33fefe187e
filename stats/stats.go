// Package stats exposes transport-level counters and gauges through a
// prometheus/client_golang registry, replacing the teacher's StatsD
// reporter: the teacher already depends on prometheus/client_golang for its
// target-facing metrics, so this follows that house choice rather than
// bringing back a StatsD client or hand-rolling counters.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transport is the set of counters/gauges one session's transport layer
// updates: frames/fragments sent and received, byte volume, duplicate
// drops, reassembly overflows, and the currently-open session/peer count
// (spec.md §4.5/§4.6/§4.9's metrics surface).
type Transport struct {
	FramesTx          prometheus.Counter
	FramesRx          prometheus.Counter
	FragmentsTx       prometheus.Counter
	FragmentsRx       prometheus.Counter
	BytesTx           prometheus.Counter
	BytesRx           prometheus.Counter
	DroppedDuplicates prometheus.Counter
	ReassemblyOverflow prometheus.Counter
	ActiveSessions    prometheus.Gauge
	ActivePeers       prometheus.Gauge
}

// NewTransport registers a fresh set of transport metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with other sessions'
// metrics on the default registry.
func NewTransport(reg prometheus.Registerer) *Transport {
	t := &Transport{
		FramesTx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "frames_tx_total",
			Help: "Frame messages sent.",
		}),
		FramesRx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "frames_rx_total",
			Help: "Frame messages received.",
		}),
		FragmentsTx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "fragments_tx_total",
			Help: "Fragment messages sent.",
		}),
		FragmentsRx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "fragments_rx_total",
			Help: "Fragment messages received.",
		}),
		BytesTx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "bytes_tx_total",
			Help: "Bytes written to links.",
		}),
		BytesRx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "bytes_rx_total",
			Help: "Bytes read from links.",
		}),
		DroppedDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "dropped_duplicates_total",
			Help: "Reliable frames dropped as already-seen by SN ordering.",
		}),
		ReassemblyOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "reassembly_overflow_total",
			Help: "Fragment reassembly buffers discarded for exceeding their ceiling.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "active_sessions",
			Help: "Unicast transport sessions currently open.",
		}),
		ActivePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zenoh", Subsystem: "transport", Name: "active_peers",
			Help: "Multicast peers currently tracked.",
		}),
	}
	reg.MustRegister(t.FramesTx, t.FramesRx, t.FragmentsTx, t.FragmentsRx,
		t.BytesTx, t.BytesRx, t.DroppedDuplicates, t.ReassemblyOverflow,
		t.ActiveSessions, t.ActivePeers)
	return t
}
