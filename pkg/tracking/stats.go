package tracking

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the tracking metrics for a single tracker instance. Each
// tracker carries its own registry so concurrent trackers never fight over
// metric registration.
type Collector struct {
	reg *prometheus.Registry

	SnapshotsReceived prometheus.Counter
	SnapshotsSkipped  prometheus.Counter
	DecodeErrors      prometheus.Counter

	CandidatesAccepted prometheus.Counter
	CandidatesRejected *prometheus.CounterVec // gate label: tenant|rate|accuracy|displacement

	Publishes      prometheus.Counter
	ActiveVehicles prometheus.Gauge
	ReapedVehicles prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		SnapshotsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_snapshots_received_total",
			Help: "Total feed snapshots received.",
		}),
		SnapshotsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_snapshots_skipped_total",
			Help: "Snapshots skipped because the payload was identical to the previous one.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_decode_errors_total",
			Help: "Feed entries skipped because they failed to decode.",
		}),
		CandidatesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_candidates_accepted_total",
			Help: "Position reports accepted by the significance filter.",
		}),
		CandidatesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_candidates_rejected_total",
			Help: "Position reports rejected, by gate.",
		}, []string{"gate"}),
		Publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_publishes_total",
			Help: "Vehicle list publishes delivered to consumers.",
		}),
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_vehicles",
			Help: "Vehicles currently inside the activity window.",
		}),
		ReapedVehicles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_reaped_vehicles_total",
			Help: "Vehicles aged out by the staleness reaper.",
		}),
	}

	reg.MustRegister(
		c.SnapshotsReceived, c.SnapshotsSkipped, c.DecodeErrors,
		c.CandidatesAccepted, c.CandidatesRejected,
		c.Publishes, c.ActiveVehicles, c.ReapedVehicles,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
