// Package metrics records what an allocation run saw and did, for export
// through the node exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the glidein gauges. It is separate from the default
// registry so textfiles contain nothing else.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(idleJobs)
	Registry.MustRegister(existingGlideins)
	Registry.MustRegister(targetGlideins)
	Registry.MustRegister(submittedGlideins)
	Registry.MustRegister(lastRun)
}

var idleJobs = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "glidein",
		Subsystem: "condor",
		Name:      "idle_jobs",
		Help:      "Idle HTCondor jobs of the user seen while sizing, by class.",
	},
	[]string{"class"},
)

var existingGlideins = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "glidein",
		Subsystem: "glideins",
		Name:      "existing",
		Help:      "Glide-in jobs already in the batch queue, by job name and state.",
	},
	[]string{"name", "state"},
)

var targetGlideins = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "glidein",
		Subsystem: "glideins",
		Name:      "target",
		Help:      "Glide-ins wanted for the current queue pressure, by job name.",
	},
	[]string{"name"},
)

var submittedGlideins = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "glidein",
		Subsystem: "glideins",
		Name:      "submitted",
		Help:      "Glide-ins submitted by the last run, by job name.",
	},
	[]string{"name"},
)

var lastRun = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "glidein",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last allocation run finished.",
	},
)

// IdleJobs records the number of idle jobs of a class ("large" or "small").
func IdleJobs(class string, n int) {
	idleJobs.WithLabelValues(class).Set(float64(n))
}

// ExistingGlideins records glide-ins named name in state ("R" or "PD", or
// "any" when counted without a state filter).
func ExistingGlideins(name, state string, n int) {
	existingGlideins.WithLabelValues(name, state).Set(float64(n))
}

// TargetGlideins records the wanted number of glide-ins named name.
func TargetGlideins(name string, n int) {
	targetGlideins.WithLabelValues(name).Set(float64(n))
}

// SubmittedGlideins counts one accepted submission of a glide-in named name.
func SubmittedGlideins(name string) {
	submittedGlideins.WithLabelValues(name).Inc()
}

// WriteTextfile stamps the run time and writes all gauges to path
// atomically.
func WriteTextfile(path string) error {
	lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, Registry)
}
