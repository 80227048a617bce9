// Package metrics exposes Prometheus instrumentation for the conversation
// engine. The core packages report through small observer interfaces so they
// stay free of any metrics dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements conversation.Observer and indexer.PollObserver.
type Metrics struct {
	recomputes      *prometheus.CounterVec
	decryptFailures prometheus.Counter
	pollDuration    prometheus.Histogram
	pollErrors      prometheus.Counter
	messagesPosted  prometheus.Counter
	disputesRaised  prometheus.Counter
}

// New registers the engine's collectors with reg and returns the recorder.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		recomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openwork",
			Subsystem: "conversation",
			Name:      "recomputes_total",
			Help:      "View model recomputes, partitioned by whether the result was superseded before commit.",
		}, []string{"outcome"}),
		decryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "openwork",
			Subsystem: "conversation",
			Name:      "decrypt_failures_total",
			Help:      "Messages that could not be opened with the cached session keys.",
		}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "openwork",
			Subsystem: "indexer",
			Name:      "poll_duration_seconds",
			Help:      "Wall time of one indexer poll cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		pollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "openwork",
			Subsystem: "indexer",
			Name:      "poll_errors_total",
			Help:      "Indexer poll cycles that ended in an error.",
		}),
		messagesPosted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "openwork",
			Subsystem: "conversation",
			Name:      "messages_posted_total",
			Help:      "Sealed messages pinned and submitted to the contract.",
		}),
		disputesRaised: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "openwork",
			Subsystem: "conversation",
			Name:      "disputes_raised_total",
			Help:      "Dispute envelopes pinned and submitted to the contract.",
		}),
	}
}

// RecomputeDone records one finished view model recompute.
func (m *Metrics) RecomputeDone(stale bool) {
	outcome := "committed"
	if stale {
		outcome = "superseded"
	}
	m.recomputes.WithLabelValues(outcome).Inc()
}

// DecryptFailed records a message body that stayed sealed.
func (m *Metrics) DecryptFailed() {
	m.decryptFailures.Inc()
}

// PollDone records one indexer poll cycle.
func (m *Metrics) PollDone(d time.Duration, err error) {
	m.pollDuration.Observe(d.Seconds())
	if err != nil {
		m.pollErrors.Inc()
	}
}

// MessagePosted records a successfully submitted message.
func (m *Metrics) MessagePosted() {
	m.messagesPosted.Inc()
}

// DisputeRaised records a successfully submitted dispute.
func (m *Metrics) DisputeRaised() {
	m.disputesRaised.Inc()
}
