package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "chat_room"

// ChatMetrics aggregates the counters exposed on /metrics.
// Each instance owns its registry so tests never share global state.
type ChatMetrics struct {
	Registry *prometheus.Registry

	Registrations    prometheus.Counter
	Heartbeats       prometheus.Counter
	MessagesSent     *prometheus.CounterVec
	Evictions        prometheus.Counter
	EvictionFailures prometheus.Counter
	Sweeps           prometheus.Counter
	SweepDuration    prometheus.Histogram
	Requests         *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

func NewChatMetrics() *ChatMetrics {
	m := &ChatMetrics{
		Registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Participants that entered the room.",
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Accepted status heartbeats.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages appended by participants, by type.",
		}, []string{"type"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Idle participants removed from the room.",
		}),
		EvictionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eviction_failures_total",
			Help:      "Evictions that failed to remove a participant or record its departure.",
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed eviction passes.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of an eviction pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations,
		m.Heartbeats,
		m.MessagesSent,
		m.Evictions,
		m.EvictionFailures,
		m.Sweeps,
		m.SweepDuration,
		m.Requests,
		m.RateLimited,
	)
	return m
}
