package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("groupguard.engine")

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "messages_total",
		Help:      "Inbound group messages by outcome (buffered, self, whitelisted, group_disabled).",
	}, []string{"outcome"})

	messagesTrimmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "messages_trimmed_total",
		Help:      "Messages dropped by the recent-message window.",
	})

	messagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "messages_expired_total",
		Help:      "Messages dropped by the expiry sweep.",
	})

	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "triggers_total",
		Help:      "Batch cycles requested, by source.",
	}, []string{"source"})

	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "cycles_total",
		Help:      "Completed batch cycles by outcome.",
	}, []string{"outcome"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "groupguard",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of a batch cycle, including the analyzer call.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "verdicts_total",
		Help:      "Analyzer verdicts by guardrail result.",
	}, []string{"result"})

	enforcementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupguard",
		Name:      "enforcements_total",
		Help:      "Enforcement gateway calls by outcome.",
	}, []string{"outcome"})
)
