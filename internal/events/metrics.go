package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disciplinator"

// MetricsSink counts events and the value they move.
type MetricsSink struct {
	events      *prometheus.CounterVec
	deposited   prometheus.Counter
	refunded    prometheus.Counter
	penalized   prometheus.Counter
	distributed prometheus.Counter
	claimed     prometheus.Counter
	paused      prometheus.Gauge
}

// NewMetricsSink creates the collectors and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	m := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Lifecycle events emitted, by kind.",
		}, []string{"kind"}),
		deposited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deposited_total",
			Help:      "Deposits escrowed by challenge creation, in asset base units.",
		}),
		refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunded_total",
			Help:      "Refunds paid at finalization.",
		}),
		penalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_total",
			Help:      "Penalties retained at finalization.",
		}),
		distributed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributed_total",
			Help:      "Value released by epoch distribution.",
		}),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_claimed_total",
			Help:      "Rewards paid to participants.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 while challenge creation is paused.",
		}),
	}

	for _, c := range []prometheus.Collector{m.events, m.deposited, m.refunded, m.penalized, m.distributed, m.claimed, m.paused} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsSink) Emit(_ context.Context, env Envelope) error {
	m.events.WithLabelValues(env.Event.Kind()).Inc()

	switch e := env.Event.(type) {
	case ChallengeCreated:
		m.deposited.Add(float64(e.Deposit))
	case ChallengeFinalized:
		m.refunded.Add(float64(e.Refund))
		m.penalized.Add(float64(e.Penalty))
	case RewardsDistributed:
		m.distributed.Add(float64(e.Available))
	case RewardsClaimed:
		m.claimed.Add(float64(e.Amount))
	case ProtocolPaused:
		m.paused.Set(1)
	case ProtocolUnpaused:
		m.paused.Set(0)
	}
	return nil
}
