package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records turn and model-call outcomes.
type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram
	modelCalls   *prometheus.CounterVec
	iterations   prometheus.Histogram
}

// NewMetrics creates agent metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kairos",
			Subsystem: "agent",
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kairos",
			Subsystem: "agent",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a conversation turn.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kairos",
			Subsystem: "agent",
			Name:      "model_calls_total",
			Help:      "Model invocations by outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kairos",
			Subsystem: "agent",
			Name:      "tool_iterations",
			Help:      "Tool rounds per completed turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 16},
		}),
	}
	reg.MustRegister(m.turns, m.turnDuration, m.modelCalls, m.iterations)
	return m
}

func (m *Metrics) turn(outcome string, iterations int, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
	if outcome == "done" {
		m.iterations.Observe(float64(iterations))
	}
}

func (m *Metrics) modelCall(outcome string) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(outcome).Inc()
}
