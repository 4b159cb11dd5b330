package gateway

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records HTTP traffic and websocket occupancy.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers gateway metrics with reg. The gauges read the live
// client registry on every scrape.
func NewMetrics(reg prometheus.Registerer, clients *ClientRegistry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kairos",
			Subsystem: "gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.requests,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kairos",
			Subsystem: "gateway",
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}, func() float64 { return float64(clients.Count()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "kairos",
			Subsystem: "gateway",
			Name:      "active_turns",
			Help:      "Chat turns in flight over websocket.",
		}, func() float64 { return float64(clients.ActiveTurns()) }),
	)
	return m
}

func (m *Metrics) request(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
