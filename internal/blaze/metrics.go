package blaze

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "blaze"

// Metrics are the Prometheus collectors updated by the dispatcher and the
// connection handling code.
type Metrics struct {
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	commandErrors    *prometheus.CounterVec
	panicsTotal      prometheus.Counter
	packetsSent      prometheus.Counter
	activeSessions   *prometheus.GaugeVec
	activeGames      prometheus.GaugeFunc
	activePlaygroups prometheus.GaugeFunc
}

// NewMetrics registers the server's collectors with reg. counts reports the
// current number of games and playgroups.
func NewMetrics(reg prometheus.Registerer, counts func() (games, playgroups int)) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Total number of commands dispatched",
		}, []string{"component", "command"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "command_duration_seconds",
			Help:      "Command handling duration in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"component", "command"}),

		commandErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "command_errors_total",
			Help:      "Total number of error replies by error code",
		}, []string{"component", "command", "code"}),

		panicsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handler_panics_total",
			Help:      "Total number of handler panics recovered",
		}),

		packetsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_sent_total",
			Help:      "Total number of packets written to clients",
		}),

		activeSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of connected sessions by endpoint",
		}, []string{"endpoint"}),

		activeGames: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_games",
			Help:      "Number of games in the registry",
		}, func() float64 {
			games, _ := counts()
			return float64(games)
		}),

		activePlaygroups: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_playgroups",
			Help:      "Number of playgroups in the registry",
		}, func() float64 {
			_, playgroups := counts()
			return float64(playgroups)
		}),
	}
}

// PacketSent counts a packet written to a client.
func (m *Metrics) PacketSent() {
	if m != nil {
		m.packetsSent.Inc()
	}
}

// SessionOpened and SessionClosed track connected sessions per endpoint.
func (m *Metrics) SessionOpened(endpoint string) {
	if m != nil {
		m.activeSessions.WithLabelValues(endpoint).Inc()
	}
}

func (m *Metrics) SessionClosed(endpoint string) {
	if m != nil {
		m.activeSessions.WithLabelValues(endpoint).Dec()
	}
}
