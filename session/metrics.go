package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Coordinator's prometheus instruments. Metrics built by
// newMetrics with a nil registerer are still safe to use; the counters
// just aren't exported anywhere.
type Metrics struct {
	sessionsCreated   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsAborted   prometheus.Counter
	sessionsErrored   prometheus.Counter
	bonusInterleaves  prometheus.Counter
	commandsAccepted  prometheus.Counter
	sendErrors        prometheus.Counter
	framesReceived    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "session", Name: "created_total",
			Help: "Sessions created by a public Coordinator operation.",
		}),
		sessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "session", Name: "completed_total",
			Help: "Sessions that reached state Completed.",
		}),
		sessionsAborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "session", Name: "aborted_total",
			Help: "Sessions that reached state Aborted or TerminalAborted.",
		}),
		sessionsErrored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "session", Name: "errored_total",
			Help: "Sessions that reached state Error.",
		}),
		bonusInterleaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "session", Name: "bonus_interleaves_total",
			Help: "Bonus-card interleaves handled during a running Payment.",
		}),
		commandsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "transport", Name: "commands_accepted_total",
			Help: "Sends that received ACK/STX as their first response byte.",
		}),
		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "transport", Name: "send_errors_total",
			Help: "Engine errors reported to the Coordinator: reader/port CommunicationErrors and send TimeoutErrors.",
		}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ecrterm", Subsystem: "transport", Name: "frames_received_total",
			Help: "Logical payloads assembled and dispatched by the reader loop.",
		}),
	}
}
