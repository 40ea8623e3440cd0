package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustid_recovery_outcomes_total",
		Help: "Recovery sessions reaching a terminal state, by channel and state.",
	}, []string{"channel", "state"})

	faceLookupRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustid_recovery_face_lookup_rejections_total",
		Help: "Face lookups refused because no biometric enrolment exists.",
	})

	sweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustid_recovery_sessions_swept_total",
		Help: "Expired recovery sessions removed by the sweeper.",
	})
)
