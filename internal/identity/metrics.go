package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trustid_identities_registered_total",
		Help: "Identities registered, by kind.",
	}, []string{"kind"})

	phraseCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trustid_recovery_phrase_collisions_total",
		Help: "Recovery phrases regenerated after a uniqueness collision.",
	})
)
