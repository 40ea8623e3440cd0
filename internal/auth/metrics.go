package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var logins = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustid_logins_total",
	Help: "Login attempts by outcome.",
}, []string{"outcome"})
