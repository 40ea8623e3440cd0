package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustid_token_redemptions_total",
	Help: "Authorization token redemption attempts by outcome.",
}, []string{"outcome"})

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
