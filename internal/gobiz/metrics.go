package gobiz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	vendorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobiz_vendor_requests_total",
			Help: "Authenticated vendor requests by outcome",
		},
		[]string{"outcome"},
	)

	vendorAuthRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gobiz_vendor_auth_retries_total",
			Help: "Requests replayed once after a 401 refresh",
		},
	)

	transactionsDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gobiz_transactions_discovered_total",
			Help: "New transactions surfaced by the journal poller",
		},
	)

	pollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobiz_poll_cycles_total",
			Help: "Journal poll cycles by outcome",
		},
		[]string{"outcome"},
	)
)
