package mid

import (
	"context"
	"net/http"

	"github.com/cipherledger/cipherledger/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cipherledger_web_requests_total",
		Help: "Total API requests handled.",
	})

	metricsErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cipherledger_web_errors_total",
		Help: "Total API requests that ended in an error.",
	})

	metricsPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cipherledger_web_panics_total",
		Help: "Total API requests that panicked.",
	})
)

// Metrics updates the request counters for every request routed through it.
func Metrics() web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			metricsRequests.Inc()

			err := handler(ctx, w, r)
			if err != nil {
				metricsErrors.Inc()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return m
}
