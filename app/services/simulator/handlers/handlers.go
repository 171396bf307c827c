// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/cipherledger/cipherledger/app/services/simulator/handlers/debug/checkgrp"
	v1 "github.com/cipherledger/cipherledger/app/services/simulator/handlers/v1"
	"github.com/cipherledger/cipherledger/business/data/archive"
	"github.com/cipherledger/cipherledger/business/web/mid"
	"github.com/cipherledger/cipherledger/foundation/events"
	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	"github.com/cipherledger/cipherledger/foundation/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown chan os.Signal
	Log      *zap.SugaredLogger
	Sim      *state.Simulator
	Archive  *archive.Store
	Evts     *events.Events
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests if config has been provided.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	// Load the v1 routes.
	v1.Routes(app, v1.Config{
		Log:     cfg.Log,
		Sim:     cfg.Sim,
		Archive: cfg.Archive,
		Evts:    cfg.Evts,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard library
// into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes, the prometheus
// scrape endpoint and the custom debug application routes for the service.
func DebugMux(build string, log *zap.SugaredLogger, store *archive.Store) http.Handler {
	mux := DebugStandardLibraryMux()

	mux.Handle("/debug/metrics", promhttp.Handler())

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build:   build,
		Log:     log,
		Archive: store,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
