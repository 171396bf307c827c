// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/cipherledger/cipherledger/app/services/simulator/handlers/v1/simgrp"
	"github.com/cipherledger/cipherledger/business/data/archive"
	"github.com/cipherledger/cipherledger/foundation/events"
	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	"github.com/cipherledger/cipherledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Sim     *state.Simulator
	Archive *archive.Store
	Evts    *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	sgh := simgrp.New(cfg.Log, cfg.Sim, cfg.Archive, cfg.Evts)

	app.Handle(http.MethodPost, version, "/simulations", sgh.Run)
	app.Handle(http.MethodGet, version, "/simulations/:id", sgh.QueryByID)
	app.Handle(http.MethodGet, version, "/events", sgh.Events)
}
