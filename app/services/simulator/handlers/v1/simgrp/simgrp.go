// Package simgrp maintains the group of handlers for simulation access.
package simgrp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cipherledger/cipherledger/business/data/archive"
	"github.com/cipherledger/cipherledger/business/web/errs"
	"github.com/cipherledger/cipherledger/foundation/events"
	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	"github.com/cipherledger/cipherledger/foundation/web"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Handlers manages the set of simulation endpoints.
type Handlers struct {
	log     *zap.SugaredLogger
	sim     *state.Simulator
	store   *archive.Store
	evts    *events.Events
	ws      websocket.Upgrader
	mu      sync.RWMutex
	results map[string]*state.Result
}

// New constructs the Handlers. The archive store is optional; without it,
// completed runs are only available from the in-memory cache.
func New(log *zap.SugaredLogger, sim *state.Simulator, store *archive.Store, evts *events.Events) *Handlers {
	return &Handlers{
		log:     log,
		sim:     sim,
		store:   store,
		evts:    evts,
		results: make(map[string]*state.Result),
	}
}

// Run executes a simulation over the requested number of recent blocks and
// responds with the full result document.
func (h *Handlers) Run(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ns NewSimulation
	if err := web.Decode(r, &ns); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	result, err := h.sim.Run(ctx, ns.NumBlocks)
	if err != nil {
		return errs.NewTrusted(errors.Wrap(err, "running simulation"), http.StatusBadGateway)
	}

	h.mu.Lock()
	h.results[result.RunID] = result
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.Save(ctx, result); err != nil {
			h.log.Errorw("archive", "ERROR", err, "runid", result.RunID)
		}
	}

	return web.Respond(ctx, w, result, http.StatusOK)
}

// QueryByID returns a previously completed run by its id. The in-memory
// cache is checked before the archive.
func (h *Handlers) QueryByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	runID := web.Param(r, "id")

	h.mu.RLock()
	result, exists := h.results[runID]
	h.mu.RUnlock()

	if exists {
		return web.Respond(ctx, w, result, http.StatusOK)
	}

	if h.store != nil {
		result, err := h.store.QueryByID(ctx, runID)
		switch {
		case errors.Is(err, archive.ErrNotFound):
			return errs.NewTrusted(err, http.StatusNotFound)
		case err != nil:
			return errors.Wrapf(err, "run id[%s]", runID)
		}
		return web.Respond(ctx, w, result, http.StatusOK)
	}

	return errs.NewTrusted(archive.ErrNotFound, http.StatusNotFound)
}

// Events handles a web socket to provide simulation events to a client.
func (h *Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.ws.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.ws.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.evts.Acquire(v.TraceID)
	defer h.evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
