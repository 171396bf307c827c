package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/cipherledger/cipherledger/app/services/simulator/handlers"
	"github.com/cipherledger/cipherledger/business/data/archive"
	"github.com/cipherledger/cipherledger/foundation/events"
	"github.com/cipherledger/cipherledger/foundation/ledger/crypt"
	"github.com/cipherledger/cipherledger/foundation/ledger/crypt/ckks"
	"github.com/cipherledger/cipherledger/foundation/ledger/crypt/plain"
	"github.com/cipherledger/cipherledger/foundation/ledger/datasource"
	"github.com/cipherledger/cipherledger/foundation/ledger/fetcher"
	"github.com/cipherledger/cipherledger/foundation/ledger/state"
	"github.com/cipherledger/cipherledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("SIMULATOR")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:120s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Source struct {
			BaseURL    string        `conf:"default:https://api-optimistic.etherscan.io"`
			APIKey     string        `conf:"mask"`
			Timeout    time.Duration `conf:"default:10s"`
			MaxRetries int           `conf:"default:3"`
			RetryDelay time.Duration `conf:"default:2s"`
		}
		Sim struct {
			Backend   string  `conf:"default:ckks"`
			Precision float64 `conf:"default:0.000001"`
		}
		DB struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,mask"`
			Host       string `conf:"default:localhost"`
			Name       string `conf:"default:cipherledger"`
			DisableTLS bool   `conf:"default:true"`
			Disabled   bool   `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "SIMULATOR"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Archive Support

	var store *archive.Store
	if !cfg.DB.Disabled {
		store, err = archive.New(archive.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("constructing archive: %w", err)
		}
		defer store.Close()

		log.Infow("startup", "status", "archive enabled", "host", cfg.DB.Host, "database", cfg.DB.Name)
	}

	// =========================================================================
	// Simulation Support

	// The ledger packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	source := datasource.New(datasource.Config{
		BaseURL: cfg.Source.BaseURL,
		APIKey:  cfg.Source.APIKey,
		Timeout: cfg.Source.Timeout,
	})

	fetch := fetcher.New(fetcher.Config{
		Source:     source,
		MaxRetries: cfg.Source.MaxRetries,
		RetryDelay: cfg.Source.RetryDelay,
		EvHandler:  ev,
	})

	capability, err := newCapability(cfg.Sim.Backend, cfg.Sim.Precision)
	if err != nil {
		return fmt.Errorf("constructing capability: %w", err)
	}
	log.Infow("startup", "status", "capability ready", "backend", cfg.Sim.Backend)

	sim, err := state.New(state.Config{
		Window:     fetch,
		Capability: capability,
		EvHandler:  ev,
	})
	if err != nil {
		return fmt.Errorf("constructing simulator: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, handlers.DebugMux(build, log, store)); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Sim:      sim,
		Archive:  store,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and shed load.
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// newCapability selects the secure-computation backend by name.
func newCapability(backend string, precision float64) (crypt.Capability, error) {
	switch backend {
	case "ckks":
		return ckks.New(precision)
	case "plain":
		return plain.New(precision)
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}
