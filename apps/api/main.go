package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"time"

	dig_container "github.com/trezcool/edusource/apps/api/di/dig"
	echoapi "github.com/trezcool/edusource/apps/api/echo"
	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/checkout"
	eventsvc "github.com/trezcool/edusource/services/events"
	tracingsvc "github.com/trezcool/edusource/services/tracing"
	"github.com/trezcool/edusource/storage"
)

// idle checkouts are forgotten after checkoutMaxIdle
const (
	checkoutMaxIdle   = time.Hour
	checkoutPruneTick = 10 * time.Minute
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		store *storage.Engine,
		events eventsvc.Publisher,
		checkouts *checkout.Registry,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.ParseEmailTemplates(apiLogger, conf.Debug || conf.TestMode)

		shutdownTracing, err := tracingsvc.Init(context.Background(), conf)
		if err != nil {
			apiLogger.Fatal(fmt.Sprintf("setting up tracing: %v", err), err)
		}

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		defer func() {
			if err := events.Close(); err != nil {
				apiLogger.Error("Failed to close events publisher", err)
			}
		}()
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				apiLogger.Error("Failed to flush traces", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		// =========================================================================
		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)
		expvar.Publish("checkouts", expvar.Func(func() interface{} { return checkouts.Len() }))

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Prune idle checkouts

		pruneDone := make(chan struct{})
		defer close(pruneDone)
		go func() {
			ticker := time.NewTicker(checkoutPruneTick)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := checkouts.Prune(checkoutMaxIdle); n > 0 {
						apiLogger.Debug(fmt.Sprintf("pruned %d idle checkouts", n))
					}
				case <-pruneDone:
					return
				}
			}
		}()

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Error(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
