/*
main.go - HTTP server entry point

PURPOSE:
  Starts the VR benefit engine API. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load settings from the environment (.env files included)
  2. Apply command-line flag overrides
  3. Load the rules file
  4. Initialize SQLite store and metrics
  5. Configure HTTP router and start serving

COMMAND-LINE FLAGS (override VR_* variables):
  -addr    HTTP listen address
  -db      SQLite database path (":memory:" for in-memory)
  -rules   YAML rules file
  -input   Input directory, overrides the rules file
  -output  Output directory, overrides the rules file

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests, including a running calculation (30s timeout)
  3. Close database connection

EXAMPLES:
  ./server -rules=configs/rules.yaml -db=./data/vr.db
  VR_ADDR=:3000 VR_LOG_FORMAT=json ./server

SEE ALSO:
  - config/config.go: Environment settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/benefit-engine/api"
	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/factory"
	"github.com/warp/benefit-engine/metrics"
	"github.com/warp/benefit-engine/pipeline"
	"github.com/warp/benefit-engine/store/sqlite"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load settings: %v", err)
	}

	flag.StringVar(&settings.Addr, "addr", settings.Addr, "HTTP listen address")
	flag.StringVar(&settings.DBPath, "db", settings.DBPath, "SQLite database path")
	flag.StringVar(&settings.RulesPath, "rules", settings.RulesPath, "YAML rules file")
	flag.StringVar(&settings.InputDir, "input", settings.InputDir, "Input directory (overrides rules)")
	flag.StringVar(&settings.OutputDir, "output", settings.OutputDir, "Output directory (overrides rules)")
	flag.Parse()

	log := settings.Logger(os.Stderr)

	rules, err := factory.LoadRules(settings.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	rules.ApplyOverrides(settings.InputDir, settings.OutputDir, settings.LogDir)

	store, err := sqlite.New(settings.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	m := metrics.New()
	p := pipeline.New(rules,
		pipeline.WithStore(store),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	)
	router := api.NewRouter(api.NewHandler(p, store, m, log))

	server := &http.Server{
		Addr:         settings.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":       settings.Addr,
			"competency": rules.Config.Competency.String(),
			"input":      rules.Inputs.Dir,
			"output":     rules.Output.Dir,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("server stopped")
}
