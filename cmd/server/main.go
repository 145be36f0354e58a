/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the worklog engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yml + environment)
  2. Configure logging
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  config.yml next to the binary, overridden by environment:
    APP_HOST / APP_PORT        Listen address and port
    DB_PATH                    SQLite database path (":memory:" works)
    DB_SNAPSHOT_EVERY          Snapshot cadence for event streams
    LOG_LEVEL / LOG_FORMAT     logrus level and text/json format

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  DB_PATH="./data/worklog.db" ./server

  # Run with in-memory database
  DB_PATH=":memory:" ./server

  # Run on a different port with JSON logs
  APP_PORT=3000 LOG_FORMAT=json ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/worklog-engine/api"
	"github.com/warp/worklog-engine/config"
	"github.com/warp/worklog-engine/notify"
	"github.com/warp/worklog-engine/store/sqlite"
)

func main() {
	config.InitConfig()

	log := logrus.New()
	level, err := logrus.ParseLevel(config.Conf.Log.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", config.Conf.Log.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if config.Conf.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize store
	store, err := sqlite.New(config.Conf.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	if n := config.Conf.Database.SnapshotEvery; n > 0 {
		store.WithSnapshotEvery(n)
	}

	// Initialize handler
	handler := api.NewHandler(store).
		WithLogger(log).
		WithNotifier(notify.NewLogNotifier(log))

	// Create router
	router := api.NewRouter(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", config.Conf.App.ListenAddr, config.Conf.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server starting on http://localhost:%d", config.Conf.App.Port)
		log.Infof("API available at http://localhost:%d/api", config.Conf.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
