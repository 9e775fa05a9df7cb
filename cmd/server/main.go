/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ward booking server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize storage (memory, or SQLite when -db is set)
  3. Create the booking engine and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path. Empty runs fully in memory;
           ":memory:" exercises SQLite without a file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run in memory (schedule lost on restart)
  ./server

  # Run with durable storage
  ./server -db="./data/ward.db"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - ward/engine.go: The booking engine
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/ward-engine/api"
	"github.com/warp/ward-engine/identity"
	"github.com/warp/ward-engine/store/sqlite"
	"github.com/warp/ward-engine/ward"
	memstore "github.com/warp/ward-engine/ward/store"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path (empty for in-memory)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var (
		index  ward.ScheduleIndex
		audit  ward.AuditLog
		config ward.ConfigStore
		users  identity.Directory
	)
	if *dbPath != "" {
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer db.Close()
		index, audit, config = db, db, db
		users = sqlite.Users{Store: db}
		seedUsers(log, users)
	} else {
		index = memstore.NewMemory()
		audit = memstore.NewMemoryAudit()
		users = identity.NewSeededDirectory()
	}

	engine := ward.NewEngine(index, audit)
	if config != nil {
		if err := engine.WithConfigStore(context.Background(), config); err != nil {
			log.Fatal().Err(err).Msg("failed to restore configuration")
		}
	}

	handler := api.NewHandler(engine, index, audit, users, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// seedUsers ensures a fresh SQLite database has the reference accounts.
func seedUsers(log zerolog.Logger, users identity.Directory) {
	ctx := context.Background()
	existing, err := users.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list users")
	}
	if len(existing) > 0 {
		return
	}
	seed, _ := identity.NewSeededDirectory().List(ctx)
	for _, u := range seed {
		if err := users.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Str("username", u.Username).Msg("failed to seed user")
		}
	}
	log.Info().Int("count", len(seed)).Msg("seeded reference accounts")
}
