// roster/serve.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rosterapi "github.com/kwanta/matchday/roster/api"
	"github.com/kwanta/matchday/roster/cache"
	"github.com/kwanta/matchday/roster/closer"
	"github.com/kwanta/matchday/roster/service"
	"github.com/kwanta/matchday/shared/api"
	"github.com/kwanta/matchday/shared/cluster"
	"github.com/kwanta/matchday/shared/config"
	"github.com/kwanta/matchday/shared/registry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the roster HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// --- 1. Load Configuration ---
	cfg, err := config.LoadRosterServiceConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Printf("INFO: Configuration loaded for Roster Service. Listening on: %s, store: %s", cfg.ListenAddr, cfg.StoreBackend)

	// --- 2. Connect to the roster store ---
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	rosterStore, err := openStore(startCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rosterStore.Close(closeCtx); err != nil {
			log.Printf("ERROR: Error closing roster store: %v", err)
		}
		log.Println("INFO: Roster store closed.")
	}()
	if err := rosterStore.EnsureSchema(startCtx); err != nil {
		return fmt.Errorf("failed to ensure roster schema: %w", err)
	}

	// --- 3. Connect to Redis (optional) ---
	redisClient, err := openRedis(&cfg.CommonConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	var viewCache service.ViewCache
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("ERROR: Error closing Redis client: %v", err)
			}
			log.Println("INFO: Redis client closed.")
		}()
		viewCache = cache.NewViewCache(redisClient, cfg.ViewCacheTTL)
	}

	// --- 4. Initialize Business Logic Services ---
	matchService := service.NewMatchService(rosterStore, viewCache, cfg.Location())
	slotService := service.NewSlotService(rosterStore, viewCache)
	log.Println("INFO: Roster business logic initialized.")

	// --- 5. Registry and match ownership (Redis only) ---
	var assigner closer.Assigner = closer.SoleInstance{}
	if redisClient != nil {
		registrar := registry.NewServiceRegistrar(redisClient, registry.RosterServiceType, &cfg.CommonConfig)
		registrar.Start()
		defer registrar.Stop()

		registryClient := registry.NewRegistryClient(redisClient, cfg.HeartbeatTTL)
		assignment := cluster.NewServiceAssignmentManager(registryClient, registrar.GetServiceType(), registrar.GetServiceID(), cfg.RingUpdateInterval)
		go assignment.Start()
		defer assignment.Stop()
		assigner = assignment
	}

	if cfg.AutoCloseEnabled {
		matchCloser := closer.NewMatchCloser(matchService, assigner, cfg.AutoCloseInterval, cfg.AutoCloseGrace)
		go matchCloser.Start()
		defer matchCloser.Stop()
	}

	// --- 6. Setup HTTP Server and Register Routes ---
	auth := rosterapi.NewAuthenticator(cfg.JWTSecret)
	if !auth.Enabled() {
		log.Println("WARN: JWT_SECRET not set; organizer routes will reject every request.")
	}
	handlers := rosterapi.NewRosterAPIHandlers(matchService, slotService, auth, rosterStore)
	handlers.RequestTimeout = cfg.RequestTimeout
	if cfg.ClaimRateLimit > 0 {
		handlers.Limiter = api.NewIPRateLimiter(cfg.ClaimRateLimit, cfg.ClaimRateWindow)
	}

	baseServer := api.NewBaseServer(cfg.ListenAddr, log.Default(), api.ServerOptions{CORSAllowOrigins: cfg.CORSAllowOrigins})
	handlers.RegisterRoutes(baseServer.Router)
	log.Println("INFO: HTTP routes registered.")

	// --- 7. Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- baseServer.Start()
	}()

	// --- 8. Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Println("INFO: Shutting down Roster Service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := baseServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server graceful shutdown failed: %w", err)
	}
	log.Println("INFO: Roster Service HTTP server gracefully stopped.")
	return nil
}
