// Command gptbatchd runs the manufacturer-record enrichment daemon: one
// background worker per configured API key that packs pending extraction
// requests into batch input files, submits them to the provider, reconciles
// finished batches back into the request store, and a minimal HTTP surface
// for health and per-key stats.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sudokn/gptbatch/pkg/apikeys"
	"github.com/sudokn/gptbatch/pkg/blobstore"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/database"
	"github.com/sudokn/gptbatch/pkg/deferredstore"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/ontology"
	"github.com/sudokn/gptbatch/pkg/orchestrator"
	"github.com/sudokn/gptbatch/pkg/packer"
	"github.com/sudokn/gptbatch/pkg/provider"
	"github.com/sudokn/gptbatch/pkg/requeststore"
	"github.com/sudokn/gptbatch/pkg/station"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	log.Printf("Starting gptbatchd")
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	log.Println("Connected to PostgreSQL database")

	catalog, err := ontology.Load(cfg.OntologyPath)
	if err != nil {
		log.Fatalf("Failed to load ontology catalog: %v", err)
	}
	log.Printf("Loaded ontology catalog version %s", catalog.Version())

	blobStore, err := blobstore.NewMinioStore(ctx, cfg.BlobStore)
	if err != nil {
		log.Fatalf("Failed to connect to blob store: %v", err)
	}

	apiKeyStore := apikeys.New(dbClient.Pool)
	if err := apiKeyStore.Sync(ctx, cfg.APIKeys); err != nil {
		log.Fatalf("Failed to sync api keys: %v", err)
	}
	bundles, err := apiKeyStore.ListAll(ctx)
	if err != nil {
		log.Fatalf("Failed to list api keys: %v", err)
	}

	requestStore := requeststore.New(dbClient.Pool)
	deferredStore := deferredstore.New(dbClient.Pool)
	batchRepo := station.NewBatchRepo(dbClient.Pool)

	collector := packer.NewCollector(requestStore, deferredStore)
	pk := packer.New(cfg.Packer, blobStore, collector)

	orch := orchestrator.New(requestStore, deferredStore, catalog)
	runner := orchestrator.NewRunner(orch, deferredStore, cfg.Orchestrator.SweepInterval, cfg.Orchestrator.SweepLimit)

	newClient := func(bundle models.APIKeyBundle) station.ProviderClient {
		return provider.NewClient(cfg.Provider, os.Getenv(bundle.SecretEnv), cfg.Station.ConnectTimeout, cfg.Station.TransferTimeout)
	}
	st := station.New(cfg.Station, bundles, newClient, apiKeyStore, batchRepo, requestStore, pk, blobStore, orch)

	workersCtx, cancelWorkers := context.WithCancel(ctx)
	st.Start(workersCtx)
	runner.Start(workersCtx)
	defer func() {
		cancelWorkers()
		st.Stop()
		runner.Stop()
	}()

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(reqCtx, dbClient.Pool)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbHealth,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": dbHealth,
			"configuration": gin.H{
				"api_keys":         stats.APIKeys,
				"ontology_version": catalog.Version(),
			},
		})
	})

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"keys": st.Stats()})
	})

	slog.Info("http server listening", "port", httpPort)
	if err := router.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
