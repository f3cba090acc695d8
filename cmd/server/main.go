package main

import (
	"fmt"
	"log"
	"os"

	"github.com/cartmatch/backend/config"
	"github.com/cartmatch/backend/internal/catalog"
	httpDelivery "github.com/cartmatch/backend/internal/delivery/http"
	"github.com/cartmatch/backend/internal/engine"
	"github.com/cartmatch/backend/internal/infrastructure/cache"
	"github.com/cartmatch/backend/internal/infrastructure/llm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting CartMatch Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	// Load the product catalog. An unusable catalog aborts startup; there
	// is no empty-catalog mode.
	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load catalog from %s: %v", cfg.Catalog.Path, err)
	}
	log.Printf("Catalog: %d products from %s", len(products), cfg.Catalog.Path)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	var collaborators engine.Collaborators
	if cfg.LLM.Enabled {
		llmClient := llm.NewClient(llm.ClientConfig{
			BaseURL:        cfg.LLM.BaseURL,
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			Timeout:        cfg.LLM.Timeout,
			MaxRetries:     cfg.LLM.MaxRetries,
			RequestsPerMin: cfg.LLM.RequestsPerMin,
		})
		if cfg.Server.Environment == "development" {
			llmClient.SetDebug(true)
			log.Printf("LLM client debug mode enabled")
		}
		collaborators = engine.Collaborators{
			Parser:     llmClient,
			Classifier: llmClient,
			Terms:      llmClient,
			Reranker:   llmClient,
			Estimator:  llmClient,
		}
		log.Printf("LLM configured: %s (model: %s)", cfg.LLM.BaseURL, cfg.LLM.Model)
	} else {
		log.Printf("LLM disabled - running with deterministic fallbacks only")
	}

	// Build the matching engine
	matcher, err := engine.New(products, memoryCache, collaborators, engine.Config{
		FuzzyMinThreshold:  cfg.Matching.FuzzyMinThreshold,
		DiversityFactor:    cfg.Matching.DiversityFactor,
		CacheTTL:           cfg.Cache.TTL,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})
	if err != nil {
		log.Fatalf("Failed to build matching engine: %v", err)
	}

	log.Printf("Matching: fuzzy_threshold=%.2f, diversity=%.2f, debug=%v",
		cfg.Matching.FuzzyMinThreshold,
		cfg.Matching.DiversityFactor,
		cfg.Matching.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(matcher)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
