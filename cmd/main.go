package main

import (
	"log"
	"os"

	"github.com/relay-crm/core/internal/api"
	"github.com/relay-crm/core/internal/cli"
	"github.com/relay-crm/core/internal/config"
	"github.com/relay-crm/core/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := ensureDirs(cfg); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// With arguments, run as a CLI command instead of the server.
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	router, authManager, syncScheduler, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}
	defer syncScheduler.Stop()

	log.Printf("Starting Relay CRM server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Storage directory: %s", cfg.GetStorageDir())
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("API Key: %s", authManager.APIKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureDirs creates the data and storage directories if they don't exist
func ensureDirs(cfg *config.Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.GetStorageDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
