package main

import (
	"fmt"
	"log"

	"karl/internal"
)

// loadConfig loads and initializes the configuration
func (k *KarlServer) loadConfig() error {
	log.Println("🛠 Loading configuration...")

	config, err := internal.LoadConfig("config/config.json")
	if err != nil {
		return fmt.Errorf("❌ Failed to load configuration: %w", err)
	}

	k.mu.Lock()
	k.config = config
	k.mu.Unlock()

	// Start config watcher
	go internal.WatchConfig("config/config.json")

	log.Println("✅ Configuration loaded successfully")
	return nil
}
