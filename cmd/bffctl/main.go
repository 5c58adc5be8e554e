// Command bffctl is a thin demonstration entrypoint wiring the digital-
// abiogenesis core (Soup + Registry + Engine) behind a gin HTTP+
// websocket adapter. It is adapter glue, not part of the core contract
// (§1 Non-goals).
//
// Grounded on cmd/engine/main.go's env-var-only wiring and optional-
// dependency guard shape (warn and continue rather than fail hard when
// an optional backing service is unavailable).
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/rawblock/bff-engine/internal/bffapi"
	"github.com/rawblock/bff-engine/internal/config"
	"github.com/rawblock/bff-engine/internal/snapshot"
)

func main() {
	log.Println("Starting bffctl (digital abiogenesis economic engine demo)...")

	cfg := config.Default()
	cfg.Seed = getEnvInt64("BFF_SEED", cfg.Seed)
	populationSize := getEnvInt("BFF_POPULATION_SIZE", 64)
	listenAddr := getEnvOrDefault("BFF_LISTEN_ADDR", ":8088")

	sim, err := bffapi.New(cfg, populationSize)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize simulation: %v", err)
	}

	var store *snapshot.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		store, err = snapshot.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: failed to connect tick-snapshot sink, continuing without persistence: %v", err)
		} else {
			defer store.Close()
		}
	} else {
		log.Println("DATABASE_URL not set; running without tick-snapshot persistence")
	}

	hub := bffapi.NewHub()
	go hub.Run()

	var sink bffapi.TickSink
	if store != nil {
		sink = store
	}

	router := bffapi.SetupRouter(sim, hub, sink)

	log.Printf("bffctl listening on %s (seed=%d, population=%d)", listenAddr, cfg.Seed, populationSize)
	if err := router.Run(listenAddr); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
