package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"minutegen/internal/config"
	httpserver "minutegen/internal/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	srv, err := httpserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	srv.Coordinator().StartRetentionSweep(context.Background(), time.Hour)

	if err := srv.Run(); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}
