package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/server"
	"github.com/staple-duck/snh/services"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	ctx := context.Background()

	container, err := services.NewServiceFactory(cfg).CreateServices(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Close()

	srv := server.NewServer(cfg, container)
	if err := srv.Run(ctx); err != nil {
		container.Logger.Error("Server stopped with error", err)
		return
	}
	container.Logger.Info("Server stopped")
}
