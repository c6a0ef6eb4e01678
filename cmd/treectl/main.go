package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/staple-duck/snh/config"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	a := newApp(cfg)
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		a.close()
		os.Exit(1)
	}
}
