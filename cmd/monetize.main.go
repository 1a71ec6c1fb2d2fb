package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"monetize-service/internal/config"
	"monetize-service/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env (optional)
	if err := godotenv.Load(); err != nil {
		log.Println("Monetize: No .env file found, relying on system env vars")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Monetize service starting on %s", cfg.HTTPAddr)
		// Blocks until the server exits
		server.NewMonetizeServer(ctx, cfg)
		errCh <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Monetize service shutting down gracefully...")
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Monetize service failed: %v", err)
		}
	}
}
