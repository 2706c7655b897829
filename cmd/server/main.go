package main

import (
	"context"
	"log"
	"time"

	"projecthub-backend/internal/config"
	"projecthub-backend/internal/database"
	"projecthub-backend/internal/presence"
	"projecthub-backend/internal/server"
)

func main() {
	cfg := config.Load()

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}
	log.Println("[Main] database connected")

	// Presence is optional: without Redis the API still serves, members
	// just read as OFFLINE.
	var pm *presence.Manager
	candidate := presence.NewManager(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := candidate.Ping(ctx); err != nil {
		log.Printf("[Main] redis unavailable, presence disabled: %v", err)
		candidate.Close()
	} else {
		pm = candidate
		log.Printf("[Main] redis connected (%s)", cfg.Redis.Addr)
		defer pm.Close()
	}
	cancel()

	srv := server.New(cfg, db, pm)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
