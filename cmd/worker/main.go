// Package main はジョブワーカーのエントリーポイントです。
package main

import (
	"log"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/pdf-slim/internal/config"
	"github.com/yourusername/pdf-slim/internal/jobs"
	"github.com/yourusername/pdf-slim/internal/pdf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pdfService, err := pdf.NewService(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to initialize pdf service: %v", err)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	store := jobs.NewStore(redis.NewClient(opt))

	manager, err := jobs.NewManager(cfg, pdfService, store, log.Default())
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}

	log.Printf("Starting worker (concurrency=%d)", cfg.WorkerConcurrency)
	// Run はシグナル受信までブロックし、受信後にグレースフルに停止します。
	if err := manager.Run(); err != nil {
		log.Fatalf("Worker stopped with error: %v", err)
	}
}
