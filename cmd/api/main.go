// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/pdf-slim/internal/config"
	"github.com/yourusername/pdf-slim/internal/pdf"
	"github.com/yourusername/pdf-slim/internal/telemetry"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.MaxMultipartMemory = 8 << 20

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	pdfService, err := pdf.NewService(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to initialize pdf service: %v", err)
	}

	deps, err := setupJobs(cfg, pdfService)
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}

	// ルーティングの設定
	setupRoutes(router, cfg, pdfService, deps)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, pdfService *pdf.Service, deps *apiDeps) {
	router.GET("/health", healthHandler(pdfService, deps))
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	api := router.Group("/api")
	{
		api.POST("/jobs", pdf.SubmitHandler(pdfService, deps.manager, cfg.PublicBaseURL))
		api.GET("/jobs/:id", jobStatusHandler(deps.manager))
		api.GET("/jobs/:id/download", jobDownloadHandler(pdfService, deps.manager))
	}
}
