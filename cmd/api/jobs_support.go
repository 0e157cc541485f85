package main

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/pdf-slim/internal/config"
	"github.com/yourusername/pdf-slim/internal/jobs"
	"github.com/yourusername/pdf-slim/internal/pdf"
)

type apiDeps struct {
	manager *jobs.Manager
	rdb     *redis.Client
}

func setupJobs(cfg *config.Config, pdfService *pdf.Service) (*apiDeps, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(opt)
	store := jobs.NewStore(redisClient)
	manager, err := jobs.NewManager(cfg, pdfService, store, log.Default())
	if err != nil {
		return nil, err
	}
	return &apiDeps{manager: manager, rdb: redisClient}, nil
}

// healthHandler はRedisとストレージの疎通を確認します。
func healthHandler(pdfService *pdf.Service, deps *apiDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := gin.H{}

		if err := deps.rdb.Ping(c.Request.Context()).Err(); err != nil {
			log.Printf("health check failed - redis: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unhealthy",
				"components": gin.H{"redis": "unhealthy"},
			})
			return
		}
		components["redis"] = "healthy"

		layout := pdfService.Layout()
		for _, dir := range []string{layout.UploadsRoot(), layout.OutputsRoot()} {
			if _, err := os.Stat(dir); err != nil {
				log.Printf("health check failed - storage: %v", err)
				components["storage"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":     "unhealthy",
					"components": components,
				})
				return
			}
		}
		components["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"components": components,
		})
	}
}

// jobStatusHandler は GET /api/jobs/:id のハンドラーを返します。
func jobStatusHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		// ストレージ参照の前にIDの構文を検証する（トラバーサル形の入力を安価に拒否）
		if err := pdf.ValidateJobID(jobID); err != nil {
			pdf.RespondWithError(c, err)
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

// jobDownloadHandler は GET /api/jobs/:id/download のハンドラーを返します。
// ステータスが done のジョブのみ成果物を返します。
func jobDownloadHandler(pdfService *pdf.Service, manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if err := pdf.ValidateJobID(jobID); err != nil {
			pdf.RespondWithError(c, err)
			return
		}

		record, err := manager.GetRecord(c.Request.Context(), jobID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}
		if record.Status != jobs.StatusDone {
			c.JSON(http.StatusConflict, gin.H{
				"code":    "NOT_READY",
				"message": fmt.Sprintf("ジョブはまだ完了していません (status=%s)。", record.Status),
			})
			return
		}

		// レコード上のパスも信用せず、配信前に封じ込めを確認する
		if err := pdf.VerifyWithin(pdfService.Layout().OutputsRoot(), record.OutputPath); err != nil {
			pdf.RespondWithError(c, err)
			return
		}

		file, err := os.Open(record.OutputPath)
		if err != nil {
			// done のレコードに成果物がないのは内部不整合。自動修復はしない
			log.Printf("output file missing job=%s path=%s: %v", jobID, record.OutputPath, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "OUTPUT_MISSING",
				"message": "ジョブの成果物が見つかりませんでした。",
			})
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブの成果物取得に失敗しました。",
			})
			return
		}

		downloadName := downloadFilename(record.OriginalFilename)
		encodedName := url.PathEscape(downloadName)
		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", downloadName, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", record.JobID)
		c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
	}
}

func downloadFilename(originalName string) string {
	stem := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	if stem == "" {
		stem = "file"
	}
	return stem + "_web.pdf"
}
