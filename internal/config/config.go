// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ストレージ設定
	StorageDir    string // アップロード/出力のルートディレクトリ
	PublicBaseURL string // ステータス/ダウンロードURL生成用のベースURL

	// ファイル制限
	MaxUploadMB int64 // アップロードの最大サイズ（MB）

	// ジョブ/キュー設定
	RedisURL          string // Redis接続URL（キューとメタデータストアで共有）
	WorkerConcurrency int    // ワーカーの並列実行数
	JobTimeoutMinutes int    // 1ジョブあたりの処理タイムアウト（分）

	// PDF処理設定
	GhostscriptPath string // Ghostscript実行ファイルのパス
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ストレージ設定
		StorageDir:    getEnv("STORAGE_DIR", "/data"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost"),

		// ファイル制限
		MaxUploadMB: getEnvAsInt64("MAX_UPLOAD_MB", 2048),

		// ジョブ/キュー設定
		RedisURL:          getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 1),
		JobTimeoutMinutes: getEnvAsInt("JOB_TIMEOUT_MINUTES", 60),

		// PDF処理設定
		GhostscriptPath: getEnv("GHOSTSCRIPT_PATH", "gs"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}

	// ローカル開発では接続先設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
		if c.GhostscriptPath == "" {
			return fmt.Errorf("GHOSTSCRIPT_PATH is required in release mode")
		}
	}

	return nil
}

// MaxUploadBytes はアップロード上限をバイト単位で返します。
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
