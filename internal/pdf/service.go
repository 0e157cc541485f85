// Package pdf はPDFのWeb最適化（Ghostscriptによる再圧縮）機能を提供します。
package pdf

import (
	"errors"
	"log"

	"github.com/yourusername/pdf-slim/internal/config"
	"github.com/yourusername/pdf-slim/internal/storage"
)

// Service はアップロードの受け入れとGhostscript実行を担います。
type Service struct {
	cfg    *config.Config
	layout storage.Layout
	logger *log.Logger
}

// NewService は Service を初期化し、ストレージディレクトリを準備します。
func NewService(cfg *config.Config, logger *log.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	layout := storage.NewLayout(cfg.StorageDir)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	return &Service{
		cfg:    cfg,
		layout: layout,
		logger: logger,
	}, nil
}

// Layout はストレージ構成を返します。
func (s *Service) Layout() storage.Layout {
	return s.layout
}
