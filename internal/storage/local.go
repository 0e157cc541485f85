// Package storage はジョブファイルのローカル配置を管理します。
package storage

import (
	"os"
	"path/filepath"
)

const (
	uploadsDirName = "uploads"
	outputsDirName = "outputs"
)

// Layout はストレージルート配下の固定ディレクトリ構成を表します。
// アップロードと出力はジョブIDのみから導出されるパスに置かれます。
type Layout struct {
	base string
}

// NewLayout は base をルートとする Layout を作成します。
func NewLayout(base string) Layout {
	return Layout{base: base}
}

// Base はストレージルートを返します。
func (l Layout) Base() string {
	return l.base
}

// UploadsRoot はアップロード格納ディレクトリを返します。
func (l Layout) UploadsRoot() string {
	return filepath.Join(l.base, uploadsDirName)
}

// OutputsRoot は出力格納ディレクトリを返します。
func (l Layout) OutputsRoot() string {
	return filepath.Join(l.base, outputsDirName)
}

// EnsureDirs は必要なディレクトリを作成します。
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{l.UploadsRoot(), l.OutputsRoot()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return nil
}
