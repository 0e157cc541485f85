package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

const (
	uploadChunkSize = 1 << 20 // 1MB
	maxStemLength   = 150
	defaultFilename = "file.pdf"
)

// acceptedContentTypes は申告Content-Typeとして受け入れるPDFメディアタイプです。
var acceptedContentTypes = map[string]struct{}{
	"application/pdf":   {},
	"application/x-pdf": {},
}

// AcceptsContentType は申告されたメディアタイプを受け入れるか判定します。
func AcceptsContentType(contentType string) bool {
	mediaType := strings.TrimSpace(contentType)
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	_, ok := acceptedContentTypes[strings.ToLower(mediaType)]
	return ok
}

// ValidateParams は dpi / jpegq を検証します。取り込み時とワーカーの双方が
// 同じ制約で呼び出します（キューのペイロードを信用しないため）。
func ValidateParams(dpi, jpegq int) error {
	switch dpi {
	case 96, 120, 150:
	default:
		return newError("INVALID_INPUT", "dpiは 96, 120, 150 のいずれかを指定してください。", nil)
	}
	if jpegq < 40 || jpegq > 85 {
		return newError("INVALID_INPUT", "jpegqは 40〜85 の範囲で指定してください。", nil)
	}
	return nil
}

// SanitizeFilename は表示用ファイル名を安全な形に正規化します。
// 結果は成果物のダウンロード名にのみ使われ、パスの構成には使われません。
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		if r > 127 {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	ext := filepath.Ext(cleaned)
	stem := strings.TrimSuffix(cleaned, ext)
	if strings.ToLower(ext) != ".pdf" {
		ext = ".pdf"
	}
	if len(stem) > maxStemLength {
		stem = stem[:maxStemLength]
	}
	if stem == "" {
		return defaultFilename
	}
	return stem + ext
}

// SaveUpload はアップロード本文をチャンク単位でストリーミング保存します。
// 先頭チャンクのシグネチャ検査とサイズ上限を強制し、拒否時は
// 書きかけのファイルを残しません。
func (s *Service) SaveUpload(ctx context.Context, r io.Reader, jobID string) (string, int64, error) {
	inputPath, err := ResolveJobPath(s.layout, jobID, PathKindInput)
	if err != nil {
		return "", 0, err
	}
	maxBytes := s.cfg.MaxUploadBytes()

	out, err := os.OpenFile(inputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("アップロードファイルの作成に失敗しました: %w", err)
	}

	discard := func() {
		out.Close()
		_ = os.Remove(inputPath)
	}

	buf := make([]byte, uploadChunkSize)
	var written int64
	firstChunk := true

	for {
		if err := ctx.Err(); err != nil {
			discard()
			return "", 0, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]

			if firstChunk {
				if !mimetype.Detect(chunk).Is("application/pdf") {
					discard()
					return "", 0, newError("INVALID_SIGNATURE", "有効なPDFファイルではありません。", nil)
				}
				firstChunk = false
			}

			if written+int64(n) > maxBytes {
				discard()
				return "", 0, newError("LIMIT_EXCEEDED",
					fmt.Sprintf("ファイルが大きすぎます。最大 %dMB までです。", s.cfg.MaxUploadMB), nil)
			}

			if _, err := out.Write(chunk); err != nil {
				discard()
				return "", 0, fmt.Errorf("アップロードファイルの書き込みに失敗しました: %w", err)
			}
			written += int64(n)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			discard()
			return "", 0, fmt.Errorf("アップロード本文の読み込みに失敗しました: %w", readErr)
		}
	}

	// 空の本文はシグネチャ検査に到達しないためここで弾く
	if firstChunk {
		discard()
		return "", 0, newError("INVALID_SIGNATURE", "有効なPDFファイルではありません。", nil)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(inputPath)
		return "", 0, fmt.Errorf("アップロードファイルのクローズに失敗しました: %w", err)
	}
	return inputPath, written, nil
}

// DiscardUpload はキュー投入に失敗したジョブの入力ファイルを削除します。
func (s *Service) DiscardUpload(jobID string) error {
	inputPath, err := ResolveJobPath(s.layout, jobID, PathKindInput)
	if err != nil {
		return err
	}
	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
