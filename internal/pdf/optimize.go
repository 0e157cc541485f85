package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// errorDetailMax はジョブに記録する診断メッセージの上限長です。
const errorDetailMax = 4000

// Optimize は Ghostscript を固定引数で実行し、Web配信向けに圧縮したPDFを
// outputPath に生成します。終了コードが非ゼロ、または出力ファイルが
// 存在しない場合は失敗として扱います。
func (s *Service) Optimize(ctx context.Context, inputPath, outputPath string, dpi, jpegq int) error {
	if err := ValidateParams(dpi, jpegq); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}

	args := ghostscriptArgs(outputPath, inputPath, dpi, jpegq)
	cmd := exec.CommandContext(ctx, s.cfg.GhostscriptPath, args...)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if _, statErr := os.Stat(outputPath); runErr != nil || statErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "Ghostscript failed"
		}
		return newError("GHOSTSCRIPT_FAILED", TruncateDetail(detail), runErr)
	}

	if inInfo, err := os.Stat(inputPath); err == nil {
		if outInfo, err := os.Stat(outputPath); err == nil {
			s.logger.Printf("optimize finished: %d -> %d bytes (%.1f%% reduction)",
				inInfo.Size(), outInfo.Size(), savedPercent(inInfo.Size(), outInfo.Size()))
		}
	}
	return nil
}

// ghostscriptArgs は検証済みの値のみから引数リストを組み立てます。
// ユーザー入力の文字列がシェルに渡ることはありません。
func ghostscriptArgs(outputPath, inputPath string, dpi, jpegq int) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dDownsampleColorImages=true", fmt.Sprintf("-dColorImageResolution=%d", dpi),
		"-dDownsampleGrayImages=true", fmt.Sprintf("-dGrayImageResolution=%d", dpi),
		"-dDownsampleMonoImages=true", fmt.Sprintf("-dMonoImageResolution=%d", dpi),
		"-dColorImageDownsampleType=/Average",
		"-dGrayImageDownsampleType=/Average",
		"-dMonoImageDownsampleType=/Average",
		fmt.Sprintf("-dJPEGQ=%d", jpegq),
		"-dNOPAUSE", "-dQUIET", "-dBATCH",
		fmt.Sprintf("-sOutputFile=%s", outputPath),
		inputPath,
	}
}

// TruncateDetail は診断メッセージを記録可能な長さに切り詰めます。
func TruncateDetail(detail string) string {
	if len(detail) > errorDetailMax {
		return detail[:errorDetailMax]
	}
	return detail
}

func savedPercent(before, after int64) float64 {
	if before == 0 {
		return 0
	}
	return float64(before-after) / float64(before) * 100
}
