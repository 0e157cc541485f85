package pdf

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/pdf-slim/internal/config"
)

func newTestService(t *testing.T, maxUploadMB int64) *Service {
	t.Helper()
	cfg := &config.Config{
		StorageDir:        t.TempDir(),
		MaxUploadMB:       maxUploadMB,
		WorkerConcurrency: 1,
		GhostscriptPath:   "gs",
		JobTimeoutMinutes: 60,
	}
	svc, err := NewService(cfg, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestAcceptsContentType(t *testing.T) {
	accepted := []string{
		"application/pdf",
		"application/x-pdf",
		"Application/PDF",
		"application/pdf; charset=binary",
	}
	for _, ct := range accepted {
		if !AcceptsContentType(ct) {
			t.Errorf("AcceptsContentType(%q) = false, want true", ct)
		}
	}

	rejected := []string{"", "text/plain", "application/octet-stream", "image/png"}
	for _, ct := range rejected {
		if AcceptsContentType(ct) {
			t.Errorf("AcceptsContentType(%q) = true, want false", ct)
		}
	}
}

func TestValidateParams(t *testing.T) {
	for _, dpi := range []int{96, 120, 150} {
		if err := ValidateParams(dpi, 70); err != nil {
			t.Errorf("ValidateParams(%d, 70) = %v, want nil", dpi, err)
		}
	}
	if err := ValidateParams(150, 40); err != nil {
		t.Errorf("ValidateParams(150, 40) = %v, want nil", err)
	}
	if err := ValidateParams(150, 85); err != nil {
		t.Errorf("ValidateParams(150, 85) = %v, want nil", err)
	}

	invalid := []struct{ dpi, jpegq int }{
		{100, 70},
		{0, 70},
		{-96, 70},
		{300, 70},
		{150, 39},
		{150, 86},
		{150, -1},
	}
	for _, tc := range invalid {
		if err := ValidateParams(tc.dpi, tc.jpegq); err == nil {
			t.Errorf("ValidateParams(%d, %d) = nil, want error", tc.dpi, tc.jpegq)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"my report.pdf", "myreport.pdf"},
		{"no-extension", "no-extension.pdf"},
		{"archive.tar.gz", "archive.tar.pdf"},
		{"UPPER_case-1.PDF", "UPPER_case-1.PDF"},
		{"日本語のファイル.pdf", "file.pdf"},
		{"..pdf", "..pdf"},
		{"", "file.pdf"},
		{"***", "file.pdf"},
		{"a/b\\c.pdf", "abc.pdf"},
	}
	for _, tc := range tests {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// ステム長の上限
	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFilename(long)
	if got != strings.Repeat("a", maxStemLength)+".pdf" {
		t.Errorf("SanitizeFilename(long) = %q (len=%d)", got, len(got))
	}
}

func TestSaveUpload(t *testing.T) {
	svc := newTestService(t, 1)
	body := []byte("%PDF-1.4\n% dummy pdf content\n")

	path, written, err := svc.SaveUpload(context.Background(), bytes.NewReader(body), testJobID)
	if err != nil {
		t.Fatalf("SaveUpload error: %v", err)
	}
	if written != int64(len(body)) {
		t.Fatalf("written = %d, want %d", written, len(body))
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if !bytes.Equal(saved, body) {
		t.Fatalf("saved content mismatch")
	}
	if filepath.Dir(path) != svc.Layout().UploadsRoot() {
		t.Fatalf("file saved outside uploads root: %s", path)
	}
}

func TestSaveUploadRejectsBadSignature(t *testing.T) {
	svc := newTestService(t, 1)

	_, _, err := svc.SaveUpload(context.Background(), strings.NewReader("not a pdf"), testJobID)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_SIGNATURE" {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", err)
	}
	assertNoPartialFile(t, svc)
}

func TestSaveUploadRejectsEmptyBody(t *testing.T) {
	svc := newTestService(t, 1)

	_, _, err := svc.SaveUpload(context.Background(), strings.NewReader(""), testJobID)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_SIGNATURE" {
		t.Fatalf("expected INVALID_SIGNATURE, got %v", err)
	}
	assertNoPartialFile(t, svc)
}

func TestSaveUploadRejectsOversizedBody(t *testing.T) {
	svc := newTestService(t, 1) // 1MB上限

	body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2<<20)...)
	_, _, err := svc.SaveUpload(context.Background(), bytes.NewReader(body), testJobID)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "LIMIT_EXCEEDED" {
		t.Fatalf("expected LIMIT_EXCEEDED, got %v", err)
	}
	assertNoPartialFile(t, svc)
}

func assertNoPartialFile(t *testing.T, svc *Service) {
	t.Helper()
	entries, err := os.ReadDir(svc.Layout().UploadsRoot())
	if err != nil {
		t.Fatalf("reading uploads root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("partial file left on disk: %v", entries)
	}
}

func TestDiscardUpload(t *testing.T) {
	svc := newTestService(t, 1)
	body := []byte("%PDF-1.4\n")
	if _, _, err := svc.SaveUpload(context.Background(), bytes.NewReader(body), testJobID); err != nil {
		t.Fatalf("SaveUpload error: %v", err)
	}

	if err := svc.DiscardUpload(testJobID); err != nil {
		t.Fatalf("DiscardUpload error: %v", err)
	}
	assertNoPartialFile(t, svc)

	// 既に存在しない場合もエラーにならない
	if err := svc.DiscardUpload(testJobID); err != nil {
		t.Fatalf("DiscardUpload (missing) error: %v", err)
	}
}
