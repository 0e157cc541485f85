package pdf

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/pdf-slim/internal/telemetry"
)

// Submission はキューに引き渡すジョブ作成内容です。
type Submission struct {
	JobID            string
	InputPath        string
	OutputPath       string
	DPI              int
	JPEGQ            int
	OriginalFilename string
}

// JobScheduler はメタデータの作成とキュー投入を行うインターフェースです。
// 実装はメタデータ書き込みが成功した後にのみ投入しなければなりません。
type JobScheduler interface {
	Schedule(ctx context.Context, sub *Submission) (taskID string, err error)
}

// SubmitHandler は POST /api/jobs のハンドラーを返します。
func SubmitHandler(svc *Service, scheduler JobScheduler, publicBaseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			telemetry.UploadsRejected.Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}

		if !AcceptsContentType(fileHeader.Header.Get("Content-Type")) {
			telemetry.UploadsRejected.Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "PDFファイルのみアップロードできます。",
			})
			return
		}

		dpi, jpegq, err := parseParams(c)
		if err != nil {
			telemetry.UploadsRejected.Inc()
			respondWithError(c, err)
			return
		}
		if err := ValidateParams(dpi, jpegq); err != nil {
			telemetry.UploadsRejected.Inc()
			respondWithError(c, err)
			return
		}

		originalName := SanitizeFilename(fileHeader.Filename)

		id := uuid.New()
		jobID := hex.EncodeToString(id[:])

		src, err := fileHeader.Open()
		if err != nil {
			telemetry.UploadsRejected.Inc()
			respondWithError(c, fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err))
			return
		}
		defer src.Close()

		inputPath, written, err := svc.SaveUpload(c.Request.Context(), src, jobID)
		if err != nil {
			telemetry.UploadsRejected.Inc()
			respondWithError(c, err)
			return
		}

		outputPath, err := ResolveJobPath(svc.Layout(), jobID, PathKindOutput)
		if err != nil {
			respondWithError(c, err)
			return
		}

		taskID, err := scheduler.Schedule(c.Request.Context(), &Submission{
			JobID:            jobID,
			InputPath:        inputPath,
			OutputPath:       outputPath,
			DPI:              dpi,
			JPEGQ:            jpegq,
			OriginalFilename: originalName,
		})
		if err != nil {
			if cleanupErr := svc.DiscardUpload(jobID); cleanupErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, cleanupErr)
			}
			respondWithError(c, err)
			return
		}

		telemetry.UploadsAccepted.Inc()
		svc.logger.Printf("job queued job=%s file=%s size=%d dpi=%d jpegq=%d task=%s",
			jobID, originalName, written, dpi, jpegq, taskID)

		base := strings.TrimRight(publicBaseURL, "/")
		c.JSON(http.StatusAccepted, gin.H{
			"jobId":       jobID,
			"status":      "queued",
			"statusUrl":   fmt.Sprintf("%s/api/jobs/%s", base, jobID),
			"downloadUrl": fmt.Sprintf("%s/api/jobs/%s/download", base, jobID),
			"taskId":      taskID,
		})
	}
}

func parseParams(c *gin.Context) (int, int, error) {
	dpi, err := strconv.Atoi(c.DefaultPostForm("dpi", "150"))
	if err != nil {
		return 0, 0, newError("INVALID_INPUT", "dpiは整数で指定してください。", err)
	}
	jpegq, err := strconv.Atoi(c.DefaultPostForm("jpegq", "70"))
	if err != nil {
		return 0, 0, newError("INVALID_INPUT", "jpegqは整数で指定してください。", err)
	}
	return dpi, jpegq, nil
}

// RespondWithError はエラーを {code, message} 形式のJSONに変換します。
// 内部エラーの詳細はクライアントへ返しません。
func RespondWithError(c *gin.Context, err error) {
	respondWithError(c, err)
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "JOB_NOT_FOUND":
			status = http.StatusNotFound
		case "NOT_READY":
			status = http.StatusConflict
		case "OUTPUT_MISSING", "GHOSTSCRIPT_FAILED":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
