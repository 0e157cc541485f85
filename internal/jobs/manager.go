// Package jobs は非同期ジョブの投入・実行・状態管理を提供します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yourusername/pdf-slim/internal/config"
	"github.com/yourusername/pdf-slim/internal/pdf"
	"github.com/yourusername/pdf-slim/internal/telemetry"
)

const (
	taskTypeOptimize = "pdf:optimize"
	queueName        = "pdf"
)

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	cfg        *config.Config
	client     *asynq.Client
	server     *asynq.Server
	mux        *asynq.ServeMux
	store      *Store
	pdfService *pdf.Service
	logger     *log.Logger
}

// TaskPayload は最適化ジョブのペイロードです。ワーカーはこの値を
// 信用せず、処理前に再検証します。
type TaskPayload struct {
	JobID string `json:"jobId"`
	DPI   int    `json:"dpi"`
	JPEGQ int    `json:"jpegq"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, pdfService *pdf.Service, store *Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if pdfService == nil {
		return nil, errors.New("pdfService is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:        cfg,
		client:     client,
		server:     server,
		mux:        mux,
		store:      store,
		pdfService: pdfService,
		logger:     logger,
	}
	mux.HandleFunc(taskTypeOptimize, manager.handleOptimizeTask)
	return manager, nil
}

// Run は Asynq サーバーを起動し、停止するまでブロックします。
func (m *Manager) Run() error {
	return m.server.Run(m.mux)
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Schedule はメタデータレコードを作成してからジョブをキューに投入します。
// レコードの書き込みが成功するまで投入は行われません（キュー上のエントリが
// 存在しないメタデータを参照することはありません）。
func (m *Manager) Schedule(ctx context.Context, sub *pdf.Submission) (string, error) {
	if sub == nil {
		return "", fmt.Errorf("submission is nil")
	}
	if err := pdf.ValidateJobID(sub.JobID); err != nil {
		return "", err
	}

	record := &Record{
		JobID:            sub.JobID,
		Status:           StatusQueued,
		InputPath:        sub.InputPath,
		OutputPath:       sub.OutputPath,
		DPI:              sub.DPI,
		JPEGQ:            sub.JPEGQ,
		OriginalFilename: sub.OriginalFilename,
		Error:            nil,
	}
	if err := m.store.Put(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(&TaskPayload{
		JobID: sub.JobID,
		DPI:   sub.DPI,
		JPEGQ: sub.JPEGQ,
	})
	if err != nil {
		return "", err
	}

	timeout := time.Duration(m.cfg.JobTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = time.Hour
	}

	task := asynq.NewTask(taskTypeOptimize, body, asynq.Queue(queueName))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.Timeout(timeout))
	if err != nil {
		// 投入できなかったレコードを残すと queued のまま誰も処理しない
		if delErr := m.store.Delete(ctx, sub.JobID); delErr != nil {
			m.logger.Printf("failed to roll back record job=%s: %v", sub.JobID, delErr)
		}
		return "", fmt.Errorf("failed to enqueue job %s: %w", sub.JobID, err)
	}
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

// handleOptimizeTask は1件のジョブを処理します。状態遷移は
// queued → processing → done/failed で、done からの巻き戻しはありません。
// 失敗は必ずレコードに永続化してからキューへ再送出します。
func (m *Manager) handleOptimizeTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid task payload: %w", err)
	}

	// キューのペイロードは信用せず、取り込み時と同じ制約で再検証する
	if err := pdf.ValidateJobID(payload.JobID); err != nil {
		m.logger.Printf("rejected task with malformed job id: %v", err)
		return err
	}
	if err := pdf.ValidateParams(payload.DPI, payload.JPEGQ); err != nil {
		m.logger.Printf("rejected task with invalid params job=%s: %v", payload.JobID, err)
		return err
	}

	record, err := m.store.Get(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if record == nil {
		// メタデータなしの作業項目は処理不能。黙って捨てずにエラーとして報告する
		return fmt.Errorf("job metadata not found: %s", payload.JobID)
	}

	if record.Status == StatusDone {
		m.logger.Printf("skipping redelivered job already done job=%s", payload.JobID)
		return nil
	}

	// 保存されたパスを信用せず、ストレージルート内に収まることを再確認する
	layout := m.pdfService.Layout()
	if err := pdf.VerifyWithin(layout.UploadsRoot(), record.InputPath); err != nil {
		return m.failJob(ctx, record, err)
	}
	if err := pdf.VerifyWithin(layout.OutputsRoot(), record.OutputPath); err != nil {
		return m.failJob(ctx, record, err)
	}

	record.Status = StatusProcessing
	record.Error = nil
	if err := m.store.Put(ctx, record); err != nil {
		return err
	}
	m.logger.Printf("job processing job=%s dpi=%d jpegq=%d", record.JobID, payload.DPI, payload.JPEGQ)

	telemetry.InFlightGauge.Inc()
	defer telemetry.InFlightGauge.Dec()

	if err := m.pdfService.Optimize(ctx, record.InputPath, record.OutputPath, payload.DPI, payload.JPEGQ); err != nil {
		return m.failJob(ctx, record, err)
	}

	record.Status = StatusDone
	record.Error = nil
	if err := m.store.Put(ctx, record); err != nil {
		return err
	}
	telemetry.JobsDone.Inc()
	m.logger.Printf("job done job=%s output=%s", record.JobID, record.OutputPath)
	return nil
}

// failJob は失敗をレコードへ永続化してからエラーを返します。
// キュー側が失敗記録を失ってもステータスは観測可能なままになります。
func (m *Manager) failJob(ctx context.Context, record *Record, cause error) error {
	detail := pdf.TruncateDetail(errorMessage(cause))
	record.Status = StatusFailed
	record.Error = &detail
	if putErr := m.store.Put(ctx, record); putErr != nil {
		m.logger.Printf("failed to persist failure job=%s: %v", record.JobID, putErr)
	}
	telemetry.JobsFailed.Inc()
	m.logger.Printf("job failed job=%s: %s", record.JobID, detail)
	return cause
}

func errorMessage(err error) string {
	var apiErr *pdf.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
