package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Record はジョブの現在状態を表します。メタデータストアに保存される唯一の表現であり、
// 作成後の更新はワーカーのみが行います。
type Record struct {
	JobID            string    `json:"jobId"`
	Status           Status    `json:"status"`
	InputPath        string    `json:"inputPath"`
	OutputPath       string    `json:"outputPath"`
	DPI              int       `json:"dpi"`
	JPEGQ            int       `json:"jpegq"`
	OriginalFilename string    `json:"originalFilename"`
	Error            *string   `json:"error"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
