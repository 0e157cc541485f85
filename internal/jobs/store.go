package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "job:"
)

// Store はジョブ状態を Redis に保存します。
// 1ジョブ=1レコードで、書き込みは常にレコード全体の置き換えです。
// 部分更新が必要な場合は呼び出し側が read-modify-write します
// （作成後は単一ワーカーのみが書き込むため競合しません）。
type Store struct {
	rdb *redis.Client
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Get はジョブ情報を取得します。存在しない場合は (nil, nil) を返します。
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Put はレコード全体を保存します（存在しない場合は作成）。
// レコードに有効期限は設定しません。
func (s *Store) Put(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.JobID == "" {
		return fmt.Errorf("record.JobID is required")
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(record.JobID), payload, 0).Err()
}

// Delete はレコードを削除します。キュー投入に失敗した場合の巻き戻し専用です。
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	return s.rdb.Del(ctx, jobKey(jobID)).Err()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
