package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testJobID = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb)
}

func testRecord() *Record {
	return &Record{
		JobID:            testJobID,
		Status:           StatusQueued,
		InputPath:        "/data/uploads/" + testJobID + ".pdf",
		OutputPath:       "/data/outputs/" + testJobID + "_web.pdf",
		DPI:              150,
		JPEGQ:            70,
		OriginalFilename: "report.pdf",
	}
}

func TestStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord()); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := store.Get(ctx, testJobID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing record")
	}
	if got.Status != StatusQueued {
		t.Fatalf("status = %s, want queued", got.Status)
	}
	if got.DPI != 150 || got.JPEGQ != 70 {
		t.Fatalf("params = %d/%d", got.DPI, got.JPEGQ)
	}
	if got.Error != nil {
		t.Fatalf("error = %v, want nil", *got.Error)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), testJobID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != nil {
		t.Fatalf("Get returned %+v for missing record", got)
	}
}

func TestStorePutReplacesWholeRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testRecord()
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	detail := "gs exploded"
	record.Status = StatusFailed
	record.Error = &detail
	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("Put (update) error: %v", err)
	}

	got, err := store.Get(ctx, testJobID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == nil || *got.Error != detail {
		t.Fatalf("error = %v, want %q", got.Error, detail)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatal("CreatedAt changed on update")
	}
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testRecord()); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := store.Delete(ctx, testJobID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	got, err := store.Get(ctx, testJobID)
	if err != nil || got != nil {
		t.Fatalf("record survived delete: %+v err=%v", got, err)
	}
}
