package api

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"portscan/scanner"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func sampleTask() *ScanTask {
	return &ScanTask{
		ID:          "0b3e1f9a-5c1d-4e8b-9a7f-2d6c4b1e0f3a",
		Status:      StatusPending,
		Host:        "192.0.2.10",
		Ports:       "21,22,80",
		TimeoutMS:   500,
		Concurrency: 10,
		CreatedAt:   time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestStores_TaskRoundTrip(t *testing.T) {
	stores := map[string]TaskStore{
		"redis":  newRedisStore(t),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := sampleTask()
			if err := store.CreateTask(ctx, task); err != nil {
				t.Fatalf("create: %v", err)
			}

			got, err := store.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if !reflect.DeepEqual(got, task) {
				t.Fatalf("got %+v want %+v", got, task)
			}

			done := time.Date(2024, 1, 2, 15, 6, 30, 0, time.UTC)
			task.Status = StatusCompleted
			task.Results = []scanner.Outcome{
				{Port: 21, Status: scanner.StatusOpen, Banner: []byte("220 ready")},
				{Port: 22, Status: scanner.StatusClosed, Banner: []byte{}},
				{Port: 80, Status: scanner.StatusError, Banner: []byte{}, Cause: "timeout"},
				{Port: 3306, Status: scanner.StatusOpen, Banner: []byte{0x4a, 0x00, 0x00, 0x00, 0x0a, 0x35, 0xff, 0xfe, 0x80}},
			}
			task.Counts = &scanner.Counts{Open: 2, Closed: 1, Error: 1}
			task.CompletedAt = &done
			if err := store.UpdateTask(ctx, task); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, err = store.GetTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("get after update: %v", err)
			}
			if got.Status != StatusCompleted || len(got.Results) != 4 {
				t.Fatalf("unexpected task: %+v", got)
			}
			if string(got.Results[0].Banner) != "220 ready" || got.Results[2].Cause != "timeout" {
				t.Fatalf("results not preserved: %+v", got.Results)
			}
			if !bytes.Equal(got.Results[3].Banner, task.Results[3].Banner) {
				t.Fatalf("binary banner: got % x want % x", got.Results[3].Banner, task.Results[3].Banner)
			}
			if got.Counts == nil || *got.Counts != *task.Counts {
				t.Fatalf("counts: got %+v want %+v", got.Counts, task.Counts)
			}
			if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
				t.Fatalf("completed_at: got %v want %v", got.CompletedAt, done)
			}
		})
	}
}

func TestStores_NotFound(t *testing.T) {
	stores := map[string]TaskStore{
		"redis":  newRedisStore(t),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetTask(context.Background(), "missing")
			if !errors.Is(err, ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound, got %v", err)
			}
		})
	}
}

func TestStores_QueueIsFIFO(t *testing.T) {
	stores := map[string]TaskStore{
		"redis":  newRedisStore(t),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			for _, id := range []string{"a", "b", "c"} {
				if err := store.PushToQueue(ctx, id); err != nil {
					t.Fatalf("push %s: %v", id, err)
				}
			}
			for _, want := range []string{"a", "b", "c"} {
				got, err := store.PopFromQueue(ctx)
				if err != nil {
					t.Fatalf("pop: %v", err)
				}
				if got != want {
					t.Fatalf("got %q want %q", got, want)
				}
			}
		})
	}
}

func TestMemoryStore_PopHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewMemoryStore().PopFromQueue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
