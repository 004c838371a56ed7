package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"portscan/scanner"
)

// TaskStore defines persistence operations for scan tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *ScanTask) error
	GetTask(ctx context.Context, id string) (*ScanTask, error)
	UpdateTask(ctx context.Context, task *ScanTask) error
	PushToQueue(ctx context.Context, taskID string) error
	PopFromQueue(ctx context.Context) (string, error)
}

var (
	// ErrTaskNotFound indicates the requested task doesn't exist in the store.
	ErrTaskNotFound = errors.New("task not found")
)

const queueKey = "scans:queue"

// RedisStore implements TaskStore using Redis as backend.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed task store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) taskKey(id string) string {
	return fmt.Sprintf("scan:%s", id)
}

// CreateTask persists a new scan task in Redis.
func (s *RedisStore) CreateTask(ctx context.Context, task *ScanTask) error {
	data, err := serializeTask(task)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.taskKey(task.ID), data).Err()
}

// GetTask retrieves a task by ID.
func (s *RedisStore) GetTask(ctx context.Context, id string) (*ScanTask, error) {
	res, err := s.client.HGetAll(ctx, s.taskKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrTaskNotFound
	}
	return deserializeTask(res)
}

// UpdateTask updates an existing task in Redis.
func (s *RedisStore) UpdateTask(ctx context.Context, task *ScanTask) error {
	data, err := serializeTask(task)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.taskKey(task.ID), data).Err()
}

// PushToQueue enqueues a task ID for workers to process.
func (s *RedisStore) PushToQueue(ctx context.Context, taskID string) error {
	return s.client.LPush(ctx, queueKey, taskID).Err()
}

// PopFromQueue blocks until a task ID is available or ctx is done.
func (s *RedisStore) PopFromQueue(ctx context.Context) (string, error) {
	res, err := s.client.BRPop(ctx, 0, queueKey).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	if len(res) != 2 {
		return "", errors.New("unexpected response size from BRPOP")
	}
	return res[1], nil
}

func serializeTask(task *ScanTask) (map[string]interface{}, error) {
	var resultsData string
	if task.Results != nil {
		encoded, err := json.Marshal(task.Results)
		if err != nil {
			return nil, err
		}
		resultsData = string(encoded)
	}

	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"id":           task.ID,
		"status":       task.Status,
		"host":         task.Host,
		"ports":        task.Ports,
		"timeout_ms":   task.TimeoutMS,
		"concurrency":  task.Concurrency,
		"results":      resultsData,
		"created_at":   task.CreatedAt.Format(time.RFC3339Nano),
		"completed_at": completedAt,
		"error":        task.Error,
	}, nil
}

func deserializeTask(data map[string]string) (*ScanTask, error) {
	var results []scanner.Outcome
	if raw, ok := data["results"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			return nil, err
		}
	}

	timeoutMS, err := atoiField(data, "timeout_ms")
	if err != nil {
		return nil, err
	}
	concurrency, err := atoiField(data, "concurrency")
	if err != nil {
		return nil, err
	}

	createdAt := time.Time{}
	if raw, ok := data["created_at"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		createdAt = t
	}

	var completedAt *time.Time
	if raw, ok := data["completed_at"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		completedAt = &t
	}

	task := &ScanTask{
		ID:          data["id"],
		Status:      data["status"],
		Host:        data["host"],
		Ports:       data["ports"],
		TimeoutMS:   timeoutMS,
		Concurrency: concurrency,
		Results:     results,
		CreatedAt:   createdAt,
		CompletedAt: completedAt,
		Error:       data["error"],
	}
	task.Counts = countsFor(task.Results)

	return task, nil
}

func atoiField(data map[string]string, key string) (int, error) {
	raw, ok := data[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

// countsFor summarizes outcomes; nil when there is nothing to count.
func countsFor(results []scanner.Outcome) *scanner.Counts {
	if results == nil {
		return nil
	}
	counts := scanner.Result{Outcomes: results}.Counts()
	return &counts
}
