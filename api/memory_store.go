package api

import (
	"context"
	"errors"
	"sync"
)

const memoryQueueSize = 1024

// MemoryStore is a process-local TaskStore used when no Redis address is
// configured. Tasks are stored by value.
type MemoryStore struct {
	sync.RWMutex
	tasks map[string]ScanTask
	queue chan string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]ScanTask),
		queue: make(chan string, memoryQueueSize),
	}
}

func (s *MemoryStore) CreateTask(_ context.Context, task *ScanTask) error {
	s.Lock()
	s.tasks[task.ID] = *task
	s.Unlock()
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*ScanTask, error) {
	s.RLock()
	task, ok := s.tasks[id]
	s.RUnlock()
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, task *ScanTask) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *MemoryStore) PushToQueue(_ context.Context, taskID string) error {
	select {
	case s.queue <- taskID:
		return nil
	default:
		return errors.New("task queue is full")
	}
}

func (s *MemoryStore) PopFromQueue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-s.queue:
		return id, nil
	}
}
