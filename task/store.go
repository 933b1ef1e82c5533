package task

import (
	"fmt"
	"sync"
	"time"
)

// Store is the in-memory task collection. A single lock serializes every
// mutation against reads, so readers always observe whole ticks.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Create registers t under its id.
func (s *Store) Create(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrAlreadyExists)
	}
	s.tasks[t.ID] = &t
	return nil
}

// Get returns a copy of the task stored under id.
func (s *Store) Get(id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

// Update applies mutate to the stored task while holding the lock. It
// returns false, without calling mutate, when the task no longer exists.
func (s *Store) Update(id string, mutate func(t *Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	mutate(t)
	return true
}

// Delete removes a task. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, *t)
	}
	return tasks
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// SweepExpired deletes every completed task created more than maxAge before
// now and returns their ids. Tasks still processing are never touched.
func (s *Store) SweepExpired(maxAge time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, t := range s.tasks {
		if t.Completed && now.Sub(t.CreatedAt) > maxAge {
			delete(s.tasks, id)
			removed = append(removed, id)
		}
	}
	return removed
}
