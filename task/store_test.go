package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCRUD(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		actions func(t *testing.T, s *Store)
	}{
		"Creating and getting a task should work": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))

				got, err := s.Get("a")
				require.NoError(t, err)
				assert.Equal(t, "a", got.ID)
				assert.Equal(t, 1, s.Len())
			},
		},

		"Creating a duplicate id should fail": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))
				err := s.Create(newTask("a", now))
				assert.ErrorIs(t, err, ErrAlreadyExists)
			},
		},

		"Getting a missing task should fail with not found": {
			actions: func(t *testing.T, s *Store) {
				_, err := s.Get("missing")
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},

		"Get should return a copy": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))
				got, _ := s.Get("a")
				got.Progress = 50

				again, _ := s.Get("a")
				assert.Equal(t, 0.0, again.Progress)
			},
		},

		"Update should mutate the stored task": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))
				ok := s.Update("a", func(t *Task) { t.Progress = 42 })
				assert.True(t, ok)

				got, _ := s.Get("a")
				assert.Equal(t, 42.0, got.Progress)
			},
		},

		"Update on a missing task should be a no-op": {
			actions: func(t *testing.T, s *Store) {
				called := false
				ok := s.Update("missing", func(*Task) { called = true })
				assert.False(t, ok)
				assert.False(t, called)
				assert.Equal(t, 0, s.Len())
			},
		},

		"Delete should be idempotent": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))
				s.Delete("a")
				s.Delete("a")
				_, err := s.Get("a")
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},

		"List should return every task": {
			actions: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(newTask("a", now)))
				require.NoError(t, s.Create(newTask("b", now)))

				ids := []string{}
				for _, tk := range s.List() {
					ids = append(ids, tk.ID)
				}
				assert.ElementsMatch(t, []string{"a", "b"}, ids)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.actions(t, NewStore())
		})
	}
}

func TestStoreSweepExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	completed := func(id string, created time.Time) Task {
		tk := newTask(id, created)
		tk.Status = StatusCompleted
		tk.Completed = true
		tk.Progress = 100
		return tk
	}

	t.Run("removes only old completed tasks", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Create(completed("old-done", now.Add(-2*time.Hour))))
		require.NoError(t, s.Create(completed("new-done", now.Add(-time.Minute))))
		require.NoError(t, s.Create(newTask("old-running", now.Add(-2*time.Hour))))

		removed := s.SweepExpired(time.Hour, now)
		assert.Equal(t, []string{"old-done"}, removed)

		ids := []string{}
		for _, tk := range s.List() {
			ids = append(ids, tk.ID)
		}
		assert.ElementsMatch(t, []string{"new-done", "old-running"}, ids)
	})

	t.Run("zero max age removes all completed tasks", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Create(completed("a", now.Add(-time.Second))))
		require.NoError(t, s.Create(completed("b", now.Add(-time.Millisecond))))
		require.NoError(t, s.Create(newTask("running", now.Add(-time.Hour))))

		removed := s.SweepExpired(0, now)
		assert.ElementsMatch(t, []string{"a", "b"}, removed)

		_, err := s.Get("running")
		assert.NoError(t, err)
	})
}
