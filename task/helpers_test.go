package task

import (
	"sync"
	"time"

	"prismflow/config"
)

// seqRand replays fixed draws in a loop.
type seqRand struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
	fi, ii int
}

func (r *seqRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

func (r *seqRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.ints[r.ii%len(r.ints)] % n
	r.ii++
	return v
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TickInterval = time.Millisecond
	cfg.SweepInterval = time.Hour
	return cfg
}

func newTask(id string, created time.Time) Task {
	return Task{
		ID:            id,
		Status:        StatusProcessing,
		TotalSteps:    500,
		TotalSubsteps: 20,
		ProgressSpeed: 0.5,
		Mode:          "basic",
		Message:       initialMessage,
		Parameters:    Parameters{ProcessingMode: "basic"},
		CreatedAt:     created,
		LastUpdate:    created,
	}
}
