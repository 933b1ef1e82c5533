package task

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"prismflow/config"
	"prismflow/upload"
)

const (
	defaultTickInterval  = 500 * time.Millisecond
	defaultSweepInterval = 5 * time.Minute
)

// FileLookup resolves uploaded file ids.
type FileLookup interface {
	Get(id string) (upload.File, error)
}

// Manager creates tasks, runs one progress driver per task and evicts
// completed tasks once they are older than the retention window.
type Manager struct {
	cfg    *config.Config
	store  *Store
	sim    *Simulator
	files  FileLookup
	rand   Rand
	now    func() time.Time
	logger *logrus.Entry

	drivers sync.Map // task id -> struct{}
	group   conc.WaitGroup
	mu      sync.Mutex
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(m *Manager)

// WithRand replaces the random source used for task configuration and ticks.
func WithRand(r Rand) Option {
	return func(m *Manager) { m.rand = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg *config.Config, files FileLookup, logger *logrus.Entry, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		store:  NewStore(),
		files:  files,
		rand:   DefaultRand,
		now:    time.Now,
		logger: logger.WithField("svc", "task.Manager"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sim = NewSimulator(cfg, m.store, m.rand, logger)
	return m, nil
}

// StartProcessing registers a new randomized task and starts its driver.
// An unknown fileID is not an error: the task simply carries no file.
func (m *Manager) StartProcessing(mode, fileID string, opts Options) (string, error) {
	now := m.now()
	t := Task{
		ID:            NewID(now),
		Status:        StatusProcessing,
		TotalSteps:    intBetween(m.rand, m.cfg.StepsMin, m.cfg.StepsMax),
		TotalSubsteps: intBetween(m.rand, m.cfg.SubstepsMin, m.cfg.SubstepsMax),
		ProgressSpeed: floatBetween(m.rand, m.cfg.SpeedMin, m.cfg.SpeedMax),
		Mode:          mode,
		Message:       initialMessage,
		Parameters:    ParseParameters(mode, opts),
		FileID:        fileID,
		CreatedAt:     now,
		LastUpdate:    now,
	}
	logger := m.logger.WithField("task_id", t.ID)

	if fileID != "" && m.files != nil {
		if f, err := m.files.Get(fileID); err == nil {
			t.File = &f
			logger.Infof("Attached file %s", f.OriginalName)
		} else {
			logger.Warnf("Could not attach file: %v", err)
		}
	}

	if err := m.store.Create(t); err != nil {
		return "", err
	}

	logger.WithFields(logrus.Fields{
		"mode":       mode,
		"steps":      t.TotalSteps,
		"substeps":   t.TotalSubsteps,
		"speed":      fmt.Sprintf("%.2fx", t.ProgressSpeed),
		"task_count": m.store.Len(),
	}).Info("Task created")

	m.startDriver(t.ID)
	return t.ID, nil
}

// GetProgress returns the polling projection of a task.
func (m *Manager) GetProgress(id string) (Progress, error) {
	t, err := m.store.Get(id)
	if err != nil {
		return Progress{}, err
	}
	return t.Snapshot(), nil
}

func (m *Manager) Get(id string) (Task, error) {
	return m.store.Get(id)
}

func (m *Manager) List() []Task {
	return m.store.List()
}

// Delete removes a task. Its driver stops on the next tick.
func (m *Manager) Delete(id string) {
	m.store.Delete(id)
}

// ResultFile returns the file to serve for a completed task.
func (m *Manager) ResultFile(id string) (upload.File, error) {
	t, err := m.store.Get(id)
	if err != nil {
		return upload.File{}, err
	}
	if !t.Completed {
		return upload.File{}, fmt.Errorf("task %s is not completed: %w", id, ErrNotFound)
	}
	if t.File == nil {
		return upload.File{}, fmt.Errorf("task %s has no original file: %w", id, ErrNotFound)
	}
	if m.files != nil {
		if _, err := m.files.Get(t.File.ID); err != nil {
			return upload.File{}, fmt.Errorf("task %s: %w", id, err)
		}
	}
	if _, err := os.Stat(t.File.Path); err != nil {
		return upload.File{}, fmt.Errorf("file %s: %w", t.File.OriginalName, ErrFileMissing)
	}
	return *t.File, nil
}

// ActiveDrivers returns the number of running progress drivers.
func (m *Manager) ActiveDrivers() int {
	n := 0
	m.drivers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Sweep evicts completed tasks older than the retention window.
func (m *Manager) Sweep() []string {
	removed := m.store.SweepExpired(m.cfg.TaskRetention, m.now())
	if len(removed) > 0 {
		m.logger.Infof("Evicted %d expired tasks", len(removed))
	}
	return removed
}

// Run sweeps expired tasks periodically until ctx is done, then stops all drivers.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	m.logger.Infof("Task manager started. Sweep interval: %s, retention: %s", interval, m.cfg.TaskRetention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			m.logger.Info("Task manager stopped")
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close stops every driver and waits for them. Tasks created afterwards get no driver.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	if r := m.group.WaitAndRecover(); r != nil {
		m.logger.Errorf("Progress driver panicked: %v", r.AsError())
	}
}

func (m *Manager) startDriver(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.WithField("task_id", id).Warn("Manager closed, task will not progress")
		return
	}
	if _, loaded := m.drivers.LoadOrStore(id, struct{}{}); loaded {
		return
	}
	m.group.Go(func() {
		defer m.drivers.Delete(id)
		m.drive(id)
	})
}

// drive ticks a single task until it completes, disappears or the manager closes.
func (m *Manager) drive(id string) {
	interval := m.cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.sim.Tick(id, m.now()) {
				m.logger.WithField("task_id", id).Debug("Progress driver stopped")
				return
			}
		}
	}
}
