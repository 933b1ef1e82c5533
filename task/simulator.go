package task

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"prismflow/config"
)

const (
	initialMessage   = "Initializing processing pipeline..."
	promptExcerptLen = 15
	milestoneSpan    = 20
)

// Simulator advances stored tasks one tick at a time.
type Simulator struct {
	store  *Store
	rand   Rand
	incMin float64
	incMax float64
	logger *logrus.Entry
}

func NewSimulator(cfg *config.Config, store *Store, rnd Rand, logger *logrus.Entry) *Simulator {
	if rnd == nil {
		rnd = DefaultRand
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Simulator{
		store:  store,
		rand:   rnd,
		incMin: cfg.IncrementMin,
		incMax: cfg.IncrementMax,
		logger: logger.WithField("svc", "task.Simulator"),
	}
}

// Tick advances the task stored under id by one step. It reports whether
// the task needs further ticks: false once the task is gone or completed.
func (s *Simulator) Tick(id string, now time.Time) bool {
	running := false
	s.store.Update(id, func(t *Task) {
		if t.Completed {
			return
		}
		running = !s.advance(t, now)
	})
	return running
}

// advance applies one tick to t and reports whether it completed.
func (s *Simulator) advance(t *Task, now time.Time) bool {
	prev := t.Progress
	sinceLast := now.Sub(t.LastUpdate)

	// Progress is scaled by the task speed only, never by wall-clock time.
	increment := floatBetween(s.rand, s.incMin, s.incMax) * t.ProgressSpeed
	t.Progress = math.Min(t.Progress+increment, 100)

	if step := stepFor(t.Progress, t.TotalSteps); step > t.CurrentStep {
		t.CurrentStep = step
	}
	if substep := stepFor(t.Progress, t.TotalSubsteps); substep > t.CurrentSubstep {
		t.CurrentSubstep = substep
	}
	if t.Progress >= 100 {
		t.Progress = 100
		t.CurrentStep = t.TotalSteps
		t.CurrentSubstep = t.TotalSubsteps
	}

	t.TimeElapsed = now.Sub(t.CreatedAt).Seconds()
	t.LastUpdate = now

	logger := s.logger.WithField("task_id", t.ID)
	logger.Debugf("Advanced %.2f%% after %s", increment, sinceLast)
	if int(t.Progress/milestoneSpan) > int(prev/milestoneSpan) {
		logger.Infof("Progress milestone: %d%% - step %d/%d", int(t.Progress), t.CurrentStep, t.TotalSteps)
	}

	t.Message = Message(*t)
	if t.Progress < 100 {
		return false
	}

	t.Status = StatusCompleted
	t.Completed = true
	url := DownloadPath(t.ID)
	t.DownloadURL = &url
	logger.Infof("Task completed: %d steps | %d substeps | %ds elapsed", t.TotalSteps, t.TotalSubsteps, int(t.TimeElapsed))
	return true
}

// stepFor maps progress onto [0,total]. total is only reached at 100%.
func stepFor(progress float64, total int) int {
	step := int(math.Floor(progress / 100 * float64(total)))
	if progress < 100 && step >= total {
		step = total - 1
	}
	return step
}

// Message describes what a task is doing at its current progress.
func Message(t Task) string {
	creative := t.Parameters.CreativeOptions
	if t.Parameters.ProcessingMode != ModeCreativeAI {
		creative = nil
	}
	counter := fmt.Sprintf("[%d/%d]", t.CurrentStep, t.TotalSteps)

	switch {
	case t.Progress < 20:
		return "Analyzing video frames... " + counter
	case t.Progress < 40:
		if creative != nil && creative.LoraModel != "" && creative.LoraModel != defaultLoraModel {
			return fmt.Sprintf("Loading LoRA model [%s] %s...", creative.LoraModel, counter)
		}
		return "Loading AI model... " + counter
	case t.Progress < 60:
		if creative != nil && creative.Prompt != "" {
			return fmt.Sprintf("Applying custom style transfer [%s...] %s", excerpt(creative.Prompt), counter)
		}
		return "Applying style transfer... " + counter
	case t.Progress < 80:
		if creative != nil && creative.LoraWeight > 0 {
			return fmt.Sprintf("Optimizing output quality [LoRA weight: %s] %s...", formatFloat(creative.LoraWeight), counter)
		}
		return "Optimizing output quality... " + counter
	case t.Progress < 100:
		if creative != nil && creative.StyleStrength != 0 {
			return fmt.Sprintf("Generating output video [strength: %s] %s...", formatFloat(creative.StyleStrength), counter)
		}
		return "Generating output video... " + counter
	default:
		return fmt.Sprintf("Processing complete! [mode: %s] [%d/%d]", t.Parameters.ProcessingMode, t.TotalSteps, t.TotalSteps)
	}
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > promptExcerptLen {
		r = r[:promptExcerptLen]
	}
	return string(r)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
