package task

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator(rnd Rand) (*Simulator, *Store) {
	store := NewStore()
	return NewSimulator(testConfig(), store, rnd, nil), store
}

func TestSimulator_Tick(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("missing task stops the driver", func(t *testing.T) {
		sim, _ := newTestSimulator(&seqRand{floats: []float64{0.5}})
		assert.False(t, sim.Tick("missing", created))
	})

	t.Run("advances deterministically", func(t *testing.T) {
		sim, store := newTestSimulator(&seqRand{floats: []float64{0.5}})
		require.NoError(t, store.Create(newTask("a", created)))

		running := sim.Tick("a", created.Add(3500*time.Millisecond))
		require.True(t, running)

		got, err := store.Get("a")
		require.NoError(t, err)
		// (0.3 + 0.5*1.5) * 0.5
		assert.InDelta(t, 0.525, got.Progress, 1e-9)
		assert.Equal(t, 2, got.CurrentStep)
		assert.Equal(t, 0, got.CurrentSubstep)
		assert.Equal(t, 3.5, got.TimeElapsed)
		assert.Equal(t, "Analyzing video frames... [2/500]", got.Message)
		assert.Equal(t, StatusProcessing, got.Status)
		assert.False(t, got.Completed)
		assert.Empty(t, got.DownloadURL)

		snap := got.Snapshot()
		assert.Equal(t, 0, snap.Progress)
		assert.Equal(t, int64(3), snap.TimeElapsed)
		assert.Nil(t, snap.DownloadURL)
	})

	t.Run("completes exactly once", func(t *testing.T) {
		sim, store := newTestSimulator(&seqRand{floats: []float64{0.9}})
		tk := newTask("a", created)
		tk.Progress = 99.9
		tk.CurrentStep = 499
		tk.CurrentSubstep = 19
		require.NoError(t, store.Create(tk))

		assert.False(t, sim.Tick("a", created.Add(time.Minute)))

		got, _ := store.Get("a")
		assert.Equal(t, 100.0, got.Progress)
		assert.Equal(t, got.TotalSteps, got.CurrentStep)
		assert.Equal(t, got.TotalSubsteps, got.CurrentSubstep)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.True(t, got.Completed)
		require.NotNil(t, got.DownloadURL)
		assert.Equal(t, "/api/download/a", *got.DownloadURL)
		assert.Equal(t, "Processing complete! [mode: basic] [500/500]", got.Message)

		// Further ticks never mutate a completed task.
		assert.False(t, sim.Tick("a", created.Add(2*time.Minute)))
		again, _ := store.Get("a")
		assert.Equal(t, got, again)
	})

	t.Run("progress and steps never decrease", func(t *testing.T) {
		sim, store := newTestSimulator(DefaultRand)
		tk := newTask("a", created)
		tk.ProgressSpeed = 0.2
		tk.TotalSteps = 613
		tk.TotalSubsteps = 27
		require.NoError(t, store.Create(tk))

		prev, _ := store.Get("a")
		now := created
		for i := 0; i < 10000; i++ {
			now = now.Add(500 * time.Millisecond)
			running := sim.Tick("a", now)

			cur, _ := store.Get("a")
			assert.GreaterOrEqual(t, cur.Progress, prev.Progress)
			assert.GreaterOrEqual(t, cur.CurrentStep, prev.CurrentStep)
			assert.GreaterOrEqual(t, cur.CurrentSubstep, prev.CurrentSubstep)
			assert.LessOrEqual(t, cur.CurrentStep, cur.TotalSteps)
			assert.LessOrEqual(t, cur.CurrentSubstep, cur.TotalSubsteps)
			assert.Equal(t, cur.Progress == 100, cur.Completed)
			assert.Equal(t, cur.Completed, cur.Status == StatusCompleted)
			assert.Equal(t, cur.Completed, cur.CurrentStep == cur.TotalSteps)
			assert.Equal(t, cur.Completed, cur.CurrentSubstep == cur.TotalSubsteps)
			prev = cur

			if !running {
				break
			}
		}
		assert.True(t, prev.Completed, "task never completed")
	})

	t.Run("deleted task stops mid run", func(t *testing.T) {
		sim, store := newTestSimulator(&seqRand{floats: []float64{0.1}})
		require.NoError(t, store.Create(newTask("a", created)))

		require.True(t, sim.Tick("a", created.Add(time.Second)))
		store.Delete("a")
		assert.False(t, sim.Tick("a", created.Add(2*time.Second)))

		_, err := store.Get("a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMessage(t *testing.T) {
	creative := Parameters{
		ProcessingMode: ModeCreativeAI,
		CreativeOptions: &CreativeOptions{
			Prompt:        "a watercolor painting of a city at dusk",
			LoraModel:     "anime-v2",
			LoraWeight:    1.5,
			StyleStrength: 0.65,
			RandomSeed:    42,
		},
	}
	defaults := ParseParameters(ModeCreativeAI, Options{})
	basic := Parameters{ProcessingMode: "basic"}

	tests := map[string]struct {
		progress float64
		params   Parameters
		exp      string
	}{
		"Early progress analyzes frames": {
			progress: 10, params: creative,
			exp: "Analyzing video frames... [120/600]",
		},
		"Model band names the LoRA model": {
			progress: 25, params: creative,
			exp: "Loading LoRA model [anime-v2] [120/600]...",
		},
		"Model band without a model is generic": {
			progress: 25, params: defaults,
			exp: "Loading AI model... [120/600]",
		},
		"Style band includes a prompt excerpt": {
			progress: 45, params: creative,
			exp: "Applying custom style transfer [a watercolor pa...] [120/600]",
		},
		"Style band without a prompt is generic": {
			progress: 45, params: defaults,
			exp: "Applying style transfer... [120/600]",
		},
		"Optimize band includes the weight": {
			progress: 70, params: creative,
			exp: "Optimizing output quality [LoRA weight: 1.5] [120/600]...",
		},
		"Optimize band in basic mode is generic": {
			progress: 70, params: basic,
			exp: "Optimizing output quality... [120/600]",
		},
		"Generate band includes the strength": {
			progress: 95, params: creative,
			exp: "Generating output video [strength: 0.65] [120/600]...",
		},
		"Generate band in basic mode is generic": {
			progress: 95, params: basic,
			exp: "Generating output video... [120/600]",
		},
		"Completion names the mode": {
			progress: 100, params: basic,
			exp: "Processing complete! [mode: basic] [600/600]",
		},
		"Creative options are ignored outside creative mode": {
			progress: 25, params: Parameters{ProcessingMode: "basic", CreativeOptions: creative.CreativeOptions},
			exp: "Loading AI model... [120/600]",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			tk := Task{
				Progress:    test.progress,
				CurrentStep: 120,
				TotalSteps:  600,
				Parameters:  test.params,
			}
			assert.Equal(t, test.exp, Message(tk))
		})
	}
}

func TestMessage_PromptExcerptCountsRunes(t *testing.T) {
	tk := Task{
		Progress:   50,
		TotalSteps: 10,
		Parameters: ParseParameters(ModeCreativeAI, Options{Prompt: "水彩画风格的城市黄昏景色和远处的山脉"}),
	}
	msg := Message(tk)
	assert.True(t, strings.HasPrefix(msg, "Applying custom style transfer [水彩画风格的城市黄昏景色和远处...]"), msg)
}
