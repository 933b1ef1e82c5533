package task

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

const (
	defaultLoraModel     = "none"
	defaultLoraWeight    = 0.8
	defaultStyleStrength = 0.75
	defaultRandomSeed    = -1
)

// numericPrefix matches the leading decimal number of a string, so "1.5x" reads as 1.5.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Options are the raw mode specific inputs of a start-processing request.
// Numeric fields accept numbers or numeric strings.
type Options struct {
	Prompt        string      `json:"prompt"`
	LoraModel     string      `json:"loraModel"`
	LoraWeight    interface{} `json:"loraWeight"`
	StyleStrength interface{} `json:"styleStrength"`
	RandomSeed    interface{} `json:"randomSeed"`
}

// ParseParameters captures the parameters of a new task. Values that are
// missing, unparsable or zero fall back to their defaults.
func ParseParameters(mode string, opts Options) Parameters {
	params := Parameters{ProcessingMode: mode}
	if mode != ModeCreativeAI {
		return params
	}

	model := opts.LoraModel
	if model == "" {
		model = defaultLoraModel
	}
	params.CreativeOptions = &CreativeOptions{
		Prompt:        opts.Prompt,
		LoraModel:     model,
		LoraWeight:    floatOr(opts.LoraWeight, defaultLoraWeight),
		StyleStrength: floatOr(opts.StyleStrength, defaultStyleStrength),
		RandomSeed:    intOr(opts.RandomSeed, defaultRandomSeed),
	}
	return params
}

func toFloat(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		v = numericPrefix.FindString(strings.TrimSpace(s))
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func floatOr(v interface{}, def float64) float64 {
	f, ok := toFloat(v)
	if !ok || f == 0 {
		return def
	}
	return f
}

// intOr truncates fractional input, so "12.7" yields 12. Values outside the
// int range fall back to def.
func intOr(v interface{}, def int) int {
	f, ok := toFloat(v)
	if !ok {
		return def
	}
	f = math.Trunc(f)
	if f < math.MinInt || f >= math.MaxInt {
		return def
	}
	n := int(f)
	if n == 0 {
		return def
	}
	return n
}
