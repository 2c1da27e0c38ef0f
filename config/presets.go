package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faninteract/backend/internal/rotation"
)

// Presets overrides display timings. Durations are in milliseconds; omitted
// values keep the defaults.
//
//	intervals_ms: {Slow: 15000, Medium: 8000, Fast: 3000}
//	grid_fade_ms: {Medium: 1000}
//	transitions_ms: {"Flip": 900}
//	spin_ms: {Short: 8000, Long: 25000}
//	shuffle_fade_ms: 1200
//	shuffle_pause_ms: 300
//	expiry_sweep_sec: 60
type Presets struct {
	IntervalsMS    map[string]int `yaml:"intervals_ms"`
	GridFadeMS     map[string]int `yaml:"grid_fade_ms"`
	TransitionsMS  map[string]int `yaml:"transitions_ms"`
	SpinMS         map[string]int `yaml:"spin_ms"`
	ShuffleFadeMS  int            `yaml:"shuffle_fade_ms"`
	ShufflePauseMS int            `yaml:"shuffle_pause_ms"`
	ExpirySweepSec int            `yaml:"expiry_sweep_sec"`
}

// LoadTiming returns the default timing, overridden by the presets file at path
// when path is non-empty.
func LoadTiming(path string) (rotation.Timing, error) {
	t := rotation.DefaultTiming()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("failed to read presets file: %w", err)
	}
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return t, fmt.Errorf("failed to parse presets: %w", err)
	}
	if err := p.Apply(&t); err != nil {
		return rotation.DefaultTiming(), err
	}
	return t, nil
}

// Apply writes the overrides into t.
func (p Presets) Apply(t *rotation.Timing) error {
	for name, ms := range p.IntervalsMS {
		s, err := speed(name)
		if err != nil {
			return err
		}
		if ms <= 0 {
			return fmt.Errorf("intervals_ms.%s must be positive", name)
		}
		t.Interval[s] = ms2d(ms)
	}
	for name, ms := range p.GridFadeMS {
		s, err := speed(name)
		if err != nil {
			return err
		}
		t.GridFade[s] = ms2d(ms)
	}
	for name, ms := range p.TransitionsMS {
		tr := rotation.Transition(name)
		if _, ok := t.Transition[tr]; !ok {
			return fmt.Errorf("unknown transition %q", name)
		}
		t.Transition[tr] = ms2d(ms)
	}
	for name, ms := range p.SpinMS {
		s := rotation.SpinSpeed(name)
		if _, ok := t.Spin[s]; !ok {
			return fmt.Errorf("unknown spin speed %q", name)
		}
		if ms <= 0 {
			return fmt.Errorf("spin_ms.%s must be positive", name)
		}
		t.Spin[s] = ms2d(ms)
	}
	if p.ShuffleFadeMS > 0 {
		t.ShuffleFade = ms2d(p.ShuffleFadeMS)
	}
	if p.ShufflePauseMS > 0 {
		t.ShufflePause = ms2d(p.ShufflePauseMS)
	}
	if p.ExpirySweepSec > 0 {
		t.ExpirySweep = time.Duration(p.ExpirySweepSec) * time.Second
	}
	return nil
}

func speed(name string) (rotation.Speed, error) {
	s := rotation.Speed(name)
	switch s {
	case rotation.Slow, rotation.Medium, rotation.Fast:
		return s, nil
	}
	return "", fmt.Errorf("unknown speed %q", name)
}

func ms2d(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
