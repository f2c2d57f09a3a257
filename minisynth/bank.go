package minisynth

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// Bank is a set of presets, the instrument data of the engine.
	Bank struct {
		Presets []Preset
	}

	// Preset is one instrument. Drums presets are selected by channels set to
	// the percussion bank.
	Preset struct {
		Name    string `yaml:",omitempty"`
		Program int
		Drums   bool `yaml:",omitempty"`
		Wave    Wave
		Attack  float64 // seconds
		Decay   float64 // seconds
		Sustain float64 // level, 0..1
		Release float64 // seconds
		Gain    float64
	}

	Wave string
)

const (
	Saw      Wave = "saw"
	Square   Wave = "square"
	Triangle Wave = "triangle"
	Sine     Wave = "sine"
	Noise    Wave = "noise"
)

// DefaultBank is a single looping saw, playable on every program.
func DefaultBank() Bank {
	return Bank{Presets: []Preset{{
		Name:    "saw",
		Wave:    Saw,
		Attack:  0.002,
		Decay:   0.1,
		Sustain: 0.8,
		Release: 0.1,
		Gain:    0.3,
	}}}
}

// ReadBank parses a bank from YAML (or JSON).
func ReadBank(r io.Reader) (Bank, error) {
	var b Bank
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return Bank{}, fmt.Errorf("minisynth: reading bank: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Bank{}, err
	}
	return b, nil
}

func (b Bank) Validate() error {
	if len(b.Presets) == 0 {
		return fmt.Errorf("minisynth: bank has no presets")
	}
	for i, p := range b.Presets {
		switch p.Wave {
		case Saw, Square, Triangle, Sine, Noise:
		default:
			return fmt.Errorf("minisynth: preset %d (%s): unknown wave %q", i, p.Name, p.Wave)
		}
		if p.Attack < 0 || p.Decay < 0 || p.Release < 0 {
			return fmt.Errorf("minisynth: preset %d (%s): negative envelope time", i, p.Name)
		}
		if p.Sustain < 0 || p.Sustain > 1 {
			return fmt.Errorf("minisynth: preset %d (%s): sustain %v not within [0, 1]", i, p.Name, p.Sustain)
		}
		if p.Program < 0 || p.Program > 127 {
			return fmt.Errorf("minisynth: preset %d (%s): program %v not within [0, 127]", i, p.Name, p.Program)
		}
	}
	return nil
}

// find returns the index of the preset with the given program, falling back
// to the first preset of the same kind and then to preset 0.
func (b Bank) find(program int, drums bool) int {
	fallback := -1
	for i, p := range b.Presets {
		if p.Drums != drums {
			continue
		}
		if p.Program == program {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return max(fallback, 0)
}
