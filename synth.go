package quanta

import "io"

type (
	// Synth is the command API of a synthesis engine. All methods are called
	// from the render goroutine: the commands that are due in a quantum first,
	// in order, and then Render once for the whole quantum. A Synth has no
	// sub-quantum timing, so commands take effect at the start of the
	// rendered block.
	Synth interface {
		NoteOn(channel, key int, velocity float32)
		NoteOff(channel, key int)
		// PresetNoteOn and PresetNoteOff play a preset directly, bypassing
		// the channel state.
		PresetNoteOn(preset, key int, velocity float32)
		PresetNoteOff(preset, key int)
		NoteOffAll()
		SetPreset(channel, program int, drums bool)
		PitchBend(channel, bend int)
		ControlChange(channel, control, value int)
		// Render adds nothing, it overwrites left and right with the next
		// len(left) frames of output.
		Render(left, right []float32)
		PresetCount() int
	}

	// Synther creates Synths from instrument data, e.g. a sound bank file. A
	// nil reader asks for the built-in default instruments, if the engine has
	// any.
	Synther interface {
		Name() string
		Synth(r io.Reader, sampleRate int) (Synth, error)
	}
)
