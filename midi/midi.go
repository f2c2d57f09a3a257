// Package midi turns MIDI messages and Standard MIDI Files into synth node
// commands.
package midi

import (
	"github.com/vsariola/quanta/node/synth"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// DrumChannel is the MIDI channel (zero based) reserved for percussion.
// Program changes on it select from the drum bank.
const DrumChannel = 9

// Translate converts a channel message into a synth command. ok is false for
// messages the synth has no use for. A note on with zero velocity is a note
// off.
func Translate(msg gomidi.Message) (cmd synth.Command, ok bool) {
	var channel, key, velocity, control, value, program uint8
	var relative int16
	var absolute uint16
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		if velocity == 0 {
			return synth.Command{Kind: synth.KindNoteOff, Channel: int(channel), Key: int(key)}, true
		}
		return synth.Command{Kind: synth.KindNoteOn, Channel: int(channel), Key: int(key), Velocity: float32(velocity) / 127}, true
	case msg.GetNoteOff(&channel, &key, &velocity):
		return synth.Command{Kind: synth.KindNoteOff, Channel: int(channel), Key: int(key)}, true
	case msg.GetProgramChange(&channel, &program):
		kind := synth.KindSetPreset
		if channel == DrumChannel {
			kind = synth.KindSetDrums
		}
		return synth.Command{Kind: kind, Channel: int(channel), Key: int(program)}, true
	case msg.GetPitchBend(&channel, &relative, &absolute):
		return synth.Command{Kind: synth.KindPitchBend, Channel: int(channel), Key: int(absolute)}, true
	case msg.GetControlChange(&channel, &control, &value):
		return synth.Command{Kind: synth.KindControlChange, Channel: int(channel), Key: int(control), Aux: int(value)}, true
	}
	return synth.Command{}, false
}
