package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta/minisynth"
	"github.com/vsariola/quanta/node/synth"
)

var flagBank string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Play two notes, then swap one of them",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Play a note with each preset of the bank in turn",
	Args:  cobra.NoArgs,
	RunE:  runPresets,
}

func init() {
	for _, c := range []*cobra.Command{demoCmd, presetsCmd, midiCmd} {
		c.Flags().StringVarP(&flagBank, "bank", "b", "", "minisynth bank file (YAML or JSON)")
		rootCmd.AddCommand(c)
	}
}

// newSynth connects a synth node and loads the bank given with --bank.
func (s *session) newSynth() (*synth.Node, error) {
	n, err := s.addSynth()
	if err != nil {
		return nil, err
	}
	if flagBank == "" {
		return n, nil
	}
	f, err := os.Open(flagBank)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := n.Load(minisynth.Synther{}, f); err != nil {
		return nil, err
	}
	return n, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, err := s.newSynth()
	if err != nil {
		return err
	}
	t := s.host.Clock().Now()
	err = errors.Join(
		n.NoteOn(t, 0, 48, 1), // C
		n.NoteOn(t, 0, 52, 1), // E
		n.NoteOff(t+1, 0, 48),
		n.NoteOn(t+1, 0, 55, 1), // G
		n.AllNotesOff(t+2),
	)
	if err != nil {
		return err
	}
	return s.run(cmd.Context(), scheduledJob{end: t + 2})
}

func runPresets(cmd *cobra.Command, args []string) error {
	const step = 0.2
	notes := [7]int{48, 50, 52, 53, 55, 57, 59}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, err := s.newSynth()
	if err != nil {
		return err
	}
	t := s.host.Clock().Now()
	count := n.PresetCount()
	for i := 0; i < count; i++ {
		at := t + float64(i)*step
		if i > 0 {
			if err := n.PresetNoteOff(at, i-1, notes[(i-1)%len(notes)]); err != nil {
				return err
			}
		}
		if err := n.PresetNoteOn(at, i, notes[i%len(notes)], 1); err != nil {
			return err
		}
	}
	end := t + float64(count)*step
	if err := n.AllNotesOff(end); err != nil {
		return err
	}
	return s.run(cmd.Context(), scheduledJob{end: end})
}
