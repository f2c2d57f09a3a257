package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta/midi"
)

var midiCmd = &cobra.Command{
	Use:   "midi FILE.mid",
	Short: "Play a Standard MIDI File on the synth",
	Args:  cobra.ExactArgs(1),
	RunE:  runMidi,
}

func runMidi(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	seq, err := midi.ReadSMF(f)
	f.Close()
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, err := s.newSynth()
	if err != nil {
		return err
	}
	clock := s.host.Clock()
	if flagOutput != "" {
		return s.render(cmd.Context(), &midi.Feeder{Node: n, Seq: seq, Origin: clock.Now()})
	}
	return s.play(cmd.Context(), func(ctx context.Context) error {
		p := midi.Player{
			Node:      n,
			Clock:     clock,
			Lookahead: time.Duration(flagLookahead * float64(time.Second)),
		}
		if err := p.Play(ctx, seq); err != nil {
			return err
		}
		return sleep(ctx, time.Duration(flagTail*float64(time.Second)))
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
