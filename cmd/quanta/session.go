package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/config"
	"github.com/vsariola/quanta/host"
	"github.com/vsariola/quanta/minisynth"
	"github.com/vsariola/quanta/node/marker"
	"github.com/vsariola/quanta/node/modplayer"
	"github.com/vsariola/quanta/node/synth"
	"github.com/vsariola/quanta/oto"
	"golang.org/x/sync/errgroup"
)

type (
	// session is a host with the registry of known nodes, set up from the
	// config and flags.
	session struct {
		cfg      config.Config
		registry *quanta.Registry
		host     *host.Context
	}

	// job schedules commands a window at a time. Feed schedules everything
	// due at or before the absolute time until; the job is over once Done
	// and the context time has reached End.
	job interface {
		Feed(until float64) error
		Done() bool
		End() float64
	}

	// scheduledJob is a job whose commands were all scheduled up front.
	scheduledJob struct{ end float64 }

	// fileSink collects rendered audio and writes it out on Close, as a wav
	// file or headerless depending on the extension.
	fileSink struct {
		path       string
		pcm16      bool
		sampleRate int
		frames     quanta.AudioBuffer
	}
)

const feedInterval = 50 * time.Millisecond

func newRegistry(cfg config.Config) (*quanta.Registry, error) {
	opts := cfg.SchedOptions()
	r := quanta.NewRegistry()
	err := errors.Join(
		r.Register(marker.Name, marker.Factory(opts)),
		r.Register(synth.Name, synth.Factory(minisynth.Synther{}, opts)),
		r.Register(modplayer.Name, modplayer.Factory(modplayer.Options{Options: opts})),
	)
	return r, err
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	opts := cfg.HostOptions()
	opts.MeterEnabled = flagMeter
	h, err := host.New(opts, nil)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, registry: registry, host: h}, nil
}

// add creates a node by its registry name and connects it to the host.
func (s *session) add(name string) (quanta.Node, uuid.UUID, error) {
	n, err := s.registry.New(name, s.host.Clock())
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := s.host.Connect(n)
	if err != nil {
		return nil, uuid.Nil, err
	}
	log.Printf("[host] connected %s as %v", name, id)
	return n, id, nil
}

func (s *session) addSynth() (*synth.Node, error) {
	n, _, err := s.add(synth.Name)
	if err != nil {
		return nil, err
	}
	return n.(*synth.Node), nil
}

// run plays the job on the audio device, or renders it offline if an output
// file was given.
func (s *session) run(ctx context.Context, j job) error {
	if flagOutput != "" {
		return s.render(ctx, j)
	}
	return s.play(ctx, func(ctx context.Context) error {
		return s.feed(ctx, j)
	})
}

// feed drives j from the wall clock until it is over.
func (s *session) feed(ctx context.Context, j job) error {
	clock := s.host.Clock()
	ticker := time.NewTicker(feedInterval)
	defer ticker.Stop()
	for {
		if err := j.Feed(clock.Now() + flagLookahead); err != nil {
			return err
		}
		if j.Done() && clock.Now() >= j.End()+flagTail {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// play outputs the host on the audio device while producer runs. Alerts, and
// meter readings if enabled, are logged meanwhile.
func (s *session) play(ctx context.Context, producer func(context.Context) error) error {
	out, err := oto.Open(oto.Options{SampleRate: s.cfg.SampleRate, PCM16: flagPCM16})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	wait := s.monitor(ctx)
	out.Play(s.host)
	err = producer(ctx)
	cancel()
	closeErr := out.Close()
	wait()
	log.Printf("[host] played %.2f s", quanta.FramesToSeconds(int(out.Frames()), s.host.Clock().SampleRate()))
	s.host.Close()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, closeErr)
}

// render renders j offline into the output file, feeding it before every
// quantum.
func (s *session) render(ctx context.Context, j job) error {
	sink := &fileSink{path: flagOutput, pcm16: flagPCM16, sampleRate: s.cfg.SampleRate}
	if _, err := sink.encode(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	wait := s.monitor(ctx)
	clock := s.host.Clock()
	var feedErr error
	err := s.host.Output(sink, s.cfg.Quantum, func() bool {
		if ctx.Err() != nil {
			feedErr = ctx.Err()
			return true
		}
		if feedErr = j.Feed(clock.Now() + flagLookahead); feedErr != nil {
			return true
		}
		return j.Done() && clock.Now() >= j.End()+flagTail
	})
	cancel()
	wait()
	s.host.Close()
	if err = errors.Join(err, feedErr); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	log.Printf("[host] rendered %.2f s into %s", quanta.FramesToSeconds(len(sink.frames), clock.SampleRate()), sink.path)
	return nil
}

// monitor logs alerts, and meter readings if enabled, until ctx is done. The
// returned function waits for the logging to stop.
func (s *session) monitor(ctx context.Context) (wait func()) {
	var g errgroup.Group
	g.Go(func() error {
		host.LogMessages(ctx, s.host.Broker(), flagMeter)
		return nil
	})
	var d *host.Detector
	if flagMeter {
		d = host.NewDetector(s.host.Broker(), s.cfg.SampleRate/10)
		g.Go(func() error {
			d.Run()
			return nil
		})
	}
	return func() {
		if d != nil {
			d.Close()
		}
		g.Wait()
	}
}

func (j scheduledJob) Feed(float64) error { return nil }
func (j scheduledJob) Done() bool         { return true }
func (j scheduledJob) End() float64       { return j.end }

func (f *fileSink) WriteAudio(buf quanta.AudioBuffer) error {
	f.frames = append(f.frames, buf...)
	return nil
}

func (f *fileSink) encode() ([]byte, error) {
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".wav":
		return f.frames.Wav(f.pcm16, f.sampleRate)
	case ".raw":
		return f.frames.Raw(f.pcm16)
	}
	return nil, fmt.Errorf("unknown output format %q, use .wav or .raw", filepath.Ext(f.path))
}

func (f *fileSink) Close() error {
	data, err := f.encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
