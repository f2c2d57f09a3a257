package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/quanta/node/marker"
)

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("quanta %v: %v", args, err)
	}
}

func TestTimingOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.raw")
	execute(t, "timing", "--output", path, "--sample-rate", "8000", "--tail", "0.1")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	// 20.1 seconds of float32 stereo, rounded up to whole quanta
	if min := 8000 * 201 / 10 * 8; len(data) < min {
		t.Fatalf("expected at least %d bytes, got %d", min, len(data))
	}
}

func TestDemoWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.wav")
	execute(t, "demo", "--output", path, "--pcm16", "--sample-rate", "8000", "--tail", "0")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("output is not a wav file")
	}
	silent := true
	for _, b := range data[44:] {
		if b != 0 {
			silent = false
			break
		}
	}
	if silent {
		t.Fatalf("demo rendered silence")
	}
}

func TestCheckTiming(t *testing.T) {
	score := marker.Score{Marks: []marker.Mark{{Time: 0.5, ID: 7}, {Time: 0.25, ID: 3}}}
	hits := make(chan markHit, 2)
	hits <- markHit{id: 3, frame: 25}
	hits <- markHit{id: 7, frame: 50}
	close(hits)
	if err := checkTiming(score, 0, 100, hits); err != nil {
		t.Fatalf("checkTiming error: %v", err)
	}

	hits = make(chan markHit, 2)
	hits <- markHit{id: 7, frame: 50}
	hits <- markHit{id: 3, frame: 25}
	close(hits)
	if err := checkTiming(score, 0, 100, hits); err == nil {
		t.Fatalf("expected marks out of order to fail")
	}

	hits = make(chan markHit, 1)
	hits <- markHit{id: 3, frame: 25}
	close(hits)
	if err := checkTiming(score, 0, 100, hits); err == nil {
		t.Fatalf("expected missing marks to fail")
	}
}

func TestFileSinkRejectsUnknownFormat(t *testing.T) {
	f := &fileSink{path: filepath.Join(t.TempDir(), "out.mp3")}
	if err := f.Close(); err == nil {
		t.Fatalf("expected an error for an .mp3 output")
	}
}
