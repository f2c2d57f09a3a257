package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/node/marker"
)

var timingCmd = &cobra.Command{
	Use:   "timing [score.yml]",
	Short: "Check that marks scheduled out of order land on their exact frames",
	Long: `timing schedules a score of marks on a marker node, by default twenty marks
one second apart given in shuffled order. Every mark writes a short impulse
into the output. Once rendered, the marks must have arrived sorted by time and
each on the frame its time rounds to.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTiming,
}

func init() {
	rootCmd.AddCommand(timingCmd)
}

type markHit struct {
	id    int
	frame uint64
}

func runTiming(cmd *cobra.Command, args []string) error {
	score := marker.TimingTest()
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		score, err = marker.ReadScore(f)
		f.Close()
		if err != nil {
			return err
		}
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, _, err := s.add(marker.Name)
	if err != nil {
		return err
	}
	m := n.(*marker.Node)
	clock := s.host.Clock()
	hits := make(chan markHit, len(score.Marks))
	m.OnMark(func(id, offset int) {
		select {
		case hits <- markHit{id: id, frame: clock.Frame() + uint64(offset)}:
		default:
		}
	})
	origin := clock.Now()
	if _, err := m.Schedule(score); err != nil {
		return err
	}
	if err := s.run(cmd.Context(), scheduledJob{end: origin + score.Length()}); err != nil {
		return err
	}
	close(hits)
	return checkTiming(score, origin, clock.SampleRate(), hits)
}

// checkTiming compares the marks that arrived with the score.
func checkTiming(score marker.Score, origin, sampleRate float64, hits <-chan markHit) error {
	want := append([]marker.Mark(nil), score.Marks...)
	sort.SliceStable(want, func(i, j int) bool { return want[i].Time < want[j].Time })
	i := 0
	failed := 0
	for h := range hits {
		if i >= len(want) {
			return fmt.Errorf("got more marks than scheduled")
		}
		w := want[i]
		expected := quanta.SecondsToFrames(origin+w.Time, sampleRate)
		status := "ok"
		if h.id != w.ID || int(h.frame) != expected {
			status = "WRONG"
			failed++
		}
		log.Printf("[timing] mark %2d at frame %8d, expected mark %2d at frame %8d: %s", h.id, h.frame, w.ID, expected, status)
		i++
	}
	if i != len(want) {
		return fmt.Errorf("%d of %d marks arrived", i, len(want))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d marks out of place", failed, len(want))
	}
	log.Printf("[timing] all %d marks in order", len(want))
	return nil
}
