package marker

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type (
	// Score is a list of marks, with times relative to when the score is
	// scheduled.
	Score struct {
		Marks []Mark `yaml:",flow"`
	}

	Mark struct {
		Time float64
		ID   int
	}
)

// TimingTest is twenty marks one second apart, given in shuffled order. When
// rendered, the impulses must come out sorted by time.
func TimingTest() Score {
	seconds := [20]int{1, 2, 15, 4, 5, 6, 11, 16, 7, 8, 3, 12, 10, 17, 18, 13, 14, 9, 19, 20}
	s := Score{Marks: make([]Mark, len(seconds))}
	for i, sec := range seconds {
		s.Marks[i] = Mark{Time: float64(sec), ID: i}
	}
	return s
}

// ReadScore parses a score from YAML (or JSON).
func ReadScore(r io.Reader) (Score, error) {
	var s Score
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Score{}, fmt.Errorf("marker: reading score: %w", err)
	}
	return s, nil
}

// Length is the time of the last mark.
func (s Score) Length() float64 {
	var l float64
	for _, m := range s.Marks {
		l = max(l, m.Time)
	}
	return l
}

// Schedule schedules all marks of the score relative to the current context
// time and returns the number of marks scheduled.
func (n *Node) Schedule(s Score) (int, error) {
	now := n.clock.Now()
	for i, m := range s.Marks {
		if err := n.Mark(now+m.Time, m.ID); err != nil {
			return i, err
		}
	}
	return len(s.Marks), nil
}
