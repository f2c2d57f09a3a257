package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta"
	"github.com/vsariola/quanta/node/modplayer"
)

var (
	flagLoop      bool
	flagSeconds   float64
	flagSignposts float64
)

var moduleCmd = &cobra.Command{
	Use:   "module FILE.raw",
	Short: "Stream headerless stereo float32 audio through the module player",
	Long: `module loads a file of raw stereo float32 frames, as written by
"quanta --output file.raw", into a module player node and plays it.
Signposts can be scheduled at regular intervals; they show up as impulses
on the left channel.`,
	Args: cobra.ExactArgs(1),
	RunE: runModule,
}

func init() {
	moduleCmd.Flags().BoolVar(&flagLoop, "loop", false, "start over at the end of the file")
	moduleCmd.Flags().Float64Var(&flagSeconds, "seconds", 0, "how long to play; defaults to the length of the file")
	moduleCmd.Flags().Float64Var(&flagSignposts, "signposts", 0, "seconds between signposts, 0 for none")
	rootCmd.AddCommand(moduleCmd)
}

func runModule(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	n, _, err := s.add(modplayer.Name)
	if err != nil {
		return err
	}
	p := n.(*modplayer.Node)
	if err := p.Load(modplayer.RawFactory(flagLoop), f); err != nil {
		return err
	}
	clock := s.host.Clock()
	length := flagSeconds
	if length <= 0 {
		length = quanta.FramesToSeconds(int(st.Size()/8), clock.SampleRate())
	}
	t := clock.Now()
	if flagSignposts > 0 {
		for i := 0; float64(i)*flagSignposts < length; i++ {
			if err := p.Signpost(t+float64(i)*flagSignposts, i); err != nil {
				return err
			}
		}
	}
	if err := p.Pause(t + length); err != nil {
		return err
	}
	return s.run(cmd.Context(), scheduledJob{end: t + length})
}
