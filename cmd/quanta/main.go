package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/vsariola/quanta/config"
)

var (
	configPath     string
	flagOutput     string
	flagPCM16      bool
	flagMeter      bool
	flagTail       float64
	flagLookahead  float64
	flagSampleRate int
	flagQuantum    int
	flagGain       float32
)

var rootCmd = &cobra.Command{
	Use:   "quanta",
	Short: "Sample accurate command scheduling for audio nodes",
	Long: `quanta renders audio nodes driven by timestamped commands. Commands are
applied at the exact frame they were scheduled for, whichever goroutine
scheduled them.

By default the output goes to the audio device; with --output it is rendered
offline into a .wav or .raw file.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML or JSON config file")
	pf.StringVarP(&flagOutput, "output", "o", "", "render offline into a .wav or .raw file instead of playing")
	pf.BoolVar(&flagPCM16, "pcm16", false, "use 16-bit integer samples instead of 32-bit floats")
	pf.BoolVar(&flagMeter, "meter", false, "log the peak levels of the output")
	pf.Float64Var(&flagTail, "tail", 1, "seconds to keep rendering after the last command")
	pf.Float64Var(&flagLookahead, "lookahead", 1, "seconds commands are scheduled ahead of time")
	pf.IntVar(&flagSampleRate, "sample-rate", 0, "sample rate, overriding the config")
	pf.IntVar(&flagQuantum, "quantum", 0, "frames per render quantum, overriding the config")
	pf.Float32Var(&flagGain, "gain", 1, "master gain, overriding the config")
}

// loadConfig reads the config file, if any, and applies the flags given on
// the command line on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("sample-rate") {
		cfg.SampleRate = flagSampleRate
	}
	if flags.Changed("quantum") {
		cfg.Quantum = flagQuantum
	}
	if flags.Changed("gain") {
		cfg.Gain = flagGain
	}
	return cfg, cfg.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
