package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vsariola/quanta/rpc"
)

var (
	flagAddress  string
	flagTime     float64
	flagRelative bool
	flagChannel  int
	flagKey      int
	flagValue    int
	flagVelocity float32
	flagDrums    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Play the configured nodes and take commands for them over rpc",
	Long: `serve creates the nodes listed in the config, plays them on the audio
device, and lets other processes schedule commands on them, for example with
"quanta send". It runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var sendCmd = &cobra.Command{
	Use:   "send [OP NODE-ID]",
	Short: "Schedule a command on a node of a running server",
	Long: `send schedules one command on a node of "quanta serve". Without
arguments, it lists the nodes of the server.

Operations: mark, clear, noteon, noteoff, allnotesoff, preset, pitchbend, cc,
play, pause, restart, signpost.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected no arguments or OP NODE-ID, got %d arguments", len(args))
		}
		return nil
	},
	RunE: runSend,
}

func init() {
	for _, c := range []*cobra.Command{serveCmd, sendCmd} {
		c.Flags().StringVarP(&flagAddress, "address", "a", "", "rpc address, overriding the config")
		rootCmd.AddCommand(c)
	}
	f := sendCmd.Flags()
	f.Float64VarP(&flagTime, "time", "t", 0, "context time of the command in seconds")
	f.BoolVarP(&flagRelative, "relative", "r", false, "time is relative to the current context time")
	f.IntVar(&flagChannel, "channel", 0, "MIDI channel, or preset for preset notes")
	f.IntVar(&flagKey, "key", 60, "MIDI key, or controller number for cc")
	f.IntVar(&flagValue, "value", 0, "mark or signpost id, program, pitch bend or controller value")
	f.Float32Var(&flagVelocity, "velocity", 1, "note on velocity, 0..1")
	f.BoolVar(&flagDrums, "drums", false, "select a drum preset")
}

func rpcAddress(cmd *cobra.Command) (string, error) {
	if flagAddress != "" {
		return flagAddress, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.RPCAddress == "" {
		return "", errors.New("no rpc address configured")
	}
	return cfg.RPCAddress, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if flagOutput != "" {
		return errors.New("serve plays on the audio device and cannot render into a file")
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	if flagAddress != "" {
		s.cfg.RPCAddress = flagAddress
	}
	for _, name := range s.cfg.Nodes {
		if _, _, err := s.add(name); err != nil {
			return err
		}
	}
	l, err := net.Listen("tcp", s.cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("net.Listen failed: %w", err)
	}
	return s.play(cmd.Context(), func(ctx context.Context) error {
		return rpc.Serve(ctx, s.host, l)
	})
}

func runSend(cmd *cobra.Command, args []string) error {
	address, err := rpcAddress(cmd)
	if err != nil {
		return err
	}
	client, err := rpc.Dial(address)
	if err != nil {
		return err
	}
	defer client.Close()
	if len(args) == 0 {
		nodes, err := client.Nodes()
		if err != nil {
			return err
		}
		for _, n := range nodes {
			fmt.Printf("%v %-10s initialized=%v applied=%d discarded=%d overdue=%d rejected=%d\n",
				n.ID, n.Name, n.Initialized, n.Stats.Applied, n.Stats.Discarded, n.Stats.Overdue, n.Stats.Rejected)
		}
		return nil
	}
	id, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("bad node id: %w", err)
	}
	at, err := client.Schedule(rpc.Request{
		Node:     id,
		Op:       args[0],
		Time:     flagTime,
		Relative: flagRelative,
		Channel:  flagChannel,
		Key:      flagKey,
		Value:    flagValue,
		Velocity: flagVelocity,
		Drums:    flagDrums,
	})
	if err != nil {
		return err
	}
	log.Printf("[rpc] %s scheduled at %.4f s", args[0], at)
	return nil
}
