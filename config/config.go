// Package config holds the settings of a quanta host, read from YAML. JSON
// files work too, as JSON is a subset of YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vsariola/quanta/host"
	"github.com/vsariola/quanta/sched"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SampleRate    int      `yaml:"sampleRate"`
	Quantum       int      `yaml:"quantum"` // frames per render quantum
	Channels      int      `yaml:"channels"`
	QueueCapacity int      `yaml:"queueCapacity"`
	HeapCapacity  int      `yaml:"heapCapacity"`
	Gain          float32  `yaml:"gain"`
	Nodes         []string `yaml:"nodes,flow"` // registry names of the nodes to create at startup
	RPCAddress    string   `yaml:"rpcAddress,omitempty"`
}

func Default() Config {
	return Config{
		SampleRate:    48000,
		Quantum:       512,
		Channels:      2,
		QueueCapacity: sched.DefaultQueueCapacity,
		HeapCapacity:  sched.DefaultHeapCapacity,
		Gain:          1,
		Nodes:         []string{"marker"},
		RPCAddress:    "127.0.0.1:31337",
	}
}

// Load reads a config file. Settings missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sampleRate must be positive, got %d", c.SampleRate))
	}
	if c.Quantum <= 0 {
		errs = append(errs, fmt.Errorf("quantum must be positive, got %d", c.Quantum))
	}
	if c.Channels != 1 && c.Channels != 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", c.Channels))
	}
	if c.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queueCapacity must be positive, got %d", c.QueueCapacity))
	}
	if c.HeapCapacity <= 0 {
		errs = append(errs, fmt.Errorf("heapCapacity must be positive, got %d", c.HeapCapacity))
	}
	if c.Gain < 0 {
		errs = append(errs, fmt.Errorf("gain must not be negative, got %v", c.Gain))
	}
	return errors.Join(errs...)
}

func (c Config) HostOptions() host.Options {
	return host.Options{
		SampleRate:  c.SampleRate,
		QuantumSize: c.Quantum,
		Channels:    c.Channels,
		Gain:        c.Gain,
	}
}

func (c Config) SchedOptions() sched.Options {
	return sched.Options{QueueCapacity: c.QueueCapacity, HeapCapacity: c.HeapCapacity}
}

// Marshal returns the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
