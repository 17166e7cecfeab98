// Package config reads the run configuration of a ghost-layer exchange run
// from a TOML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/NSHalo/parameters"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Transport kinds
const (
	TransportLocal     = "local"
	TransportWebsocket = "websocket"
)

type Geometry struct {
	Dim   int `toml:"dim"`
	SizeX int `toml:"sizeX"`
	SizeY int `toml:"sizeY"`
	SizeZ int `toml:"sizeZ"`
}

type Parallel struct {
	NumProcessorsX int `toml:"numProcessorsX"`
	NumProcessorsY int `toml:"numProcessorsY"`
	NumProcessorsZ int `toml:"numProcessorsZ"`
}

type Transport struct {
	Kind      string   `toml:"kind"`
	Addresses []string `toml:"addresses"` // One host:port per rank, websocket only
}

type Run struct {
	Iterations int `toml:"iterations"`
}

// Config is the parsed configuration file
type Config struct {
	Geometry  Geometry  `toml:"geometry"`
	Parallel  Parallel  `toml:"parallel"`
	Transport Transport `toml:"transport"`
	Run       Run       `toml:"run"`
}

// Default returns a single-rank 2D configuration
func Default() *Config {
	return &Config{
		Geometry:  Geometry{Dim: 2, SizeX: 8, SizeY: 8, SizeZ: 1},
		Parallel:  Parallel{NumProcessorsX: 1, NumProcessorsY: 1, NumProcessorsZ: 1},
		Transport: Transport{Kind: TransportLocal},
		Run:       Run{Iterations: 1},
	}
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML from r on top of the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	// Sizes left out of the file must not inherit the default extents
	cfg.Geometry = Geometry{}
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding TOML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Parallel.NumProcessorsX == 0 {
		c.Parallel.NumProcessorsX = 1
	}
	if c.Parallel.NumProcessorsY == 0 {
		c.Parallel.NumProcessorsY = 1
	}
	if c.Parallel.NumProcessorsZ == 0 {
		c.Parallel.NumProcessorsZ = 1
	}
	if c.Geometry.Dim == 2 && c.Geometry.SizeZ == 0 {
		c.Geometry.SizeZ = 1
	}
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportLocal
	}
	if c.Run.Iterations == 0 {
		c.Run.Iterations = 1
	}
}

// Sizes returns the global interior cell counts per axis
func (c *Config) Sizes() [3]int {
	return [3]int{c.Geometry.SizeX, c.Geometry.SizeY, c.Geometry.SizeZ}
}

// NumProcessors returns the process grid extents per axis
func (c *Config) NumProcessors() [3]int {
	return [3]int{c.Parallel.NumProcessorsX, c.Parallel.NumProcessorsY, c.Parallel.NumProcessorsZ}
}

// WorldSize is the total number of ranks of the process grid
func (c *Config) WorldSize() int {
	n := c.NumProcessors()
	return n[0] * n[1] * n[2]
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	g := c.Geometry
	if g.Dim != 2 && g.Dim != 3 {
		return fmt.Errorf("%w: geometry.dim must be 2 or 3, got %d", ErrInvalid, g.Dim)
	}
	sizes := c.Sizes()
	procs := c.NumProcessors()
	names := [3]string{"X", "Y", "Z"}
	for axis := 0; axis < 3; axis++ {
		if sizes[axis] <= 0 {
			return fmt.Errorf("%w: geometry.size%s must be positive, got %d",
				ErrInvalid, names[axis], sizes[axis])
		}
		if procs[axis] <= 0 {
			return fmt.Errorf("%w: parallel.numProcessors%s must be positive, got %d",
				ErrInvalid, names[axis], procs[axis])
		}
		if procs[axis] > sizes[axis] {
			return fmt.Errorf("%w: %d processors along %s for only %d cells",
				ErrInvalid, procs[axis], names[axis], sizes[axis])
		}
		// The lower ghost layers of a rank come from the last two interior
		// layers of its neighbor
		if procs[axis] > 1 && sizes[axis] < parameters.LowerGhostLayers*procs[axis] {
			return fmt.Errorf("%w: %d cells along %s leave fewer than %d per rank over %d processors",
				ErrInvalid, sizes[axis], names[axis], parameters.LowerGhostLayers, procs[axis])
		}
	}
	if g.Dim == 2 {
		if g.SizeZ != 1 {
			return fmt.Errorf("%w: 2D geometry requires sizeZ=1, got %d", ErrInvalid, g.SizeZ)
		}
		if procs[2] != 1 {
			return fmt.Errorf("%w: 2D geometry requires numProcessorsZ=1, got %d", ErrInvalid, procs[2])
		}
	}
	switch c.Transport.Kind {
	case TransportLocal:
	case TransportWebsocket:
		if len(c.Transport.Addresses) != c.WorldSize() {
			return fmt.Errorf("%w: websocket transport needs %d addresses, got %d",
				ErrInvalid, c.WorldSize(), len(c.Transport.Addresses))
		}
	default:
		return fmt.Errorf("%w: unknown transport kind %q", ErrInvalid, c.Transport.Kind)
	}
	if c.Run.Iterations < 0 {
		return fmt.Errorf("%w: run.iterations must not be negative, got %d", ErrInvalid, c.Run.Iterations)
	}
	return nil
}
