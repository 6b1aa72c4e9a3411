// config.go
//
// Runtime configuration for the graph core and the simulation binary,
// decoded from JSON. Every field is optional; omitted fields keep the
// compile-time defaults from the constants package.
//
//	{
//	  "mutation_capacity":   1024,
//	  "destructor_capacity": 1024,
//	  "registry_capacity":   32,
//	  "destructor_wait":     "park",
//	  "destructor_core":     -1,
//	  "render_core":         -1
//	}

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"audiocore/constants"
	"audiocore/spsc"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config carries the tunables of one engine instance.
type Config struct {
	MutationCapacity   int    `json:"mutation_capacity"`
	DestructorCapacity int    `json:"destructor_capacity"`
	RegistryCapacity   int    `json:"registry_capacity"`
	DestructorWait     string `json:"destructor_wait"`
	DestructorCore     int    `json:"destructor_core"`
	RenderCore         int    `json:"render_core"`
}

// Default returns the compile-time defaults with both threads unpinned.
func Default() Config {
	return Config{
		MutationCapacity:   constants.MutationCapacity,
		DestructorCapacity: constants.DestructorCapacity,
		RegistryCapacity:   constants.RegistryCapacity,
		DestructorWait:     spsc.Park.String(),
		DestructorCore:     constants.NoCore,
		RenderCore:         constants.NoCore,
	}
}

// Parse decodes data over Default and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := sonnet.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate reports the first field out of range.
func (c Config) Validate() error {
	switch {
	case c.MutationCapacity <= 0:
		return fmt.Errorf("%w: mutation_capacity %d must be > 0", ErrInvalid, c.MutationCapacity)
	case c.DestructorCapacity <= 0:
		return fmt.Errorf("%w: destructor_capacity %d must be > 0", ErrInvalid, c.DestructorCapacity)
	case c.RegistryCapacity <= 0:
		return fmt.Errorf("%w: registry_capacity %d must be > 0", ErrInvalid, c.RegistryCapacity)
	case c.DestructorCore < constants.NoCore:
		return fmt.Errorf("%w: destructor_core %d must be >= %d", ErrInvalid, c.DestructorCore, constants.NoCore)
	case c.RenderCore < constants.NoCore:
		return fmt.Errorf("%w: render_core %d must be >= %d", ErrInvalid, c.RenderCore, constants.NoCore)
	}
	if _, ok := spsc.ParseWait(c.DestructorWait); !ok {
		return fmt.Errorf("%w: destructor_wait %q is not spin, backoff or park", ErrInvalid, c.DestructorWait)
	}
	return nil
}

// Filled returns c with zero capacities and an empty wait name replaced by
// their defaults. The zero Config is Default, so both threads stay unpinned.
// Otherwise core fields are left alone since 0 is a real CPU.
func (c Config) Filled() Config {
	if c == (Config{}) {
		return Default()
	}
	if c.MutationCapacity == 0 {
		c.MutationCapacity = constants.MutationCapacity
	}
	if c.DestructorCapacity == 0 {
		c.DestructorCapacity = constants.DestructorCapacity
	}
	if c.RegistryCapacity == 0 {
		c.RegistryCapacity = constants.RegistryCapacity
	}
	if c.DestructorWait == "" {
		c.DestructorWait = spsc.Park.String()
	}
	return c
}

// Wait is the parsed destructor wait strategy, Park if the name is unknown.
func (c Config) Wait() spsc.Wait {
	if w, ok := spsc.ParseWait(c.DestructorWait); ok {
		return w
	}
	return spsc.Park
}
