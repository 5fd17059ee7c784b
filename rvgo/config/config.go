// Package config describes which instruction-family extensions a transpiled program may use.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var ErrInvalidConfig = errors.New("invalid runtime config")

// Extension identifies one instruction family.
type Extension uint8

const (
	RV32I Extension = iota
	RV32M
	IO
)

func (e Extension) String() string {
	switch e {
	case RV32I:
		return "rv32i"
	case RV32M:
		return "rv32m"
	case IO:
		return "io"
	default:
		return fmt.Sprintf("extension(%d)", uint8(e))
	}
}

// Config enumerates every extension explicitly. The system (terminate, phantom) instructions
// are part of RV32I and thus always present in a valid config.
type Config struct {
	RV32I bool `json:"rv32i"`
	RV32M bool `json:"rv32m"`
	IO    bool `json:"io"`
}

// Default is the configuration used by both invocation modes.
func Default() Config {
	return Config{RV32I: true, RV32M: true, IO: true}
}

// New validates the given config before handing it out.
func New(c Config) (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Parse builds a config from a comma separated list of extension names.
func Parse(s string) (Config, error) {
	var c Config
	var result error
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "rv32i":
			c.RV32I = true
		case "rv32m":
			c.RV32M = true
		case "io":
			c.IO = true
		case "":
		default:
			result = multierror.Append(result, fmt.Errorf("%w: unknown extension %q", ErrInvalidConfig, name))
		}
	}
	if result != nil {
		return Config{}, result
	}
	return New(c)
}

func (c Config) Validate() error {
	var result error
	if !c.RV32I {
		result = multierror.Append(result, fmt.Errorf("%w: rv32i is required", ErrInvalidConfig))
	}
	if c.RV32M && !c.RV32I {
		result = multierror.Append(result, fmt.Errorf("%w: rv32m depends on rv32i", ErrInvalidConfig))
	}
	if c.IO && !c.RV32I {
		result = multierror.Append(result, fmt.Errorf("%w: io depends on rv32i", ErrInvalidConfig))
	}
	return result
}

func (c Config) Enabled(ext Extension) bool {
	switch ext {
	case RV32I:
		return c.RV32I
	case RV32M:
		return c.RV32M
	case IO:
		return c.IO
	default:
		return false
	}
}

// Extensions lists the enabled extensions in their fixed application order.
func (c Config) Extensions() []Extension {
	var out []Extension
	for _, ext := range []Extension{RV32I, RV32M, IO} {
		if c.Enabled(ext) {
			out = append(out, ext)
		}
	}
	return out
}

func (c Config) String() string {
	names := make([]string, 0, 3)
	for _, ext := range c.Extensions() {
		names = append(names, ext.String())
	}
	return strings.Join(names, ",")
}
