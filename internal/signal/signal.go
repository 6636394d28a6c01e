// Package signal generates received-signal streams R(t) for simulations.
package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// ErrUnsupportedMode is returned for an unknown mode or a custom mode with no function.
var ErrUnsupportedMode = errors.New("unsupported signal mode")

// Modes accepted by NewGenerator.
const (
	ModeRandomWalk = "random_walk"
	ModeOscillate  = "oscillate"
	ModeShock      = "shock"
	ModeConstant   = "constant"
	ModeCustom     = "custom"
)

// #region config
// GeneratorConfig describes a signal profile.
type GeneratorConfig struct {
	Mode           string  `json:"mode" yaml:"mode" validate:"required"`
	Steps          int     `json:"steps" yaml:"steps" validate:"gte=0"`
	Start          float64 `json:"start" yaml:"start"`
	Freq           float64 `json:"freq" yaml:"freq"`
	Noise          float64 `json:"noise" yaml:"noise" validate:"gte=0"`
	ShockAt        int     `json:"shock_at" yaml:"shock_at"` // negative selects Steps/2
	ShockMagnitude float64 `json:"shock_magnitude" yaml:"shock_magnitude"`
	Value          float64 `json:"value" yaml:"value"`

	// Custom yields R(t) in custom mode.
	Custom func(t int) float64 `json:"-" yaml:"-"`
}

// DefaultGeneratorConfig returns a 100-step random walk from 0.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Mode:           ModeRandomWalk,
		Steps:          100,
		Freq:           0.1,
		Noise:          0.05,
		ShockAt:        -1,
		ShockMagnitude: 2.0,
	}
}

// #endregion config

// #region source
// Source yields signal values until exhausted.
type Source interface {
	Next() (float64, bool)
}

// Slice is a fixed sequence of signal values.
type Slice struct {
	values []float64
	i      int
}

// FromSlice wraps values as a Source.
func FromSlice(values []float64) *Slice {
	return &Slice{values: values}
}

func (s *Slice) Next() (float64, bool) {
	if s.i >= len(s.values) {
		return 0, false
	}
	v := s.values[s.i]
	s.i++
	return v, true
}

// #endregion source

// #region generator
// Generator produces cfg.Steps values according to cfg.Mode.
type Generator struct {
	cfg     GeneratorConfig
	rng     epistemic.Rand
	shockAt int
	t       int
	r       float64
}

// NewGenerator validates the mode and prepares a generator.
func NewGenerator(cfg GeneratorConfig, rng epistemic.Rand) (*Generator, error) {
	cfg.Mode = strings.ToLower(cfg.Mode)
	switch cfg.Mode {
	case ModeRandomWalk, ModeOscillate, ModeShock, ModeConstant:
	case ModeCustom:
		if cfg.Custom == nil {
			return nil, fmt.Errorf("%w: custom mode needs a function", ErrUnsupportedMode)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, cfg.Mode)
	}
	shockAt := cfg.ShockAt
	if shockAt < 0 {
		shockAt = cfg.Steps / 2
	}
	return &Generator{cfg: cfg, rng: rng, shockAt: shockAt, r: cfg.Start}, nil
}

// Config returns the normalized configuration.
func (g *Generator) Config() GeneratorConfig { return g.cfg }

func (g *Generator) Next() (float64, bool) {
	if g.t >= g.cfg.Steps {
		return 0, false
	}
	t := g.t
	switch g.cfg.Mode {
	case ModeRandomWalk:
		g.r += epistemic.Gaussian(g.rng, g.cfg.Noise)
	case ModeOscillate:
		g.r = math.Sin(float64(t) * g.cfg.Freq)
	case ModeShock:
		if t == g.shockAt {
			g.r += g.cfg.ShockMagnitude
		} else {
			g.r += epistemic.Gaussian(g.rng, g.cfg.Noise)
		}
	case ModeConstant:
		g.r = g.cfg.Value
	case ModeCustom:
		g.r = g.cfg.Custom(t)
	}
	g.t++
	return g.r, true
}

// #endregion generator

// #region collect
// Collect drains src into a slice.
func Collect(src Source) []float64 {
	var out []float64
	for {
		v, ok := src.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

// #endregion collect
