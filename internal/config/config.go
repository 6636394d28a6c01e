// Package config loads simulation scenarios and assembles the engine,
// policies and signal source they describe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/signal"
)

// ErrInvalidScenario wraps every validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Environment overrides, applied after the file.
const (
	EnvSeed       = "EPACOG_SEED"
	EnvSteps      = "EPACOG_STEPS"
	EnvSignalMode = "EPACOG_SIGNAL_MODE"
)

// Collapse stages.
const (
	StageEngine = "engine"
	StageDriver = "driver"
)

// #region types
// Scenario is a complete, file-expressible simulation setup.
type Scenario struct {
	Name        string                 `json:"name" yaml:"name"`
	Seed        int64                  `json:"seed" yaml:"seed"`
	Initial     Initial                `json:"initial" yaml:"initial"`
	Engine      epistemic.Config       `json:"engine" yaml:"engine"`
	Threshold   string                 `json:"threshold" yaml:"threshold" validate:"omitempty,oneof=linear_growth stochastic_noise saturating coupled_field"`
	Realign     string                 `json:"realign" yaml:"realign" validate:"omitempty,oneof=linear tanh decay"`
	Rupture     RuptureSpec            `json:"rupture" yaml:"rupture"`
	Collapse    CollapseSpec           `json:"collapse" yaml:"collapse"`
	Peers       []float64              `json:"peers" yaml:"peers"` // memory values of static peer engines
	DecayMemory bool                   `json:"decay_memory" yaml:"decay_memory"`
	Signal      signal.GeneratorConfig `json:"signal" yaml:"signal"`
}

// Initial is the starting projection and memory.
type Initial struct {
	Projection float64 `json:"V" yaml:"V"`
	Memory     float64 `json:"E" yaml:"E"`
}

// RuptureSpec selects a rupture strategy. An empty strategy keeps the engine
// default Δ > Θ. Unknown strategies are accepted and never rupture.
type RuptureSpec struct {
	Strategy string `json:"strategy" yaml:"strategy"`
	Theta    string `json:"theta" yaml:"theta" validate:"omitempty,oneof=linear_growth stochastic_noise saturating coupled_field"`
}

// CollapseSpec selects a collapse model and where it applies.
type CollapseSpec struct {
	Model string `json:"model" yaml:"model" validate:"omitempty,oneof=reset soft_decay adopt_received randomized"`
	Label string `json:"label" yaml:"label"` // wraps the model with collapse.Symbolic when set
	Stage string `json:"stage" yaml:"stage" validate:"omitempty,oneof=engine driver"`
}

// DefaultScenario is a seeded 100-step random walk through the default engine.
func DefaultScenario() Scenario {
	return Scenario{
		Name:   "default",
		Seed:   42,
		Engine: epistemic.DefaultConfig(),
		Signal: signal.DefaultGeneratorConfig(),
	}
}

// #endregion types

// #region load
// Load builds a scenario from defaults, then the file at path (YAML or
// JSON, optional), then environment overrides, and validates the result.
func Load(path string) (Scenario, error) {
	sc := DefaultScenario()

	if path != "" {
		if err := loadFile(path, &sc); err != nil {
			return sc, fmt.Errorf("load scenario file: %w", err)
		}
	}

	if err := loadEnv(&sc); err != nil {
		return sc, err
	}
	sc.Signal.Mode = strings.ToLower(sc.Signal.Mode)

	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}

func loadFile(path string, sc *Scenario) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, sc); err != nil {
		if jsonErr := json.Unmarshal(data, sc); jsonErr != nil {
			return fmt.Errorf("parse scenario (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(sc *Scenario) error {
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidScenario, EnvSeed, v, err)
		}
		sc.Seed = seed
	}
	if v := os.Getenv(EnvSteps); v != "" {
		steps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidScenario, EnvSteps, v, err)
		}
		sc.Signal.Steps = steps
	}
	if v := os.Getenv(EnvSignalMode); v != "" {
		sc.Signal.Mode = v
	}
	return nil
}

// #endregion load

// #region validate
var validate = validator.New()

// Validate checks struct tags and the rules that cannot be expressed as tags.
func (s Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	switch s.Signal.Mode {
	case signal.ModeRandomWalk, signal.ModeOscillate, signal.ModeShock, signal.ModeConstant:
	default:
		return fmt.Errorf("%w: signal mode %q cannot be set from a scenario", ErrInvalidScenario, s.Signal.Mode)
	}
	if s.Collapse.Label != "" && s.Collapse.Model == "" {
		return fmt.Errorf("%w: collapse label needs a model", ErrInvalidScenario)
	}
	return nil
}

// #endregion validate
