package sim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/heraclitus0/epacog/internal/collapse"
	"github.com/heraclitus0/epacog/internal/epistemic"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a drift regression fixture.
type Fixture struct {
	Description string            `json:"description"`
	Seed        int64             `json:"seed,omitempty"` // engine seed; only matters with threshold noise
	Config      epistemic.Config  `json:"config"`
	Initial     FixtureInitial    `json:"initial"`
	Collapse    string            `json:"collapse,omitempty"` // driver collapse model name
	DecayMemory bool              `json:"decay_memory"`
	Signals     []float64         `json:"signals"`
	Expected    []FixtureExpected `json:"expected"`
}

// FixtureInitial is the starting projection and memory.
type FixtureInitial struct {
	Projection float64 `json:"V"`
	Memory     float64 `json:"E"`
}

// FixtureExpected captures the expected outcome per step.
type FixtureExpected struct {
	Step         int    `json:"t"`
	Ruptured     bool   `json:"ruptured"`
	CollapseType string `json:"collapse_type,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToEngine builds a fresh engine with the default policies, seeded with
// f.Seed.
func (f *Fixture) ToEngine() *epistemic.State {
	return epistemic.New(
		epistemic.WithConfig(f.Config),
		epistemic.WithInitial(f.Initial.Projection, f.Initial.Memory),
		epistemic.WithSeed(f.Seed),
	)
}

// ToDriftConfig resolves the driver collapse by name.
func (f *Fixture) ToDriftConfig() (DriftConfig, error) {
	cfg := DriftConfig{Steps: len(f.Signals), DecayMemory: f.DecayMemory}
	if f.Collapse != "" {
		c, err := collapse.ByName(f.Collapse)
		if err != nil {
			return DriftConfig{}, fmt.Errorf("fixture collapse: %w", err)
		}
		cfg.Collapse = c
	}
	return cfg, nil
}

// #endregion fixture-loader

// #region fixture-export

// NewFixture records a completed run as a fixture whose expectations are the
// run's own outcomes.
func NewFixture(description string, cfg epistemic.Config, initial FixtureInitial, collapseName string, decay bool, trace []epistemic.Snapshot) *Fixture {
	f := &Fixture{
		Description: description,
		Config:      cfg,
		Initial:     initial,
		Collapse:    collapseName,
		DecayMemory: decay,
		Signals:     make([]float64, 0, len(trace)),
		Expected:    make([]FixtureExpected, 0, len(trace)),
	}
	for _, e := range trace {
		f.Signals = append(f.Signals, e.Received)
		f.Expected = append(f.Expected, FixtureExpected{
			Step:         e.Step,
			Ruptured:     e.Ruptured,
			CollapseType: e.CollapseType,
		})
	}
	return f
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-export
