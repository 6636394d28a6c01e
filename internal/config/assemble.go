package config

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/heraclitus0/epacog/internal/collapse"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/realign"
	"github.com/heraclitus0/epacog/internal/rupture"
	"github.com/heraclitus0/epacog/internal/signal"
	"github.com/heraclitus0/epacog/internal/sim"
	"github.com/heraclitus0/epacog/internal/threshold"
)

// #region assembly
// Assembly is a ready-to-run scenario.
type Assembly struct {
	Engine  *epistemic.State
	Source  signal.Source
	Drift   sim.DriftConfig
	Setup   sim.Setup
	Profile signal.GeneratorConfig
}

// Build assembles the scenario. The engine and the signal generator draw
// from separate streams seeded from Seed, so replaying recorded signals
// through a fresh engine reproduces the run. log may be nil.
func (s Scenario) Build(log *slog.Logger) (*Assembly, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	engine, driverCollapse, err := s.NewEngine(log)
	if err != nil {
		return nil, err
	}

	gen, err := signal.NewGenerator(s.Signal, rand.New(rand.NewSource(s.Seed)))
	if err != nil {
		return nil, fmt.Errorf("build signal: %w", err)
	}
	profile := gen.Config()

	drift := sim.DriftConfig{
		Steps:       s.Signal.Steps,
		Collapse:    driverCollapse,
		DecayMemory: s.DecayMemory,
		Logger:      log,
	}
	return &Assembly{
		Engine:  engine,
		Source:  gen,
		Drift:   drift,
		Setup:   sim.Describe(engine, &profile, driverCollapse),
		Profile: profile,
	}, nil
}

// EngineSeed is the seed of the engine stream. The signal generator uses Seed.
func (s Scenario) EngineSeed() int64 { return s.Seed + 1 }

// NewEngine builds a fresh engine for the scenario and returns the driver
// collapse, if the scenario applies its collapse model in the driver.
func (s Scenario) NewEngine(log *slog.Logger) (*epistemic.State, epistemic.Collapser, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts := []epistemic.Option{
		epistemic.WithConfig(s.Engine),
		epistemic.WithInitial(s.Initial.Projection, s.Initial.Memory),
		epistemic.WithRand(rand.New(rand.NewSource(s.EngineSeed()))),
	}

	if s.Threshold != "" {
		th, err := threshold.ByName(s.Threshold)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		opts = append(opts, epistemic.WithThreshold(th))
	}

	if s.Realign != "" {
		re, err := realign.ByName(s.Realign)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		opts = append(opts, epistemic.WithRealign(re))
	}

	if s.Rupture.Strategy != "" {
		var ropts rupture.Options
		if s.Rupture.Theta != "" {
			th, err := threshold.ByName(s.Rupture.Theta)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
			}
			ropts.Theta = th
		}
		policy := rupture.Build(s.Rupture.Strategy, ropts)
		switch {
		case !policy.Known():
			log.Warn("unknown rupture strategy; steps will never rupture", "strategy", s.Rupture.Strategy)
		case s.Rupture.Strategy == rupture.StrategyHybrid:
			log.Warn("hybrid rupture strategy has no delegate in a scenario; steps will never rupture")
		}
		opts = append(opts, epistemic.WithRupturePolicy(policy))
	}

	if len(s.Peers) > 0 {
		peers := make([]epistemic.Peer, len(s.Peers))
		for i, e := range s.Peers {
			peers[i] = epistemic.New(epistemic.WithInitial(0, e), epistemic.WithSeed(int64(i)))
		}
		opts = append(opts, epistemic.WithPeers(peers...))
	}

	var driverCollapse epistemic.Collapser
	if s.Collapse.Model != "" {
		c, err := collapse.ByName(s.Collapse.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		if s.Collapse.Label != "" {
			c = collapse.Symbolic(c, s.Collapse.Label)
		}
		if s.Collapse.Stage == StageDriver {
			driverCollapse = c
		} else {
			opts = append(opts, epistemic.WithCollapse(c))
		}
	}

	return epistemic.New(opts...), driverCollapse, nil
}

// #endregion assembly
