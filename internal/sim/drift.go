// Package sim drives an engine over a signal stream and records its trace.
package sim

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/realign"
	"github.com/heraclitus0/epacog/internal/signal"
)

// LabelRaw tags a driver collapse whose result carried no label.
const LabelRaw = "raw"

// #region config
// DriftConfig controls a drift run.
type DriftConfig struct {
	Steps       int                 // at most this many signals; <= 0 drains the source
	Collapse    epistemic.Collapser // applied after an engine rupture; nil keeps the engine's result
	DecayMemory bool                // apply E' = E·memory_decay after every step
	Metrics     *Metrics
	Logger      *slog.Logger
}

// DefaultDriftConfig runs 100 steps with no driver collapse and no decay.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{Steps: 100}
}

// #endregion config

// #region drift
// Drift feeds the engine one signal per step and returns the trace. On
// rupture the driver collapse, when set, overwrites the engine's projection
// and memory and the trace entry records the overwritten values. Trace steps
// are numbered from 0 for this run regardless of the engine's prior history.
// On error the trace up to the failed step is returned with the error.
func Drift(state *epistemic.State, src signal.Source, cfg DriftConfig) ([]epistemic.Snapshot, error) {
	d := NewDriver(state, cfg)
	var trace []epistemic.Snapshot
	for cfg.Steps <= 0 || d.Steps() < cfg.Steps {
		r, ok := src.Next()
		if !ok {
			break
		}
		entry, err := d.Step(r)
		if err != nil {
			return trace, err
		}
		trace = append(trace, entry)
	}
	return trace, nil
}

// Driver applies the per-step drift sequence to one engine: engine step,
// driver collapse, then homeostatic decay. Steps is ignored.
type Driver struct {
	state *epistemic.State
	cfg   DriftConfig
	log   *slog.Logger
	t     int
}

// NewDriver wraps state. A nil cfg.Logger discards logs.
func NewDriver(state *epistemic.State, cfg DriftConfig) *Driver {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{state: state, cfg: cfg, log: log}
}

// Steps returns how many signals the driver has applied.
func (d *Driver) Steps() int { return d.t }

// Step applies r and returns the trace entry. A failed step is not counted.
func (d *Driver) Step(r float64) (epistemic.Snapshot, error) {
	t, state := d.t, d.state

	// 1. Engine step
	if err := state.Receive(r); err != nil {
		return epistemic.Snapshot{}, fmt.Errorf("drift step %d: %w", t, err)
	}
	entry, _ := state.Last()
	entry.Step = t

	// 2. Driver collapse
	if entry.Ruptured && d.cfg.Collapse != nil {
		received := r
		res, err := d.cfg.Collapse.Collapse(epistemic.CollapseInput{
			Projection: state.Projection(),
			Memory:     state.Memory(),
			Received:   &received,
			Step:       t,
			Config:     state.Config(),
			Rand:       state.Rand(),
		})
		if err != nil {
			return epistemic.Snapshot{}, fmt.Errorf("drift collapse at step %d: %w", t, err)
		}
		state.Override(res.Projection, res.Memory)
		entry.Projection, entry.Memory = res.Projection, res.Memory
		entry.CollapseType = res.Label
		if entry.CollapseType == "" {
			entry.CollapseType = LabelRaw
		}
	}

	// 3. Homeostatic decay
	if d.cfg.DecayMemory {
		decayed := realign.DecayMemory(state.Memory(), state.Config().MemoryDecay)
		state.Override(state.Projection(), decayed)
		entry.Memory = decayed
	}

	d.log.Debug("drift step",
		"t", t, "R", r, "V", entry.Projection, "E", entry.Memory,
		"delta", entry.Distortion, "theta", entry.Threshold, "ruptured", entry.Ruptured)
	if entry.Ruptured {
		d.log.Info("rupture", "t", t, "delta", entry.Distortion, "theta", entry.Threshold,
			"collapse_type", entry.CollapseType)
	}
	d.cfg.Metrics.Observe(entry)

	d.t++
	return entry, nil
}

// Reset restarts step numbering, for use after the engine is reset.
func (d *Driver) Reset() { d.t = 0 }

// #endregion drift

// #region summary
// Summary provides aggregate stats from a drift trace.
type Summary struct {
	TotalSteps      int            `json:"total_steps"`
	Ruptures        int            `json:"ruptures"`
	Realignments    int            `json:"realignments"`
	CollapseTypes   map[string]int `json:"collapse_types"`
	MaxDistortion   float64        `json:"max_distortion"`
	FinalProjection float64        `json:"final_projection"`
	FinalMemory     float64        `json:"final_memory"`
}

// Summarize computes aggregate stats from a trace.
func Summarize(trace []epistemic.Snapshot) Summary {
	s := Summary{
		TotalSteps:    len(trace),
		CollapseTypes: map[string]int{},
	}
	for _, e := range trace {
		if e.Ruptured {
			s.Ruptures++
			if e.CollapseType != "" {
				s.CollapseTypes[e.CollapseType]++
			}
		} else {
			s.Realignments++
		}
		if e.Distortion > s.MaxDistortion {
			s.MaxDistortion = e.Distortion
		}
	}
	if n := len(trace); n > 0 {
		s.FinalProjection = trace[n-1].Projection
		s.FinalMemory = trace[n-1].Memory
	}
	return s
}

// #endregion summary

// #region describe
// Setup summarizes the components of a simulation.
type Setup struct {
	Realignment       string                  `json:"realignment_function"`
	Threshold         string                  `json:"threshold_function"`
	RupturePolicy     string                  `json:"rupture_policy"`
	CollapseModel     string                  `json:"collapse_model"`
	SignalProfile     *signal.GeneratorConfig `json:"signal_profile,omitempty"`
	InitialProjection float64                 `json:"initial_projection"`
	InitialMemory     float64                 `json:"initial_memory"`
}

// Describe reports the policies of state and the signal profile. The driver
// collapse, when set, is reported over the engine's own collapse model. It
// should be called before the run to capture the initial V and E.
func Describe(state *epistemic.State, profile *signal.GeneratorConfig, driverCollapse epistemic.Collapser) Setup {
	th, re, rp, c := state.Policies()
	s := Setup{
		Realignment:       epistemic.NameOf(re),
		Threshold:         epistemic.NameOf(th),
		RupturePolicy:     epistemic.NameOf(rp),
		CollapseModel:     "none",
		SignalProfile:     profile,
		InitialProjection: state.Projection(),
		InitialMemory:     state.Memory(),
	}
	switch {
	case driverCollapse != nil:
		s.CollapseModel = epistemic.NameOf(driverCollapse)
	case c != nil:
		s.CollapseModel = epistemic.NameOf(c)
	}
	return s
}

// #endregion describe
