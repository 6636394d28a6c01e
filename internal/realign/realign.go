// Package realign holds the built-in realignment operators that move the
// projection toward a received signal when no rupture occurs.
package realign

import (
	"errors"
	"fmt"
	"math"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// ErrNotImplemented is returned by Custom when no function was supplied.
var ErrNotImplemented = errors.New("custom realignment not implemented")

// Names of the built-in variants.
const (
	NameLinear = "linear"
	NameTanh   = "tanh"
	NameDecay  = "decay"
	NameCustom = "custom"
)

// #region variants
// Linear is V' = V + k·Δ·(1+E).
type Linear struct{}

func (Linear) Name() string { return NameLinear }

func (Linear) Realign(s epistemic.Step) (float64, error) {
	return s.Projection + s.Config.K*s.Distortion*(1+s.Memory), nil
}

// Tanh is V' = V + k·tanh(Δ)/(1+E): bounded steps damped by memory.
type Tanh struct{}

func (Tanh) Name() string { return NameTanh }

func (Tanh) Realign(s epistemic.Step) (float64, error) {
	return s.Projection + s.Config.K*math.Tanh(s.Distortion)/(1+s.Memory), nil
}

// Decay is V' = V + [k0/(1+d·E)]·Δ: realignment slows as memory accumulates.
type Decay struct{}

func (Decay) Name() string { return NameDecay }

func (Decay) Realign(s epistemic.Step) (float64, error) {
	gain := s.Config.K0 / (1 + s.Config.D*s.Memory)
	return s.Projection + gain*s.Distortion, nil
}

// #endregion variants

// #region custom
// Custom is the user slot. A nil Fn fails every call with ErrNotImplemented.
type Custom struct {
	Fn func(s epistemic.Step) (float64, error)
}

func (Custom) Name() string { return NameCustom }

func (c Custom) Realign(s epistemic.Step) (float64, error) {
	if c.Fn == nil {
		return 0, ErrNotImplemented
	}
	return c.Fn(s)
}

// #endregion custom

// #region memory-decay
// DecayMemory applies homeostatic forgetting, E' = E·rate.
func DecayMemory(memory, rate float64) float64 {
	return memory * rate
}

// #endregion memory-decay

// #region registry
// ByName resolves a built-in variant. "custom" resolves to an empty Custom.
func ByName(name string) (epistemic.Realigner, error) {
	switch name {
	case NameLinear:
		return Linear{}, nil
	case NameTanh:
		return Tanh{}, nil
	case NameDecay:
		return Decay{}, nil
	case NameCustom:
		return Custom{}, nil
	}
	return nil, fmt.Errorf("unknown realignment %q", name)
}

// Describe lists the built-in variants.
func Describe() []epistemic.Variant {
	return []epistemic.Variant{
		{Name: NameLinear, Formula: "V′ = V + k·∆·(1 + E)", Meaning: "Realignment grows with distortion and memory stress."},
		{Name: NameTanh, Formula: "V′ = V + k·tanh(∆) / (1 + E)", Meaning: "Smooth bounded convergence that dampens under high drift."},
		{Name: NameDecay, Formula: "V′ = V + [k₀ / (1 + d·E)]·∆", Meaning: "Fatigue-aware: realignment slows as memory accumulates."},
		{Name: NameCustom, Formula: "user-defined", Meaning: "Caller-supplied operator."},
	}
}

// #endregion registry
