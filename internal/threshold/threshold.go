// Package threshold holds the built-in rupture threshold policies Θ(t).
package threshold

import (
	"fmt"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// Names of the built-in variants.
const (
	NameLinearGrowth    = "linear_growth"
	NameStochasticNoise = "stochastic_noise"
	NameSaturating      = "saturating"
	NameCoupledField    = "coupled_field"
)

// #region variants
// LinearGrowth is Θ = θ0 + a·E.
type LinearGrowth struct{}

func (LinearGrowth) Name() string { return NameLinearGrowth }

func (LinearGrowth) Threshold(s epistemic.Step) float64 {
	return s.Config.Theta0 + s.Config.A*s.Memory
}

// StochasticNoise is Θ = θ0 + a·E + N(0, σ), drawn fresh per call.
type StochasticNoise struct{}

func (StochasticNoise) Name() string { return NameStochasticNoise }

func (StochasticNoise) Threshold(s epistemic.Step) float64 {
	return s.Config.Theta0 + s.Config.A*s.Memory + epistemic.Gaussian(s.Rand, s.Config.SigmaTheta)
}

// Saturating is Θ = θ0 + a·E/(1 + b·E): tolerance grows with diminishing returns.
type Saturating struct{}

func (Saturating) Name() string { return NameSaturating }

func (Saturating) Threshold(s epistemic.Step) float64 {
	c := s.Config
	return c.Theta0 + (c.A*s.Memory)/(1+c.B*s.Memory)
}

// CoupledField is Θ = θ0 + a·E + w·mean(peer E). No peers contribute 0.
type CoupledField struct{}

func (CoupledField) Name() string { return NameCoupledField }

func (CoupledField) Threshold(s epistemic.Step) float64 {
	return s.Config.Theta0 + s.Config.A*s.Memory + s.Config.PeerWeight*s.PeerMean()
}

// #endregion variants

// #region custom
// Func adapts a caller-supplied function. It reports itself as "custom".
type Func func(s epistemic.Step) float64

func (f Func) Threshold(s epistemic.Step) float64 { return f(s) }

func (Func) Name() string { return "custom" }

// #endregion custom

// #region registry
var registry = map[string]epistemic.Thresholder{
	NameLinearGrowth:    LinearGrowth{},
	NameStochasticNoise: StochasticNoise{},
	NameSaturating:      Saturating{},
	NameCoupledField:    CoupledField{},
}

// ByName resolves a built-in variant.
func ByName(name string) (epistemic.Thresholder, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown threshold %q", name)
	}
	return t, nil
}

// Describe lists the built-in variants.
func Describe() []epistemic.Variant {
	return []epistemic.Variant{
		{Name: NameLinearGrowth, Formula: "Θ = Θ₀ + a·E", Meaning: "Adaptive tolerance that widens with accumulated misalignment."},
		{Name: NameStochasticNoise, Formula: "Θ = Θ₀ + a·E + N(0, σ²)", Meaning: "Volatility-aware tolerance with per-step noise."},
		{Name: NameSaturating, Formula: "Θ = Θ₀ + a·E / (1 + b·E)", Meaning: "Diminishing gains in tolerance as misalignment grows."},
		{Name: NameCoupledField, Formula: "Θ = Θ₀ + a·E + c·mean(peer E)", Meaning: "Tolerance shaped by both self memory and the peer memory field."},
	}
}

// #endregion registry
