// Package rupture builds rupture decision policies from a strategy name.
package rupture

import (
	"math"

	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/threshold"
)

// Strategy names accepted by Build.
const (
	StrategyThreshold  = "threshold"
	StrategyConsensus  = "consensus"
	StrategyStochastic = "stochastic"
	StrategyHybrid     = "hybrid"
)

// #region options
// Options parameterizes Build. Zero values select the defaults.
type Options struct {
	// Theta recomputes Θ inside the policy. Defaults to stochastic noise.
	Theta epistemic.Thresholder
	// Probability overrides the sigmoid mapping of the stochastic strategy.
	Probability func(s epistemic.Step) float64
	// Hybrid is the delegate of the hybrid strategy.
	Hybrid epistemic.RupturePolicy
}

// #endregion options

// #region policy
// Policy is a built strategy. It satisfies epistemic.RupturePolicy.
type Policy struct {
	strategy string
	opts     Options
}

// Build returns the policy for strategy. Unknown strategies never rupture.
func Build(strategy string, opts Options) *Policy {
	if opts.Theta == nil {
		opts.Theta = threshold.StochasticNoise{}
	}
	return &Policy{strategy: strategy, opts: opts}
}

// Name returns the strategy the policy was built with.
func (p *Policy) Name() string { return p.strategy }

// Known reports whether the strategy is one of the built-ins.
func (p *Policy) Known() bool { return Known(p.strategy) }

func (p *Policy) ShouldRupture(s epistemic.Step) bool {
	switch p.strategy {
	case StrategyThreshold:
		return s.Distortion > p.opts.Theta.Threshold(s)

	case StrategyConsensus:
		if len(s.Peers) == 0 {
			return false
		}
		var sum float64
		for _, e := range s.Peers {
			peer := s
			peer.Memory = e
			sum += p.opts.Theta.Threshold(peer)
		}
		return s.Distortion > sum/float64(len(s.Peers))

	case StrategyStochastic:
		// Θ is drawn even when a probability override is set so the random
		// sequence does not depend on the override.
		risk := Risk(s.Distortion, p.opts.Theta.Threshold(s))
		prob := Probability(risk, s.Config.Slope)
		if p.opts.Probability != nil {
			prob = p.opts.Probability(s)
		}
		return s.Rand.Float64() < prob

	case StrategyHybrid:
		if p.opts.Hybrid == nil {
			return false
		}
		return p.opts.Hybrid.ShouldRupture(s)
	}
	return false
}

// #endregion policy

// #region helpers
// Risk is the rupture pressure Δ − Θ.
func Risk(distortion, theta float64) float64 {
	return distortion - theta
}

// Probability maps a risk to a rupture probability with a logistic curve.
func Probability(risk, slope float64) float64 {
	return 1 / (1 + math.Exp(-risk*slope))
}

// Known reports whether strategy is a built-in name.
func Known(strategy string) bool {
	switch strategy {
	case StrategyThreshold, StrategyConsensus, StrategyStochastic, StrategyHybrid:
		return true
	}
	return false
}

// Describe lists the built-in strategies.
func Describe() []epistemic.Variant {
	return []epistemic.Variant{
		{Name: StrategyThreshold, Formula: "∆ > Θ(t)", Meaning: "Rupture when distortion exceeds individual adaptive tolerance."},
		{Name: StrategyConsensus, Formula: "∆ > mean(Θ(peer agents))", Meaning: "Rupture when distortion exceeds the average peer threshold."},
		{Name: StrategyStochastic, Formula: "P(rupture) = sigmoid(slope·(∆ − Θ))", Meaning: "Probabilistic rupture driven by risk pressure."},
		{Name: StrategyHybrid, Formula: "user-defined", Meaning: "Caller-composed rupture logic."},
	}
}

// #endregion helpers
