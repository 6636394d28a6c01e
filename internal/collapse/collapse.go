// Package collapse holds the post-rupture collapse models.
package collapse

import (
	"errors"
	"fmt"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// ErrMissingReceived is returned by AdoptReceived when no signal is supplied.
var ErrMissingReceived = errors.New("adopt_received requires a received value")

// Names of the built-in models.
const (
	NameReset         = "reset"
	NameSoftDecay     = "soft_decay"
	NameAdoptReceived = "adopt_received"
	NameRandomized    = "randomized"
	NameSymbolic      = "symbolic"
)

// #region models
// Reset is a hard collapse: (0, 0).
type Reset struct{}

func (Reset) Name() string { return NameReset }

func (Reset) Collapse(epistemic.CollapseInput) (epistemic.CollapseResult, error) {
	return epistemic.CollapseResult{}, nil
}

// SoftDecay resets the projection and keeps memory scaled by decay_rate.
type SoftDecay struct{}

func (SoftDecay) Name() string { return NameSoftDecay }

func (SoftDecay) Collapse(in epistemic.CollapseInput) (epistemic.CollapseResult, error) {
	return epistemic.CollapseResult{Memory: in.Memory * in.Config.DecayRate}, nil
}

// AdoptReceived overwrites the projection with the received signal: (R, 0).
type AdoptReceived struct{}

func (AdoptReceived) Name() string { return NameAdoptReceived }

func (AdoptReceived) Collapse(in epistemic.CollapseInput) (epistemic.CollapseResult, error) {
	if in.Received == nil {
		return epistemic.CollapseResult{}, ErrMissingReceived
	}
	return epistemic.CollapseResult{Projection: *in.Received}, nil
}

// Randomized scatters the projection: (N(0, σ_collapse), 0).
type Randomized struct{}

func (Randomized) Name() string { return NameRandomized }

func (Randomized) Collapse(in epistemic.CollapseInput) (epistemic.CollapseResult, error) {
	return epistemic.CollapseResult{Projection: epistemic.Gaussian(in.Rand, in.Config.SigmaCollapse)}, nil
}

// #endregion models

// #region symbolic
type symbolic struct {
	base  epistemic.Collapser
	label string
}

// Symbolic wraps base so every result carries label. An empty label
// becomes "unspecified".
func Symbolic(base epistemic.Collapser, label string) epistemic.Collapser {
	if label == "" {
		label = "unspecified"
	}
	return symbolic{base: base, label: label}
}

func (s symbolic) Name() string {
	return fmt.Sprintf("%s(%s)", NameSymbolic, epistemic.NameOf(s.base))
}

func (s symbolic) Collapse(in epistemic.CollapseInput) (epistemic.CollapseResult, error) {
	res, err := s.base.Collapse(in)
	if err != nil {
		return epistemic.CollapseResult{}, err
	}
	res.Label = s.label
	return res, nil
}

// #endregion symbolic

// #region registry
// ByName resolves a built-in model.
func ByName(name string) (epistemic.Collapser, error) {
	switch name {
	case NameReset:
		return Reset{}, nil
	case NameSoftDecay:
		return SoftDecay{}, nil
	case NameAdoptReceived:
		return AdoptReceived{}, nil
	case NameRandomized:
		return Randomized{}, nil
	}
	return nil, fmt.Errorf("unknown collapse model %q", name)
}

// Describe lists the built-in models.
func Describe() []epistemic.Variant {
	return []epistemic.Variant{
		{Name: NameReset, Formula: "V′ = 0, E′ = 0", Meaning: "Hard collapse: projection and memory wiped."},
		{Name: NameSoftDecay, Formula: "V′ = 0, E′ = E·decay", Meaning: "Identity reboot with fading memory."},
		{Name: NameAdoptReceived, Formula: "V′ = R, E′ = 0", Meaning: "Assimilation: projection overwritten by the received signal."},
		{Name: NameRandomized, Formula: "V′ = N(0, σ²), E′ = 0", Meaning: "Projection disintegrates into a stochastic identity."},
		{Name: NameSymbolic, Formula: "wrapped collapse + label", Meaning: "Collapse events tagged for tracking and zone mapping."},
	}
}

// #endregion registry
