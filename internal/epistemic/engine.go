package epistemic

import (
	"fmt"
	"math/rand"
	"time"
)

// #region peer
// Peer exposes the memory value of another engine for advisory reads.
type Peer interface {
	Memory() float64
}

// #endregion peer

// #region state-struct
// State is the epistemic-state engine. It is not safe for concurrent use;
// each Receive runs to completion before the next.
type State struct {
	projection   float64
	memory       float64
	step         int
	history      []Snapshot
	collapseType string

	threshold Thresholder
	realign   Realigner
	policy    RupturePolicy
	collapse  Collapser

	config Config
	peers  []Peer
	rng    Rand
}

// Option configures a State at construction.
type Option func(*State)

// WithInitial sets the initial projection and memory.
func WithInitial(projection, memory float64) Option {
	return func(s *State) {
		s.projection = projection
		s.memory = memory
	}
}

// WithThreshold injects the threshold policy.
func WithThreshold(t Thresholder) Option {
	return func(s *State) { s.threshold = t }
}

// WithRealign injects the realignment policy.
func WithRealign(r Realigner) Option {
	return func(s *State) { s.realign = r }
}

// WithRupturePolicy injects the rupture decision.
func WithRupturePolicy(p RupturePolicy) Option {
	return func(s *State) { s.policy = p }
}

// WithCollapse injects the engine-level collapse hook.
func WithCollapse(c Collapser) Option {
	return func(s *State) { s.collapse = c }
}

// WithConfig replaces DefaultConfig.
func WithConfig(c Config) Option {
	return func(s *State) { s.config = c }
}

// WithPeers registers engines whose memory is read at the start of each step.
func WithPeers(peers ...Peer) Option {
	return func(s *State) { s.peers = append([]Peer(nil), peers...) }
}

// WithRand sets the shared random source.
func WithRand(r Rand) Option {
	return func(s *State) { s.rng = r }
}

// WithSeed seeds a fresh math/rand source.
func WithSeed(seed int64) Option {
	return func(s *State) { s.rng = rand.New(rand.NewSource(seed)) }
}

// New creates an engine at V=0, E=0 with DefaultConfig unless overridden.
func New(opts ...Option) *State {
	s := &State{config: DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// #endregion state-struct

// #region accessors
// Projection returns the current projection V.
func (s *State) Projection() float64 { return s.projection }

// Memory returns the current misalignment memory E.
func (s *State) Memory() float64 { return s.memory }

// Step returns the number of signals received since construction or Reset.
func (s *State) Step() int { return s.step }

// CollapseType returns the label of the last rupture, or "".
func (s *State) CollapseType() string { return s.collapseType }

// Config returns the engine configuration.
func (s *State) Config() Config { return s.config }

// Rand returns the engine's random source so collaborators can share it.
func (s *State) Rand() Rand { return s.rng }

// Policies returns the injected policies; nil entries mean the default applies.
func (s *State) Policies() (Thresholder, Realigner, RupturePolicy, Collapser) {
	return s.threshold, s.realign, s.policy, s.collapse
}

// History returns a copy of the snapshot history in temporal order.
func (s *State) History() []Snapshot {
	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}

// Last returns the most recent snapshot.
func (s *State) Last() (Snapshot, bool) {
	if len(s.history) == 0 {
		return Snapshot{}, false
	}
	return s.history[len(s.history)-1], true
}

// #endregion accessors

// #region receive
// Receive applies one signal: distortion, threshold, rupture decision, then
// collapse or realignment, then the snapshot. A policy error abandons the
// step without touching the state.
func (s *State) Receive(received float64) error {
	// 1. Distortion against the projection as it stood before this step
	prev := s.projection
	st := s.newStep(prev, received, Distortion(prev, received))

	// 2. Threshold, evaluated exactly once
	st.Threshold = s.resolveThreshold(st)

	// 3. Rupture decision
	ruptured := st.Distortion > st.Threshold
	if s.policy != nil {
		ruptured = s.policy.ShouldRupture(st)
	}

	snap := Snapshot{
		Step:       s.step,
		Received:   received,
		Distortion: st.Distortion,
		Threshold:  st.Threshold,
		Ruptured:   ruptured,
	}

	// 4. Collapse or realign
	if ruptured {
		res, err := s.applyCollapse(st)
		if err != nil {
			return fmt.Errorf("collapse at step %d: %w", s.step, err)
		}
		s.projection = res.Projection
		s.memory = res.Memory
		s.collapseType = res.Label
		snap.CollapseType = res.Label
	} else {
		next, err := s.applyRealign(st)
		if err != nil {
			return fmt.Errorf("realign at step %d: %w", s.step, err)
		}
		s.projection = next
		s.memory += s.config.C * st.Distortion
	}

	// 5. Record and advance
	snap.Projection = s.projection
	snap.Memory = s.memory
	s.history = append(s.history, snap)
	s.step++
	return nil
}

func (s *State) newStep(projection, received, distortion float64) Step {
	var peers []float64
	if len(s.peers) > 0 {
		peers = make([]float64, len(s.peers))
		for i, p := range s.peers {
			peers[i] = p.Memory()
		}
	}
	return Step{
		Projection: projection,
		Received:   received,
		Distortion: distortion,
		Memory:     s.memory,
		Index:      s.step,
		Config:     s.config,
		Peers:      peers,
		Rand:       s.rng,
	}
}

// resolveThreshold delegates to the injected policy or applies
// theta0 + a·E + N(0, sigma_theta).
func (s *State) resolveThreshold(st Step) float64 {
	if s.threshold != nil {
		return s.threshold.Threshold(st)
	}
	c := st.Config
	return c.Theta0 + c.A*st.Memory + Gaussian(st.Rand, c.SigmaTheta)
}

// applyRealign delegates to the injected policy or applies V + k·Δ·(1+E).
func (s *State) applyRealign(st Step) (float64, error) {
	if s.realign != nil {
		return s.realign.Realign(st)
	}
	return st.Projection + st.Config.K*st.Distortion*(1+st.Memory), nil
}

// applyCollapse delegates to the injected hook or resets to (0, 0) labeled "default".
func (s *State) applyCollapse(st Step) (CollapseResult, error) {
	if s.collapse == nil {
		return CollapseResult{Label: DefaultCollapseLabel}, nil
	}
	received := st.Received
	return s.collapse.Collapse(CollapseInput{
		Projection: st.Projection,
		Memory:     st.Memory,
		Received:   &received,
		Step:       st.Index,
		Config:     st.Config,
		Rand:       st.Rand,
	})
}

// #endregion receive

// #region inspection
// Probe returns the current state with a threshold probed at zero distortion.
// The probe is a fresh draw, not a replay of the recorded threshold.
func (s *State) Probe() Probe {
	p := Probe{
		Projection:   s.projection,
		Memory:       s.memory,
		Threshold:    s.resolveThreshold(s.newStep(s.projection, s.projection, 0)),
		Step:         s.step,
		CollapseType: s.collapseType,
	}
	if last, ok := s.Last(); ok {
		delta, theta, ruptured := last.Distortion, last.Threshold, last.Ruptured
		p.Distortion = &delta
		p.LastThreshold = &theta
		p.Ruptured = &ruptured
	}
	return p
}

// ProjectedDivergence estimates dR/dt as the difference of the last two
// received signals. It reports false with fewer than two entries.
func (s *State) ProjectedDivergence() (float64, bool) {
	n := len(s.history)
	if n < 2 {
		return 0, false
	}
	return s.history[n-1].Received - s.history[n-2].Received, true
}

// RuptureRisk returns last Δ minus a threshold recomputed at that Δ.
// It reports false with an empty history.
func (s *State) RuptureRisk() (float64, bool) {
	last, ok := s.Last()
	if !ok {
		return 0, false
	}
	theta := s.resolveThreshold(s.newStep(s.projection, last.Received, last.Distortion))
	return last.Distortion - theta, true
}

// Symbol returns the status marker of the last step.
func (s *State) Symbol() Status {
	last, ok := s.Last()
	switch {
	case !ok:
		return StatusEmpty
	case last.Ruptured:
		return StatusRupture
	default:
		return StatusStable
	}
}

func (s *State) String() string {
	last, ok := s.Last()
	if !ok {
		return fmt.Sprintf("<EpistemicState %s | t=0>", StatusEmpty)
	}
	return fmt.Sprintf("<EpistemicState %s | t=%d, V=%.4f, ∆=%.4f, Θ=%.4f, E=%.4f>",
		s.Symbol(), s.step, s.projection, last.Distortion, last.Threshold, s.memory)
}

// #endregion inspection

// #region mutation
// Override replaces projection and memory outside of Receive. The driver
// uses it after applying its own collapse model. History is untouched.
func (s *State) Override(projection, memory float64) {
	s.projection = projection
	s.memory = memory
}

// Reset restores the given projection and memory and clears history, the
// step counter and the collapse label.
func (s *State) Reset(projection, memory float64) {
	s.projection = projection
	s.memory = memory
	s.step = 0
	s.history = nil
	s.collapseType = ""
}

// #endregion mutation
