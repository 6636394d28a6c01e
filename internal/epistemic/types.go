package epistemic

import "math"

// #region config
// Config holds the numeric parameters consumed by the default and built-in
// policies. It is copied into the engine at construction and never mutated
// during a step.
type Config struct {
	Theta0        float64 `json:"theta0" yaml:"theta0"`                                     // base rupture threshold
	A             float64 `json:"a" yaml:"a"`                                               // threshold sensitivity to memory
	B             float64 `json:"b" yaml:"b" validate:"gte=0"`                              // saturation denominator
	SigmaTheta    float64 `json:"sigma_theta" yaml:"sigma_theta" validate:"gte=0"`          // threshold noise
	PeerWeight    float64 `json:"peer_weight" yaml:"peer_weight"`                           // coupled-field peer weight
	K             float64 `json:"k" yaml:"k"`                                               // realignment gain
	K0            float64 `json:"k0" yaml:"k0"`                                             // fatigue realignment base gain
	D             float64 `json:"d" yaml:"d" validate:"gte=0"`                              // fatigue factor
	C             float64 `json:"c" yaml:"c"`                                               // memory gain per unit distortion
	DecayRate     float64 `json:"decay_rate" yaml:"decay_rate" validate:"gte=0,lte=1"`      // soft-decay collapse retention
	MemoryDecay   float64 `json:"memory_decay" yaml:"memory_decay" validate:"gte=0,lte=1"`  // homeostatic memory retention
	SigmaCollapse float64 `json:"sigma_collapse" yaml:"sigma_collapse" validate:"gte=0"`    // randomized collapse noise
	Slope         float64 `json:"slope" yaml:"slope"`                                       // stochastic rupture sigmoid slope
}

// DefaultConfig returns the documented defaults for every parameter.
func DefaultConfig() Config {
	return Config{
		Theta0:        0.35,
		A:             0.05,
		B:             0.3,
		SigmaTheta:    0.025,
		PeerWeight:    0.1,
		K:             0.3,
		K0:            0.3,
		D:             0.5,
		C:             0.1,
		DecayRate:     0.5,
		MemoryDecay:   0.95,
		SigmaCollapse: 0.5,
		Slope:         10.0,
	}
}

// #endregion config

// #region rand
// Rand is the random source shared by every policy stage of one engine.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

// Gaussian draws N(0, sigma). A zero sigma draws nothing and returns 0.
func Gaussian(r Rand, sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	return r.NormFloat64() * sigma
}

// #endregion rand

// #region step
// Step carries the inputs of one Receive call to the policy stages.
// Projection is the value before this step's update. Threshold is zero
// until the engine has resolved it.
type Step struct {
	Projection float64
	Received   float64
	Distortion float64
	Memory     float64
	Threshold  float64
	Index      int
	Config     Config
	Peers      []float64 // peer memory values, read at the start of the step
	Rand       Rand
}

// PeerMean returns the mean of the peer memory snapshot, or 0 with no peers.
func (s Step) PeerMean() float64 {
	if len(s.Peers) == 0 {
		return 0
	}
	var sum float64
	for _, e := range s.Peers {
		sum += e
	}
	return sum / float64(len(s.Peers))
}

// #endregion step

// #region policies
// Thresholder resolves the rupture threshold Θ for a step.
type Thresholder interface {
	Threshold(s Step) float64
}

// Realigner returns the updated projection for a step that did not rupture.
type Realigner interface {
	Realign(s Step) (float64, error)
}

// RupturePolicy decides whether a step ruptures. s.Threshold is already set.
type RupturePolicy interface {
	ShouldRupture(s Step) bool
}

// Collapser produces the post-rupture projection and memory.
type Collapser interface {
	Collapse(in CollapseInput) (CollapseResult, error)
}

// ThresholdFunc adapts a plain function to Thresholder.
type ThresholdFunc func(s Step) float64

func (f ThresholdFunc) Threshold(s Step) float64 { return f(s) }

// RealignFunc adapts a plain function to Realigner.
type RealignFunc func(s Step) (float64, error)

func (f RealignFunc) Realign(s Step) (float64, error) { return f(s) }

// RuptureFunc adapts a plain function to RupturePolicy.
type RuptureFunc func(s Step) bool

func (f RuptureFunc) ShouldRupture(s Step) bool { return f(s) }

// CollapseFunc adapts a plain function to Collapser.
type CollapseFunc func(in CollapseInput) (CollapseResult, error)

func (f CollapseFunc) Collapse(in CollapseInput) (CollapseResult, error) { return f(in) }

// Named is implemented by built-in policies so callers can describe a setup.
type Named interface {
	Name() string
}

// NameOf returns the policy name, "default" for nil, or "custom".
func NameOf(policy any) string {
	if policy == nil {
		return "default"
	}
	if n, ok := policy.(Named); ok {
		return n.Name()
	}
	return "custom"
}

// Variant is one entry of a built-in policy registry.
type Variant struct {
	Name    string
	Formula string
	Meaning string
}

// #endregion policies

// #region collapse-io
// CollapseInput is the state handed to a Collapser at rupture time.
// Received is nil when the caller has no signal value to offer.
type CollapseInput struct {
	Projection float64
	Memory     float64
	Received   *float64
	Step       int
	Config     Config
	Rand       Rand
}

// CollapseResult is the normalized collapse output. An empty Label is the
// plain (projection, memory) pair form.
type CollapseResult struct {
	Projection float64
	Memory     float64
	Label      string
}

// #endregion collapse-io

// #region snapshot
// Snapshot is one history entry, written once per received signal.
type Snapshot struct {
	Step         int     `json:"t"`
	Projection   float64 `json:"V"`
	Memory       float64 `json:"E"`
	Received     float64 `json:"R"`
	Distortion   float64 `json:"delta"`
	Threshold    float64 `json:"theta"`
	Ruptured     bool    `json:"ruptured"`
	CollapseType string  `json:"collapse_type,omitempty"`
}

// Probe is the read-only view returned by State.Probe. Threshold is a fresh
// evaluation at zero distortion; LastThreshold is the value recorded in the
// last snapshot. The two differ when the threshold policy is stochastic.
type Probe struct {
	Projection    float64
	Memory        float64
	Threshold     float64
	Step          int
	Distortion    *float64
	LastThreshold *float64
	Ruptured      *bool
	CollapseType  string
}

// #endregion snapshot

// #region status
// Status is the minimal symbolic marker of the engine.
type Status string

const (
	StatusEmpty   Status = "∅"
	StatusStable  Status = "⊙"
	StatusRupture Status = "⚠"
)

// DefaultCollapseLabel tags the built-in reset applied when no collapser is set.
const DefaultCollapseLabel = "default"

// #endregion status

// #region distortion
// Distortion is the misalignment |received - projection|.
func Distortion(projection, received float64) float64 {
	return math.Abs(received - projection)
}

// #endregion distortion
