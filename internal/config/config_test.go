package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/signal"
	"github.com/heraclitus0/epacog/internal/sim"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultScenario(t *testing.T) {
	sc := DefaultScenario()
	assert.Equal(t, int64(42), sc.Seed)
	assert.Equal(t, epistemic.DefaultConfig(), sc.Engine)
	assert.Equal(t, signal.ModeRandomWalk, sc.Signal.Mode)
	assert.Equal(t, 100, sc.Signal.Steps)
	require.NoError(t, sc.Validate())
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	path := writeFile(t, "scenario.yaml", `
name: shock-test
seed: 7
initial:
  V: 0.5
engine:
  theta0: 0.2
threshold: saturating
rupture:
  strategy: stochastic
collapse:
  model: soft_decay
  label: ct
  stage: driver
signal:
  mode: shock
  steps: 40
`)
	sc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "shock-test", sc.Name)
	assert.Equal(t, int64(7), sc.Seed)
	assert.Equal(t, 0.5, sc.Initial.Projection)
	assert.Equal(t, 0.2, sc.Engine.Theta0)
	assert.Equal(t, 0.05, sc.Engine.A, "unset engine keys keep their defaults")
	assert.Equal(t, 0.05, sc.Signal.Noise, "unset signal keys keep their defaults")
	assert.Equal(t, 40, sc.Signal.Steps)
	assert.Equal(t, StageDriver, sc.Collapse.Stage)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "scenario.json", `{"seed": 3, "signal": {"mode": "constant", "steps": 5, "value": 1.5}}`)
	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sc.Seed)
	assert.Equal(t, signal.ModeConstant, sc.Signal.Mode)
	assert.Equal(t, 1.5, sc.Signal.Value)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "scenario.yaml", "seed: 1\nsignal:\n  steps: 10\n")
	t.Setenv(EnvSeed, "99")
	t.Setenv(EnvSteps, "25")
	t.Setenv(EnvSignalMode, "Oscillate")

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(99), sc.Seed)
	assert.Equal(t, 25, sc.Signal.Steps)
	assert.Equal(t, signal.ModeOscillate, sc.Signal.Mode)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"bad threshold", "threshold: spiral\n", nil},
		{"bad collapse model", "collapse:\n  model: explode\n", nil},
		{"bad stage", "collapse:\n  model: reset\n  stage: somewhere\n", nil},
		{"negative sigma", "engine:\n  sigma_theta: -1\n", nil},
		{"decay out of range", "engine:\n  decay_rate: 1.5\n", nil},
		{"custom signal", "signal:\n  mode: custom\n", nil},
		{"unknown signal", "signal:\n  mode: sawtooth\n", nil},
		{"label without model", "collapse:\n  label: orphan\n", nil},
		{"bad env seed", "", map[string]string{EnvSeed: "abc"}},
		{"bad env steps", "", map[string]string{EnvSteps: "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "scenario.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidScenario)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUnknownRuptureStrategyIsPermissive(t *testing.T) {
	sc := DefaultScenario()
	sc.Rupture.Strategy = "quantum"
	require.NoError(t, sc.Validate())

	sc.Signal = signal.GeneratorConfig{Mode: signal.ModeConstant, Steps: 5, Value: 100}
	a, err := sc.Build(nil)
	require.NoError(t, err)
	trace, err := sim.Drift(a.Engine, a.Source, a.Drift)
	require.NoError(t, err)
	for _, e := range trace {
		assert.False(t, e.Ruptured, "unknown strategy must never rupture")
	}
	assert.Equal(t, "quantum", a.Setup.RupturePolicy)
}

func TestBuildWiresPolicies(t *testing.T) {
	sc := DefaultScenario()
	sc.Threshold = "coupled_field"
	sc.Realign = "tanh"
	sc.Rupture = RuptureSpec{Strategy: "consensus", Theta: "linear_growth"}
	sc.Collapse = CollapseSpec{Model: "adopt_received", Label: "vc", Stage: StageDriver}
	sc.Peers = []float64{0.1, 0.2}

	a, err := sc.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "coupled_field", a.Setup.Threshold)
	assert.Equal(t, "tanh", a.Setup.Realignment)
	assert.Equal(t, "consensus", a.Setup.RupturePolicy)
	assert.Equal(t, "symbolic(adopt_received)", a.Setup.CollapseModel)
	require.NotNil(t, a.Drift.Collapse)

	_, _, _, engineCollapse := a.Engine.Policies()
	assert.Nil(t, engineCollapse, "driver-stage collapse must not be installed in the engine")
}

func TestBuildEngineStageCollapse(t *testing.T) {
	sc := DefaultScenario()
	sc.Collapse = CollapseSpec{Model: "reset", Label: "rcc"}
	a, err := sc.Build(nil)
	require.NoError(t, err)
	assert.Nil(t, a.Drift.Collapse)
	_, _, _, engineCollapse := a.Engine.Policies()
	require.NotNil(t, engineCollapse)
	assert.Equal(t, "symbolic(reset)", a.Setup.CollapseModel)
}

func TestBuildIsReproducible(t *testing.T) {
	sc := DefaultScenario()
	sc.Signal.Mode = signal.ModeShock
	run := func() []epistemic.Snapshot {
		a, err := sc.Build(nil)
		require.NoError(t, err)
		trace, err := sim.Drift(a.Engine, a.Source, a.Drift)
		require.NoError(t, err)
		return trace
	}
	first := run()
	require.Len(t, first, 100)
	if diff := cmp.Diff(first, run()); diff != "" {
		t.Fatalf("same seed, different traces:\n%s", diff)
	}
}

func TestReplayRecordedSignalsReproducesRun(t *testing.T) {
	sc := DefaultScenario()
	a, err := sc.Build(nil)
	require.NoError(t, err)
	original, err := sim.Drift(a.Engine, a.Source, a.Drift)
	require.NoError(t, err)

	signals := make([]float64, len(original))
	for i, e := range original {
		signals[i] = e.Received
	}
	engine, driverCollapse, err := sc.NewEngine(nil)
	require.NoError(t, err)
	cfg := a.Drift
	cfg.Collapse = driverCollapse
	replayed, err := sim.Drift(engine, signal.FromSlice(signals), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(original, replayed); diff != "" {
		t.Fatalf("replay differs:\n%s", diff)
	}
}
