package signal

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

func generate(cfg GeneratorConfig, rng epistemic.Rand) ([]float64, error) {
	g, err := NewGenerator(cfg, rng)
	if err != nil {
		return nil, err
	}
	return Collect(g), nil
}

func TestUnsupportedMode(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Mode = "sawtooth"
	if _, err := NewGenerator(cfg, nil); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("expected ErrUnsupportedMode, got %v", err)
	}
	cfg.Mode = ModeCustom
	if _, err := NewGenerator(cfg, nil); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("custom without function: got %v", err)
	}
}

func TestConstantAndCustom(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Mode = "Constant"
	cfg.Steps = 3
	cfg.Value = 0.4
	got, err := generate(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0.4, 0.4, 0.4}, got); diff != "" {
		t.Fatalf("constant (-want +got):\n%s", diff)
	}

	cfg.Mode = ModeCustom
	cfg.Custom = func(t int) float64 { return float64(t * t) }
	got, err = generate(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0, 1, 4}, got); diff != "" {
		t.Fatalf("custom (-want +got):\n%s", diff)
	}
}

func TestOscillate(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Mode = ModeOscillate
	cfg.Steps = 20
	got, err := generate(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if math.Abs(v-math.Sin(float64(i)*0.1)) > 1e-12 {
			t.Fatalf("step %d: got %f", i, v)
		}
	}
}

func TestShockDefaultsToMidpoint(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Mode = ModeShock
	cfg.Steps = 10
	cfg.Noise = 0
	got, err := generate(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 0, 0, 0, 2, 2, 2, 2, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("shock (-want +got):\n%s", diff)
	}
}

func TestRandomWalkSeeded(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	a, err := generate(cfg, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := generate(cfg, rand.New(rand.NewSource(9)))
	if len(a) != 100 {
		t.Fatalf("expected 100 values, got %d", len(a))
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("seeded walks differ:\n%s", diff)
	}
}

func TestSlice(t *testing.T) {
	src := FromSlice([]float64{1, 2})
	if diff := cmp.Diff([]float64{1, 2}, Collect(src)); diff != "" {
		t.Fatal(diff)
	}
	if _, ok := src.Next(); ok {
		t.Fatal("exhausted slice should stay exhausted")
	}
}
