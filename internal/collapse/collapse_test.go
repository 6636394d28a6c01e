package collapse

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

func input(v, e float64, r *float64) epistemic.CollapseInput {
	return epistemic.CollapseInput{
		Projection: v,
		Memory:     e,
		Received:   r,
		Config:     epistemic.DefaultConfig(),
		Rand:       rand.New(rand.NewSource(3)),
	}
}

func TestReset(t *testing.T) {
	res, err := Reset{}.Collapse(input(3, 2, nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.Projection != 0 || res.Memory != 0 || res.Label != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSoftDecay(t *testing.T) {
	in := input(1.0, 0.8, nil)
	in.Config.DecayRate = 0.6
	res, err := SoftDecay{}.Collapse(in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Projection != 0 || math.Abs(res.Memory-0.48) > 1e-12 {
		t.Fatalf("got (%f, %f), want (0, 0.48)", res.Projection, res.Memory)
	}
}

func TestAdoptReceived(t *testing.T) {
	if _, err := (AdoptReceived{}).Collapse(input(1, 1, nil)); !errors.Is(err, ErrMissingReceived) {
		t.Fatalf("expected ErrMissingReceived, got %v", err)
	}
	r := 0.75
	res, err := AdoptReceived{}.Collapse(input(1, 1, &r))
	if err != nil {
		t.Fatal(err)
	}
	if res.Projection != 0.75 || res.Memory != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRandomized(t *testing.T) {
	in := input(1, 1, nil)
	res, err := Randomized{}.Collapse(in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Memory != 0 {
		t.Fatalf("memory should reset, got %f", res.Memory)
	}
	in.Config.SigmaCollapse = 0
	res, _ = Randomized{}.Collapse(in)
	if res.Projection != 0 {
		t.Fatalf("zero sigma should land on 0, got %f", res.Projection)
	}
}

func TestSymbolic(t *testing.T) {
	c := Symbolic(SoftDecay{}, "ct")
	in := input(1, 1, nil)
	res, err := c.Collapse(in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Label != "ct" || res.Memory != 0.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if epistemic.NameOf(c) != "symbolic(soft_decay)" {
		t.Fatalf("name: %s", epistemic.NameOf(c))
	}
	if _, err := Symbolic(AdoptReceived{}, "vc").Collapse(in); !errors.Is(err, ErrMissingReceived) {
		t.Fatal("symbolic must propagate base errors")
	}
	res, _ = Symbolic(Reset{}, "").Collapse(in)
	if res.Label != "unspecified" {
		t.Fatalf("default label: %q", res.Label)
	}
}

func TestEngineAdoptsReceived(t *testing.T) {
	cfg := epistemic.DefaultConfig()
	cfg.Theta0, cfg.A, cfg.SigmaTheta = 0.2, 0, 0
	s := epistemic.New(epistemic.WithConfig(cfg),
		epistemic.WithCollapse(Symbolic(AdoptReceived{}, "vc")))
	if err := s.Receive(1.5); err != nil {
		t.Fatal(err)
	}
	last, _ := s.Last()
	if !last.Ruptured || last.Projection != 1.5 || last.CollapseType != "vc" {
		t.Fatalf("unexpected snapshot %+v", last)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{NameReset, NameSoftDecay, NameAdoptReceived, NameRandomized} {
		c, err := ByName(name)
		if err != nil {
			t.Fatal(err)
		}
		if epistemic.NameOf(c) != name {
			t.Errorf("name mismatch %s", name)
		}
	}
	if _, err := ByName(NameSymbolic); err == nil {
		t.Fatal("symbolic needs a base and is not resolvable by name")
	}
}
