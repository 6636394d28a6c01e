package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/heraclitus0/epacog/internal/config"
	"github.com/heraclitus0/epacog/internal/epistemic"
	"github.com/heraclitus0/epacog/internal/sim"
)

// #region main
func main() {
	scenarioPath := envOr("EPACOG_SCENARIO", "")
	sc, err := config.Load(scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine, driverCollapse, err := sc.NewEngine(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Epistemic controller ready.")
	fmt.Printf("  Scenario: %s | seed %d\n", sc.Name, sc.Seed)
	fmt.Println("Type a signal value per line ('probe', 'reset', or 'quit' to exit):")

	d := sim.NewDriver(engine, sim.DriftConfig{
		Collapse:    driverCollapse,
		DecayMemory: sc.DecayMemory,
		Logger:      log,
	})
	if err := loop(os.Stdin, os.Stdout, engine, d, sc.Initial); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region loop
// loop feeds one signal per input line through a drift driver and prints the
// engine status after each step. "reset" restores the scenario's initial state.
func loop(in io.Reader, out io.Writer, engine *epistemic.State, d *sim.Driver, initial config.Initial) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "probe":
			p := engine.Probe()
			fmt.Fprintf(out, "Θ=%.4f V=%.4f E=%.4f t=%d\n", p.Threshold, p.Projection, p.Memory, p.Step)
			continue
		case "reset":
			engine.Reset(initial.Projection, initial.Memory)
			d.Reset()
			fmt.Fprintln(out, engine.String())
			continue
		}

		r, err := strconv.ParseFloat(line, 64)
		if err != nil {
			fmt.Fprintf(out, "not a number: %q\n", line)
			continue
		}
		entry, err := d.Step(r)
		if err != nil {
			return err
		}
		if entry.Ruptured {
			fmt.Fprintf(out, "rupture at t=%d (%s)\n", entry.Step, entry.CollapseType)
		}
		fmt.Fprintln(out, engine.String())
	}
	return scanner.Err()
}

// #endregion loop

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
