// epacog runs epistemic drift simulations and inspects archived runs.
//
// Usage:
//
//	epacog run      [--scenario file] [--label name] [--csv out.csv] [--fixture out.json]
//	epacog replay   [run-id] [--scenario file] | --fixture file
//	epacog inspect  [run-id] [--trace] [--decisions] [--lineage] [--topology]
//	epacog export   [run-id] [--csv out.csv] [--fixture out.json]
//	epacog describe [--scenario file]
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heraclitus0/epacog/internal/archive"
	"github.com/heraclitus0/epacog/internal/format"
)

// version is set at build time via -ldflags.
var version = "dev"

// #region root
type globalOptions struct {
	db      string
	verbose bool
	format  string
}

// usageError marks errors that exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "epacog",
		Short: "Epistemic drift simulator with rupture and collapse tracking",
		Long: "epacog feeds signals through an adaptive projection engine, records\n" +
			"every realignment and rupture, and archives completed runs in SQLite.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := root.PersistentFlags()
	f.StringVar(&g.db, "db", envOr("EPACOG_DB", "epacog.db"), "archive database path")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "log every step at debug level")
	f.StringVar(&g.format, "format", "ascii", "table format: ascii or markdown")

	root.AddCommand(newRunCmd(g))
	root.AddCommand(newReplayCmd(g))
	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newExportCmd(g))
	root.AddCommand(newDescribeCmd(g))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// #endregion root

// #region helpers
func (g *globalOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (g *globalOptions) mode() (format.Mode, error) {
	m, err := format.ParseMode(g.format)
	if err != nil {
		return m, usageError{err}
	}
	return m, nil
}

func (g *globalOptions) openStore() (*archive.Store, error) {
	store, err := archive.NewStore(g.db)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return store, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func argOrEmpty(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// #endregion helpers
