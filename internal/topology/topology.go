// Package topology flattens drift traces into columns and classifies each
// step into a drift zone.
package topology

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// DefaultMargin is the distance below Θ at which a step counts as adaptive.
const DefaultMargin = 0.05

// Zone labels. Collapsed zones are ZoneCollapsedPrefix + collapse type.
const (
	ZoneStable          = "stable"
	ZoneAdaptive        = "adaptive"
	ZoneRuptured        = "ruptured"
	ZoneCollapsedPrefix = "collapsed:"
)

// #region field
// Field is the column-oriented view of a trace. All columns share one length.
type Field struct {
	Step         []int
	Received     []float64
	Projection   []float64
	Memory       []float64
	Distortion   []float64
	Threshold    []float64
	Ruptured     []bool
	CollapseType []string
}

// BuildField tabulates a trace.
func BuildField(trace []epistemic.Snapshot) Field {
	n := len(trace)
	f := Field{
		Step:         make([]int, n),
		Received:     make([]float64, n),
		Projection:   make([]float64, n),
		Memory:       make([]float64, n),
		Distortion:   make([]float64, n),
		Threshold:    make([]float64, n),
		Ruptured:     make([]bool, n),
		CollapseType: make([]string, n),
	}
	for i, s := range trace {
		f.Step[i] = s.Step
		f.Received[i] = s.Received
		f.Projection[i] = s.Projection
		f.Memory[i] = s.Memory
		f.Distortion[i] = s.Distortion
		f.Threshold[i] = s.Threshold
		f.Ruptured[i] = s.Ruptured
		f.CollapseType[i] = s.CollapseType
	}
	return f
}

// Len returns the number of steps in the field.
func (f Field) Len() int { return len(f.Step) }

// #endregion field

// #region zones
// Zones classifies each step: ruptured steps are collapsed:<type> (or
// ruptured without a label), Δ > Θ − margin is adaptive, otherwise stable.
func (f Field) Zones(margin float64) []string {
	zones := make([]string, f.Len())
	for i := range zones {
		switch {
		case f.Ruptured[i] && f.CollapseType[i] != "":
			zones[i] = ZoneCollapsedPrefix + f.CollapseType[i]
		case f.Ruptured[i]:
			zones[i] = ZoneRuptured
		case f.Distortion[i] > f.Threshold[i]-margin:
			zones[i] = ZoneAdaptive
		default:
			zones[i] = ZoneStable
		}
	}
	return zones
}

// #endregion zones

// #region summary
// Summary describes the structure of a drift field.
type Summary struct {
	TotalSteps          int            `json:"total_steps"`
	TotalRuptures       int            `json:"total_ruptures"`
	FirstRuptureTime    *int           `json:"first_rupture_time"`
	CollapseTypes       map[string]int `json:"collapse_types"`
	ZoneDistribution    map[string]int `json:"zone_distribution"`
	RuptureDensity      float64        `json:"rupture_density"`
	VolatilitySignature string         `json:"volatility_signature"`
}

// Describe summarizes f. A nil zones slice is computed with DefaultMargin.
// An empty field has density 0.
func Describe(f Field, zones []string) Summary {
	if zones == nil {
		zones = f.Zones(DefaultMargin)
	}
	s := Summary{
		TotalSteps:       f.Len(),
		CollapseTypes:    map[string]int{},
		ZoneDistribution: map[string]int{ZoneStable: 0, ZoneAdaptive: 0},
	}
	for i, ruptured := range f.Ruptured {
		if ruptured {
			s.TotalRuptures++
			if s.FirstRuptureTime == nil {
				t := f.Step[i]
				s.FirstRuptureTime = &t
			}
		}
		if ct := f.CollapseType[i]; ct != "" {
			s.CollapseTypes[ct]++
		}
	}
	for _, z := range zones {
		s.ZoneDistribution[z]++
	}
	if s.TotalSteps > 0 {
		s.RuptureDensity = math.Round(float64(s.TotalRuptures)/float64(s.TotalSteps)*1000) / 1000
	}
	s.VolatilitySignature = "stable-ish"
	if float64(s.TotalRuptures) > float64(s.TotalSteps)*0.2 {
		s.VolatilitySignature = "volatile"
	}
	return s
}

// #endregion summary

// #region csv
// Header is the CSV column order written by WriteCSV.
var Header = []string{"t", "R", "V", "E", "delta", "theta", "ruptured", "collapse_type", "zone"}

// WriteCSV exports f with one row per step and a zone column.
func WriteCSV(w io.Writer, f Field, margin float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	zones := f.Zones(margin)
	for i := 0; i < f.Len(); i++ {
		row := []string{
			strconv.Itoa(f.Step[i]),
			formatFloat(f.Received[i]),
			formatFloat(f.Projection[i]),
			formatFloat(f.Memory[i]),
			formatFloat(f.Distortion[i]),
			formatFloat(f.Threshold[i]),
			strconv.FormatBool(f.Ruptured[i]),
			f.CollapseType[i],
			zones[i],
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsCollapsed reports whether zone is a collapsed:<type> zone.
func IsCollapsed(zone string) bool {
	return strings.HasPrefix(zone, ZoneCollapsedPrefix)
}

// #endregion csv
