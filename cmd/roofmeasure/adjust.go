package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pspoerri/roofmeasure/internal/pitch"
	"github.com/pspoerri/roofmeasure/internal/roof"
	"github.com/pspoerri/roofmeasure/internal/solar"
)

// pitchFlags are shared by adjust and estimate.
type pitchFlags struct {
	pitch    string
	degrees  float64
	waste    int
	insights string
}

func (p *pitchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.pitch, "pitch", "", "pitch category (flat|low|standard|steep|very-steep; default from config)")
	cmd.Flags().Float64Var(&p.degrees, "pitch-degrees", 0, "measured pitch in degrees; overrides --pitch")
	cmd.Flags().IntVar(&p.waste, "waste", 0, "waste allowance in percent, 0-20 (default from config)")
	cmd.Flags().StringVar(&p.insights, "insights", "", "Solar API buildingInsights JSON file supplying the measured pitch")
}

// resolve returns the manual category, the measured angle if any, the
// waste percentage and the solar summary read from --insights.
func (p *pitchFlags) resolve(cmd *cobra.Command) (pitch.Category, *float64, int, *solar.Summary, error) {
	name := p.pitch
	if name == "" {
		name = cfg.Estimate.DefaultPitch
	}
	c, err := pitch.ParseCategory(name)
	if err != nil {
		return c, nil, 0, nil, err
	}

	waste := cfg.Estimate.DefaultWaste
	if cmd.Flags().Changed("waste") {
		waste = p.waste
	}

	var summary *solar.Summary
	if p.insights != "" {
		data, err := os.ReadFile(p.insights)
		if err != nil {
			return c, nil, 0, nil, err
		}
		b, err := solar.Parse(data)
		if err != nil {
			return c, nil, 0, nil, err
		}
		if summary = solar.Process(b); summary == nil {
			return c, nil, 0, nil, fmt.Errorf("%s: no solar potential", p.insights)
		}
	}

	var measured *float64
	switch {
	case cmd.Flags().Changed("pitch-degrees"):
		measured = &p.degrees
	case summary != nil:
		measured = summary.MeasuredPitch()
	}
	return c, measured, waste, summary, nil
}

func newAdjustCmd() *cobra.Command {
	var (
		base   float64
		pf     pitchFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Apply the pitch multiplier and waste allowance to a footprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("base") {
				return errors.New("--base is required")
			}
			if base < 0 {
				return fmt.Errorf("--base must not be negative, got %g", base)
			}
			c, measured, waste, _, err := pf.resolve(cmd)
			if err != nil {
				return err
			}

			var warnings []error
			setting := pitch.Resolve(c, measured)
			m, err := setting.Multiplier()
			if err != nil {
				warnings = append(warnings, err)
			}
			clamped := pitch.ClampWaste(waste)
			if clamped != waste {
				warnings = append(warnings, fmt.Errorf("%d%% clamped to %d%%: %w", waste, clamped, roof.ErrWasteOutOfRange))
			}
			adjusted := pitch.Adjust(base, setting, clamped)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{
					"base_sq_ft":     base,
					"pitch":          setting.String(),
					"pitch_source":   setting.Source(),
					"multiplier":     m,
					"waste_pct":      clamped,
					"adjusted_sq_ft": adjusted,
					"warnings":       errorStrings(warnings),
				})
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", w)
			}
			fmt.Fprintf(out, "Pitch: %s (%s, ×%.4f)\n", setting, setting.Source(), m)
			fmt.Fprintf(out, "Waste: %d%%\n", clamped)
			fmt.Fprintf(out, "Adjusted area: %.0f sq ft\n", adjusted)
			return nil
		},
	}
	cmd.Flags().Float64Var(&base, "base", 0, "footprint area in square feet")
	pf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newEstimateCmd() *cobra.Command {
	var (
		outline string
		points  []string
		facets  string
		pf      pitchFlags
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Hybrid roof estimate: footprint, pitch, waste and edge lengths as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vertices, err := outlineFrom(cmd, outline, points)
			if err != nil {
				return err
			}
			c, measured, waste, summary, err := pf.resolve(cmd)
			if err != nil {
				return err
			}

			req := roof.Request{
				Outline:       vertices,
				Pitch:         c,
				MeasuredPitch: measured,
				WastePct:      waste,
			}
			if req.Method, err = parseAreaMethod(); err != nil {
				return err
			}
			if facets != "" {
				data, err := os.ReadFile(facets)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &req.Facets); err != nil {
					return fmt.Errorf("%s: %w", facets, err)
				}
			}

			e := roof.NewEstimate(req)
			for _, w := range e.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", w)
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				*roof.Estimate
				Solar    *solar.Summary `json:"solar,omitempty"`
				Warnings []string       `json:"warnings"`
			}{e, summary, errorStrings(e.Warnings)})
		},
	}
	cmd.Flags().StringVar(&outline, "outline", "", "GeoJSON file (or -) with the roof outline polygon")
	cmd.Flags().StringArrayVar(&points, "point", nil, "outline vertex as lat,lng (repeatable)")
	cmd.Flags().StringVar(&facets, "facets", "", "JSON file with an array of facets {vertices, edge_types, pitch}")
	cmd.Flags().String("method", "orb", "area formula (orb|s2)")
	pf.register(cmd)
	return cmd
}
