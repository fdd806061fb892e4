package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/units"
)

func newAreaCmd() *cobra.Command {
	var (
		points []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "area [outline.geojson|-]",
		Short: "Compute the ground footprint of a roof outline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := parseAreaMethod()
			if err != nil {
				return err
			}

			var sqm float64
			var warnings []error
			switch {
			case len(args) == 1 && len(points) > 0:
				return errors.New("give either a GeoJSON file or --point, not both")
			case len(args) == 1:
				g, err := readGeoJSON(cmd, args[0])
				if err != nil {
					return err
				}
				if method != area.MethodOrb {
					warnings = append(warnings, fmt.Errorf("geojson input is measured with the %s method", area.MethodOrb))
					method = area.MethodOrb
				}
				sqm = area.GeometrySquareMeters(g)
			case len(points) > 0:
				outline, err := parsePoints(points)
				if err != nil {
					return err
				}
				if err := area.Check(outline); err != nil {
					warnings = append(warnings, err)
				}
				sqm = area.Calculator{Method: method}.SquareMeters(outline)
			default:
				return errors.New("an outline is required: a GeoJSON file or at least three --point flags")
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]any{
					"area_sq_m":  sqm,
					"area_sq_ft": units.SqFeet(sqm),
					"method":     method,
					"warnings":   errorStrings(warnings),
				})
			}
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", w)
			}
			fmt.Fprintf(out, "Area: %.2f m² (%.2f sq ft), method %s\n", sqm, units.SqFeet(sqm), method)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&points, "point", nil, "outline vertex as lat,lng (repeatable, in drawing order)")
	cmd.Flags().String("method", "orb", "area formula (orb|s2)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func parseAreaMethod() (area.Method, error) {
	return area.ParseMethod(cfg.Area.Method)
}

// readGeoJSON reads a GeoJSON document from a file, or stdin for "-".
func readGeoJSON(cmd *cobra.Command, path string) (orb.Geometry, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return area.ParseGeoJSON(data)
}

func parsePoints(points []string) ([]coord.LatLng, error) {
	outline := make([]coord.LatLng, 0, len(points))
	for _, p := range points {
		ll, err := coord.ParseLatLng(p)
		if err != nil {
			return nil, err
		}
		outline = append(outline, ll)
	}
	return outline, nil
}

// outlineFrom returns the outline given as a GeoJSON file or as --point
// flags.
func outlineFrom(cmd *cobra.Command, file string, points []string) ([]coord.LatLng, error) {
	if file != "" && len(points) > 0 {
		return nil, errors.New("give either --outline or --point, not both")
	}
	if file != "" {
		g, err := readGeoJSON(cmd, file)
		if err != nil {
			return nil, err
		}
		return area.Outline(g)
	}
	return parsePoints(points)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
