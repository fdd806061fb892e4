package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pspoerri/roofmeasure/internal/config"
	"github.com/pspoerri/roofmeasure/internal/logging"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// flagKeys maps command-line flags onto configuration keys. Flags a
// command does not define are skipped.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"bind":          "server.bind",
	"port":          "server.port",
	"api-key":       "fetch.api_key",
	"fetch-timeout": "fetch.timeout",
	"method":        "area.method",
	"format":        "encode.format",
	"quality":       "encode.quality",
}

var (
	cfgFile string
	cfg     *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roofmeasure",
		Short: "Measure roof areas and decode georeferenced roof imagery",
		Long: `roofmeasure computes the ground footprint of a roof outline, adjusts it for
pitch and waste, and decodes GeoTIFF rasters (RGB imagery, DSM elevation,
solar flux) into display images with their WGS84 bounds.

Examples:
  # Area of a GeoJSON outline
  roofmeasure area outline.geojson

  # Area of an outline given as points
  roofmeasure area --point 39.7392,-104.9903 --point 39.7392,-104.9901 --point 39.7394,-104.9901

  # Pitch and waste adjustment of a known footprint
  roofmeasure adjust --base 1850 --pitch steep --waste 15

  # Decode a GeoTIFF to PNG and print its bounds
  roofmeasure decode rgb.tif -o rgb.png

  # Start the HTTP API
  roofmeasure serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(config.Options{File: cfgFile, Flags: cmd.Flags(), FlagKeys: flagKeys})
			if err != nil {
				return err
			}
			cfg = c
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./roofmeasure.yaml or $HOME/roofmeasure.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("log-format", "text", "log format (text|json)")

	root.AddCommand(
		newAreaCmd(),
		newAdjustCmd(),
		newEstimateCmd(),
		newDecodeCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Debug("command failed", "error", err)
		os.Exit(1)
	}
}
