package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pspoerri/roofmeasure/internal/config"
	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/encode"
	"github.com/pspoerri/roofmeasure/internal/fetch"
	"github.com/pspoerri/roofmeasure/internal/geotiff"
)

func newFetcher(c config.FetchConfig) *fetch.Fetcher {
	return fetch.New(fetch.Config{
		APIKey:      c.APIKey,
		APIKeyHosts: c.APIKeyHosts,
		Timeout:     c.Timeout,
		CacheSize:   c.CacheSize,
		CacheTTL:    c.CacheTTL,
		UserAgent:   c.UserAgent,
		MaxBytes:    c.MaxBytes,
	}, nil)
}

func newDecodeCmd() *cobra.Command {
	var (
		ref          string
		worldFile    string
		epsg         int
		output       string
		boundsOut    string
		elevationOut string
		maxSize      int
		resampling   string
	)
	cmd := &cobra.Command{
		Use:   "decode <file.tif|url>",
		Short: "Decode a GeoTIFF into a display image and its WGS84 bounds",
		Long: `Decode renders a GeoTIFF (or a URL serving one) as an image and prints the
raster's WGS84 bounds as JSON [[south, west], [north, east]], or null when
the raster cannot be placed on the map.

Single-band rasters such as a DSM are stretched to greyscale; --elevation-out
additionally writes their first band as a Terrarium-encoded PNG.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			src := args[0]
			opts := geotiff.Options{EPSG: epsg}
			if ref != "" {
				ll, err := coord.ParseLatLng(ref)
				if err != nil {
					return err
				}
				opts.Reference = &ll
			}

			data, err := readRaster(ctx, src)
			if err != nil {
				return err
			}
			if worldFile == "" && !isURL(src) {
				worldFile = geotiff.FindWorldFile(src)
			}
			if worldFile != "" {
				wf, err := geotiff.ReadWorldFile(worldFile)
				if err != nil {
					return err
				}
				t := wf.Transform()
				opts.Transform = &t
				slog.Debug("using world file", "path", worldFile)
			}

			enc, err := encode.NewEncoder(cfg.Encode.Format, cfg.Encode.Quality)
			if err != nil {
				return err
			}
			if enc.Format() == "terrarium" {
				return fmt.Errorf("--format terrarium cannot render a display image; use --elevation-out")
			}
			mode, err := encode.ParseResampling(resampling)
			if err != nil {
				return err
			}

			start := time.Now()
			res, err := geotiff.Decode(ctx, data, opts)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", src, err)
			}
			slog.Info("decoded raster",
				"width", res.Width, "height", res.Height, "bands", res.Bands,
				"crs", coord.Describe(res.EPSG), "transform", res.TransformSource,
				"duration", time.Since(start).Round(time.Millisecond))
			for _, w := range res.Warnings {
				slog.Warn("raster not placed", "reason", w)
			}

			if output == "" {
				output = strings.TrimSuffix(baseName(src), ".tif") + enc.FileExtension()
			}
			preview := encode.Downsample(res.Image, maxSize, mode)
			if preview != res.Image {
				slog.Debug("downsampled image", "width", preview.Rect.Dx(), "height", preview.Rect.Dy(), "resampling", mode)
			}
			img, err := enc.Encode(preview)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, img, 0o644); err != nil {
				return err
			}
			slog.Info("wrote image", "path", output, "bytes", len(img))

			if elevationOut != "" {
				if err := writeElevation(elevationOut, res); err != nil {
					return err
				}
				slog.Info("wrote elevation", "path", elevationOut)
			}

			w := cmd.OutOrStdout()
			if boundsOut != "" {
				f, err := os.Create(boundsOut)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeJSON(w, res.Bounds)
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "recenter the bounds on this lat,lng")
	cmd.Flags().StringVar(&worldFile, "world-file", "", "world file overriding the embedded georeference (default: sidecar .tfw/.wld)")
	cmd.Flags().IntVar(&epsg, "epsg", 0, "EPSG code overriding the GeoKeys")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output image (default: input name with the format's extension)")
	cmd.Flags().String("format", "png", "image format (png|jpeg|webp|tiff)")
	cmd.Flags().Int("quality", 85, "JPEG/WebP quality 1-100")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "halve the image until its longer side fits (0 keeps full resolution)")
	cmd.Flags().StringVar(&resampling, "resampling", "lanczos", "downsampling filter (lanczos|bilinear|nearest)")
	cmd.Flags().StringVar(&boundsOut, "bounds-out", "", "write the bounds JSON to this file instead of stdout")
	cmd.Flags().StringVar(&elevationOut, "elevation-out", "", "write band 1 as a Terrarium PNG")
	cmd.Flags().String("api-key", "", "API key appended to requests to the configured API hosts")
	cmd.Flags().Duration("fetch-timeout", 30*time.Second, "timeout for downloading a raster URL")
	return cmd
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func baseName(src string) string {
	if i := strings.LastIndexAny(src, `/\`); i >= 0 {
		src = src[i+1:]
	}
	if i := strings.IndexByte(src, '?'); i >= 0 {
		src = src[:i]
	}
	if src == "" {
		return "raster"
	}
	return strings.TrimSuffix(src, ".tiff")
}

func readRaster(ctx context.Context, src string) ([]byte, error) {
	if !isURL(src) {
		return os.ReadFile(src)
	}
	f := newFetcher(cfg.Fetch)
	defer f.Close()
	r, err := f.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

func writeElevation(path string, res *geotiff.Result) error {
	if res.Bands < 1 {
		return fmt.Errorf("raster has no bands")
	}
	img := encode.TerrariumImage(res.Width, res.Height, res.Raster.Bands[0], res.NoData)
	data, err := (&encode.TerrariumEncoder{}).Encode(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
