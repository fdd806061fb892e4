package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/geotiff"
)

func main() {
	var (
		worldFile string
		epsg      int
		ref       string
		decode    bool
	)
	flag.StringVar(&worldFile, "world-file", "", "World file overriding the embedded georeference (default: sidecar .tfw/.wld if present)")
	flag.IntVar(&epsg, "epsg", 0, "EPSG code overriding the GeoKeys")
	flag.StringVar(&ref, "ref", "", "Recenter bounds on this lat,lng")
	flag.BoolVar(&decode, "decode", false, "Also decode pixels and sample the bounds center")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geotiffinfo [flags] <file.tif>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := geotiff.Options{EPSG: epsg}
	if worldFile == "" {
		worldFile = geotiff.FindWorldFile(path)
	}
	if worldFile != "" {
		wf, err := geotiff.ReadWorldFile(worldFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		t := wf.Transform()
		opts.Transform = &t
	}
	if ref != "" {
		ll, err := coord.ParseLatLng(ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts.Reference = &ll
	}

	info, err := geotiff.Inspect(data, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	variant := "TIFF"
	if info.BigTIFF {
		variant = "BigTIFF"
	}
	fmt.Printf("File: %s (%d bytes)\n", path, len(data))
	fmt.Printf("Container: %s, %s\n", variant, info.ByteOrder)
	if worldFile != "" {
		fmt.Printf("World file: %s\n", worldFile)
	}
	fmt.Printf("GeoKeys: model=%d raster=%d geographic=%d projected=%d citation=%q\n",
		info.Keys.ModelType, info.Keys.RasterType, info.Keys.GeographicCS, info.Keys.ProjectedCS, info.Keys.Citation)
	fmt.Printf("EPSG: %d (%s)\n", info.EPSG, coord.Describe(info.EPSG))
	if info.Transform != nil {
		t := info.Transform
		fmt.Printf("Transform (%s): origin=(%f, %f) res=(%g, %g) skew=(%g, %g)\n",
			info.TransformSource, t.OriginX, t.OriginY, t.ResX, t.ResY, t.SkewX, t.SkewY)
	}
	if info.Bounds != nil {
		fmt.Printf("Bounds (WGS84): %s\n", info.Bounds)
	} else {
		fmt.Printf("Bounds (WGS84): none\n")
	}
	for _, w := range info.Warnings {
		fmt.Printf("Warning: %v\n", w)
	}

	fmt.Printf("IFD count: %d\n", len(info.IFDs))
	for i := range info.IFDs {
		ifd := &info.IFDs[i]
		layout := fmt.Sprintf("%d strips", ifd.StripsPerPlane())
		if ifd.Tiled() {
			layout = fmt.Sprintf("tile %dx%d", ifd.TileWidth, ifd.TileHeight)
		}
		kind := "full-res"
		switch {
		case ifd.Overview():
			kind = "overview"
		case ifd.SubfileType&4 != 0:
			kind = "mask"
		}
		fmt.Printf("\n  IFD %d (%s): %dx%d, %d bands %v bits, format %d, %s, compression %d, predictor %d, planar %d\n",
			i, kind, ifd.Width, ifd.Height, ifd.SamplesPerPixel, ifd.BitsPerSample, ifd.SampleFormat,
			layout, ifd.Compression, ifd.Predictor, ifd.PlanarConfig)
		if ifd.NoData != "" {
			fmt.Printf("  NoData: %s\n", ifd.NoData)
		}
	}

	if !decode {
		return
	}
	res, err := geotiff.Decode(context.Background(), data, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDecoded: %dx%d, %d bands\n", res.Width, res.Height, res.Bands)
	if res.Bounds != nil {
		fmt.Printf("Ground resolution: %.3f m/px, suggested zoom %d\n", res.GroundResolution(), res.SuggestedZoom())
		c := res.Bounds.Center()
		if vals, ok := res.SampleAt(c); ok {
			fmt.Printf("Sample at %s: %v\n", c, vals)
		} else {
			fmt.Printf("Sample at %s: nodata\n", c)
		}
	}
}
