package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pspoerri/roofmeasure/internal/encode"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestAreaCommand(t *testing.T) {
	out, err := run(t, "area", "--json",
		"--point", "0,0", "--point", "0,0.001", "--point", "0.001,0.001", "--point", "0.001,0")
	if err != nil {
		t.Fatalf("area: %v", err)
	}
	var got struct {
		SquareMeters float64  `json:"area_sq_m"`
		Method       string   `json:"method"`
		Warnings     []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	// 0.001° square on the equator is about 111.2 m on a side.
	if got.SquareMeters < 12300 || got.SquareMeters > 12400 || got.Method != "orb" || len(got.Warnings) != 0 {
		t.Errorf("area = %+v", got)
	}

	dir := t.TempDir()
	gj := filepath.Join(dir, "outline.geojson")
	if err := os.WriteFile(gj, []byte(`{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "area", gj)
	if err != nil {
		t.Fatalf("area %s: %v", gj, err)
	}
	if !strings.HasPrefix(out, "Area: 123") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "area"); err == nil {
		t.Error("area without outline succeeded")
	}
	if _, err := run(t, "area", "--method", "planar", "--point", "0,0"); err == nil {
		t.Error("area with unknown method succeeded")
	}
}

func TestAdjustCommand(t *testing.T) {
	out, err := run(t, "adjust", "--json", "--base", "1000", "--pitch", "steep", "--waste", "25")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	var got struct {
		Adjusted float64  `json:"adjusted_sq_ft"`
		Waste    int      `json:"waste_pct"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Adjusted-1500) > 1e-9 || got.Waste != 20 || len(got.Warnings) != 1 {
		t.Errorf("adjust = %+v, want 1500 sq ft at 20%% with one warning", got)
	}

	if _, err := run(t, "adjust"); err == nil {
		t.Error("adjust without --base succeeded")
	}
}

func TestEstimateCommand(t *testing.T) {
	dir := t.TempDir()
	insights := filepath.Join(dir, "insights.json")
	if err := os.WriteFile(insights, []byte(`{"solarPotential":{"roofSegmentStats":[{"pitchDegrees":45,"stats":{"areaMeters2":10}}]}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "estimate", "--insights", insights, "--waste", "0",
		"--point", "0,0", "--point", "0,0.0001", "--point", "0.0001,0.0001", "--point", "0.0001,0")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	var got struct {
		PitchSource string  `json:"pitch_source"`
		PitchRatio  string  `json:"pitch_ratio"`
		Footprint   float64 `json:"footprint_sq_ft"`
		Adjusted    float64 `json:"adjusted_sq_ft"`
		Solar       *struct {
			FacetCount int `json:"facet_count"`
		} `json:"solar"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	if got.PitchSource != "measured" || got.PitchRatio != "12/12" || got.Solar == nil {
		t.Errorf("estimate = %+v", got)
	}
	if ratio := got.Adjusted / got.Footprint; ratio < 1.414 || ratio > 1.4143 {
		t.Errorf("adjusted/footprint = %v, want √2", ratio)
	}
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	data, err := (&encode.TIFFEncoder{}).Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "dsm.tif")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	// A sidecar world file places the raster in WGS84.
	if err := os.WriteFile(filepath.Join(dir, "dsm.tfw"), []byte("0.0001\n0\n0\n-0.0001\n-104.99995\n39.73995\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	full := filepath.Join(dir, "dsm.png")
	elev := filepath.Join(dir, "dsm-terrarium.png")
	out, err := run(t, "decode", src, "-o", full, "--elevation-out", elev)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var bounds [2][2]float64
	if err := json.Unmarshal([]byte(out), &bounds); err != nil {
		t.Fatalf("bounds output %q: %v", out, err)
	}
	if bounds[0][0] >= bounds[1][0] || bounds[0][1] >= bounds[1][1] {
		t.Errorf("bounds = %v, want south-west before north-east", bounds)
	}
	for _, p := range []string{full, elev} {
		if fi, err := os.Stat(p); err != nil || fi.Size() == 0 {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	small := filepath.Join(dir, "small.png")
	if _, err := run(t, "decode", src, "-o", small, "--max-size", "3", "--resampling", "nearest"); err != nil {
		t.Fatalf("decode --max-size: %v", err)
	}
	f, err := os.Open(small)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ic, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if ic.Width != 2 || ic.Height != 2 {
		t.Errorf("downsampled size = %dx%d, want 2x2", ic.Width, ic.Height)
	}

	if _, err := run(t, "decode", src, "-o", small, "--resampling", "cubic"); err == nil {
		t.Error("decode with an unknown resampling succeeded")
	}
	if _, err := run(t, "decode", filepath.Join(dir, "missing.tif")); err == nil {
		t.Error("decode of a missing file succeeded")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "roofmeasure dev") {
		t.Errorf("version = %q", out)
	}
}
