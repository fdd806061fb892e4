package coord

import (
	"math"
	"testing"
)

func TestForEPSG(t *testing.T) {
	tests := []struct {
		epsg     int
		wantNil  bool
		wantEPSG int
	}{
		{4326, false, 4326},
		{3857, false, 3857},
		{32601, false, 32601},
		{32613, false, 32613},
		{32660, false, 32660},
		{32701, false, 32701},
		{32756, false, 32756},
		{32760, false, 32760},
		{32600, true, 0},
		{32661, true, 0},
		{32700, true, 0},
		{32761, true, 0},
		{2056, true, 0}, // Swiss LV95, unsupported
		{0, true, 0},
	}
	for _, tt := range tests {
		p := ForEPSG(tt.epsg)
		if tt.wantNil {
			if p != nil {
				t.Errorf("ForEPSG(%d) = %v, want nil", tt.epsg, p)
			}
			continue
		}
		if p == nil {
			t.Fatalf("ForEPSG(%d) = nil, want non-nil", tt.epsg)
		}
		if got := p.EPSG(); got != tt.wantEPSG {
			t.Errorf("ForEPSG(%d).EPSG() = %d, want %d", tt.epsg, got, tt.wantEPSG)
		}
	}
}

func TestForEPSG_UTMHemisphere(t *testing.T) {
	n, ok := ForEPSG(32633).(*UTM)
	if !ok || n.Zone != 33 || n.South {
		t.Errorf("ForEPSG(32633) = %#v, want zone 33 north", ForEPSG(32633))
	}
	s, ok := ForEPSG(32756).(*UTM)
	if !ok || s.Zone != 56 || !s.South {
		t.Errorf("ForEPSG(32756) = %#v, want zone 56 south", ForEPSG(32756))
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		epsg int
		want string
	}{
		{4326, "WGS 84"},
		{3857, "WGS 84 / Pseudo-Mercator"},
		{32613, "WGS 84 / UTM zone 13N"},
		{32756, "WGS 84 / UTM zone 56S"},
		{2056, "EPSG:2056 (unsupported)"},
	}
	for _, tt := range tests {
		if got := Describe(tt.epsg); got != tt.want {
			t.Errorf("Describe(%d) = %q, want %q", tt.epsg, got, tt.want)
		}
	}
}

func TestWGS84Identity(t *testing.T) {
	w := &WGS84Identity{}

	if w.EPSG() != 4326 {
		t.Errorf("WGS84Identity.EPSG() = %d, want 4326", w.EPSG())
	}

	// Identity: ToWGS84 and FromWGS84 should return input unchanged.
	lon, lat := -104.9903, 39.7392 // Denver
	gotLon, gotLat := w.ToWGS84(lon, lat)
	if gotLon != lon || gotLat != lat {
		t.Errorf("ToWGS84(%v, %v) = (%v, %v), want (%v, %v)", lon, lat, gotLon, gotLat, lon, lat)
	}

	gotLon, gotLat = w.FromWGS84(lon, lat)
	if gotLon != lon || gotLat != lat {
		t.Errorf("FromWGS84(%v, %v) = (%v, %v), want (%v, %v)", lon, lat, gotLon, gotLat, lon, lat)
	}
}

// TestProjectionRoundTrip verifies that ToWGS84(FromWGS84(lon, lat)) ≈ (lon, lat) for all projections.
func TestProjectionRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		proj Projection
		lon  float64
		lat  float64
	}{
		{"identity denver", &WGS84Identity{}, -104.9903, 39.7392},
		{"mercator zurich", &WebMercatorProj{}, 8.5417, 47.3769},
		{"mercator sydney", &WebMercatorProj{}, 151.2093, -33.8688},
		{"utm 13N denver", &UTM{Zone: 13}, -104.9903, 39.7392},
		{"utm 13N zone edge", &UTM{Zone: 13}, -102.0001, 39.7392},
		{"utm 32N zurich", &UTM{Zone: 32}, 8.5417, 47.3769},
		{"utm 18N new york", &UTM{Zone: 18}, -74.0060, 40.7128},
		{"utm 33N high latitude", &UTM{Zone: 33}, 15.0, 78.2},
		{"utm 31N equator", &UTM{Zone: 31}, 3.5, 0.0001},
		{"utm 56S sydney", &UTM{Zone: 56, South: true}, 151.2093, -33.8688},
		{"utm 23S sao paulo", &UTM{Zone: 23, South: true}, -46.6333, -23.5505},
		{"utm 19S far south", &UTM{Zone: 19, South: true}, -68.3, -54.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := tt.proj.FromWGS84(tt.lon, tt.lat)
			gotLon, gotLat := tt.proj.ToWGS84(x, y)

			const tol = 1e-5
			if d := math.Abs(gotLon - tt.lon); d > tol {
				t.Errorf("EPSG:%d roundtrip lon: got %.9f, want %.9f (delta=%.2e)", tt.proj.EPSG(), gotLon, tt.lon, d)
			}
			if d := math.Abs(gotLat - tt.lat); d > tol {
				t.Errorf("EPSG:%d roundtrip lat: got %.9f, want %.9f (delta=%.2e)", tt.proj.EPSG(), gotLat, tt.lat, d)
			}
		})
	}
}

// TestWebMercatorProj_KnownValues checks against well-known Web Mercator values.
func TestWebMercatorProj_KnownValues(t *testing.T) {
	wm := &WebMercatorProj{}

	// (0, 0) in Web Mercator should map to (0, 0) in WGS84.
	lon, lat := wm.ToWGS84(0, 0)
	if math.Abs(lon) > 1e-10 || math.Abs(lat) > 1e-10 {
		t.Errorf("ToWGS84(0, 0) = (%v, %v), want (0, 0)", lon, lat)
	}

	// lon=180 should map to x = OriginShift (~20037508.34)
	x, _ := wm.FromWGS84(180, 0)
	if math.Abs(x-OriginShift) > 1 {
		t.Errorf("FromWGS84(180, 0).x = %v, want ~%v", x, OriginShift)
	}

	// lon=-180 should map to x = -OriginShift
	x, _ = wm.FromWGS84(-180, 0)
	if math.Abs(x+OriginShift) > 1 {
		t.Errorf("FromWGS84(-180, 0).x = %v, want ~%v", x, -OriginShift)
	}
}

// TestUTM_KnownValues checks the false origin and the scaled meridian arc.
func TestUTM_KnownValues(t *testing.T) {
	north := &UTM{Zone: 31}
	south := &UTM{Zone: 31, South: true}

	if cm := north.CentralMeridian(); cm != 3 {
		t.Fatalf("zone 31 central meridian = %v, want 3", cm)
	}
	if cm := (&UTM{Zone: 1}).CentralMeridian(); cm != -177 {
		t.Errorf("zone 1 central meridian = %v, want -177", cm)
	}
	if cm := (&UTM{Zone: 60}).CentralMeridian(); cm != 177 {
		t.Errorf("zone 60 central meridian = %v, want 177", cm)
	}

	// Central meridian at the equator is the false origin.
	x, y := north.FromWGS84(3, 0)
	if math.Abs(x-500000) > 1e-6 || math.Abs(y) > 1e-6 {
		t.Errorf("zone 31N FromWGS84(3, 0) = (%.6f, %.6f), want (500000, 0)", x, y)
	}
	x, y = south.FromWGS84(3, 0)
	if math.Abs(x-500000) > 1e-6 || math.Abs(y-10000000) > 1e-6 {
		t.Errorf("zone 31S FromWGS84(3, 0) = (%.6f, %.6f), want (500000, 10000000)", x, y)
	}

	// Meridian arc to 45°N on WGS84 is 4984944.378 m; scaled by k0 = 0.9996.
	const northing45 = 0.9996 * 4984944.378
	_, y = north.FromWGS84(3, 45)
	if math.Abs(y-northing45) > 0.5 {
		t.Errorf("zone 31N northing at 45°N = %.3f, want ~%.3f", y, northing45)
	}
	_, y = south.FromWGS84(3, -45)
	if math.Abs(y-(10000000-northing45)) > 0.5 {
		t.Errorf("zone 31S northing at 45°S = %.3f, want ~%.3f", y, 10000000-northing45)
	}

	// Eastings are symmetric about the central meridian.
	xe, ye := north.FromWGS84(4, 45)
	xw, yw := north.FromWGS84(2, 45)
	if math.Abs((xe-500000)+(xw-500000)) > 1e-6 || math.Abs(ye-yw) > 1e-6 {
		t.Errorf("asymmetric eastings: east (%.3f, %.3f) west (%.3f, %.3f)", xe, ye, xw, yw)
	}
	if xe <= 500000 {
		t.Errorf("easting east of the central meridian = %.3f, want > 500000", xe)
	}
}

func TestUTMZoneFor(t *testing.T) {
	tests := []struct {
		lon, lat float64
		want     int
	}{
		{-104.9903, 39.7392, 32613},
		{8.5417, 47.3769, 32632},
		{151.2093, -33.8688, 32756},
		{-180, 10, 32601},
		{180, 10, 32660},
		{0, -1, 32731},
	}
	for _, tt := range tests {
		if got := UTMZoneFor(tt.lon, tt.lat).EPSG(); got != tt.want {
			t.Errorf("UTMZoneFor(%v, %v) = EPSG:%d, want EPSG:%d", tt.lon, tt.lat, got, tt.want)
		}
	}
}
