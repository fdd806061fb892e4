package pitch

import (
	"errors"
	"math"
	"testing"
)

const tol = 1e-6

func TestAdjust(t *testing.T) {
	tests := []struct {
		name    string
		base    float64
		setting Setting
		waste   int
		want    float64
	}{
		{"standard with 10% waste", 1000, Named(Standard), 10, 1232.0},
		{"flat no waste", 1000, Named(Flat), 0, 1000},
		{"very steep 20% waste", 1000, Named(VerySteep), 20, 1680},
		{"zero angle no waste", 1000, Measured(0), 0, 1000},
		{"negative angle treated as flat", 1000, Measured(-5), 0, 1000},
		{"45 degrees", 1000, Measured(45), 0, 1000 * math.Sqrt2},
		{"60 degrees with waste", 1000, Measured(60), 10, 2000 * 1.10},
		{"near vertical clamps", 1000, Measured(89.99), 0, 1400},
		{"exactly max angle clamps", 1000, Measured(MaxAngle), 0, 1400},
		{"90 degrees clamps", 1000, Measured(90), 0, 1400},
		{"waste above range clamps", 1000, Named(Flat), 35, 1200},
		{"waste below range clamps", 1000, Named(Flat), -10, 1000},
		{"zero base", 0, Named(Steep), 15, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adjust(tt.base, tt.setting, tt.waste)
			if math.IsInf(got, 0) || math.IsNaN(got) {
				t.Fatalf("Adjust = %v, want finite", got)
			}
			if math.Abs(got-tt.want) > tol {
				t.Errorf("Adjust(%v, %v, %d) = %.9f, want %.9f", tt.base, tt.setting, tt.waste, got, tt.want)
			}
		})
	}
}

func TestAdjust_OrderOfOperations(t *testing.T) {
	// Pitch first, then waste: both factors multiply the base.
	base := 1234.5
	got := Adjust(base, Named(Steep), 7)
	want := base * 1.25 * 1.07
	if math.Abs(got-want) > tol {
		t.Errorf("Adjust = %v, want %v", got, want)
	}
}

func TestSetting_Multiplier_InvalidAngle(t *testing.T) {
	for _, deg := range []float64{89.9, 89.99, 90, 120, math.NaN()} {
		m, err := Measured(deg).Multiplier()
		if !errors.Is(err, ErrInvalidPitchAngle) {
			t.Errorf("Measured(%v).Multiplier() error = %v, want ErrInvalidPitchAngle", deg, err)
		}
		if m != VerySteep.Multiplier() {
			t.Errorf("Measured(%v).Multiplier() = %v, want %v", deg, m, VerySteep.Multiplier())
		}
	}

	m, err := Measured(89.89).Multiplier()
	if err != nil {
		t.Fatalf("Measured(89.89).Multiplier() error = %v", err)
	}
	if m < 500 {
		t.Errorf("Measured(89.89).Multiplier() = %v, want the unclamped 1/cos value", m)
	}
}

func TestSetting_Multiplier_NamedUsesTable(t *testing.T) {
	want := map[Category]float64{
		Flat:      1.00,
		Low:       1.05,
		Standard:  1.12,
		Steep:     1.25,
		VerySteep: 1.40,
	}
	for c, w := range want {
		m, err := Named(c).Multiplier()
		if err != nil {
			t.Errorf("Named(%v).Multiplier() error = %v", c, err)
		}
		if m != w {
			t.Errorf("Named(%v).Multiplier() = %v, want %v", c, m, w)
		}
	}
}

func TestResolve_MeasuredWins(t *testing.T) {
	deg := 30.0
	s := Resolve(Steep, &deg)
	if s.Source() != SourceMeasured {
		t.Fatalf("Resolve with measured angle: source = %v, want measured", s.Source())
	}
	m, _ := s.Multiplier()
	if want := 1 / math.Cos(30*math.Pi/180); math.Abs(m-want) > tol {
		t.Errorf("multiplier = %v, want %v", m, want)
	}

	s = Resolve(Steep, nil)
	if s.Source() != SourceManual || s.Category() != Steep {
		t.Errorf("Resolve without measurement = %v (%v), want manual steep", s, s.Source())
	}
}

func TestZeroSettingIsManualFlat(t *testing.T) {
	var s Setting
	if s.Source() != SourceManual {
		t.Errorf("zero Setting source = %v, want manual", s.Source())
	}
	if m, _ := s.Multiplier(); m != 1.0 {
		t.Errorf("zero Setting multiplier = %v, want 1.0", m)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"flat", Flat, false},
		{"LOW", Low, false},
		{" standard ", Standard, false},
		{"steep", Steep, false},
		{"very-steep", VerySteep, false},
		{"very_steep", VerySteep, false},
		{"VerySteep", VerySteep, false},
		{"cliff", Standard, true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampWaste(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1, 0}, {0, 0}, {10, 10}, {20, 20}, {21, 20}, {100, 20},
	}
	for _, tt := range tests {
		if got := ClampWaste(tt.in); got != tt.want {
			t.Errorf("ClampWaste(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRatioFromDegrees(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "0/12"},
		{18.43, "4/12"},
		{26.57, "6/12"},
		{33.69, "8/12"},
		{35.0, "8.5/12"},
		{45, "12/12"},
	}
	for _, tt := range tests {
		if got := RatioFromDegrees(tt.deg); got != tt.want {
			t.Errorf("RatioFromDegrees(%v) = %q, want %q", tt.deg, got, tt.want)
		}
	}
}
