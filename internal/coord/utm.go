package coord

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

const (
	utmK0          = 0.9996
	utmFalseEast   = 500000.0
	utmFalseNorthS = 10000000.0
)

// Krüger series coefficients, third order in the third flattening n.
// Accurate to well below a millimetre within a zone.
var (
	utmN  = wgs84F / (2 - wgs84F)
	utmA  = wgs84A / (1 + utmN) * (1 + utmN*utmN/4 + utmN*utmN*utmN*utmN/64)
	alpha = [3]float64{
		utmN/2 - 2*utmN*utmN/3 + 5*utmN*utmN*utmN/16,
		13*utmN*utmN/48 - 3*utmN*utmN*utmN/5,
		61 * utmN * utmN * utmN / 240,
	}
	beta = [3]float64{
		utmN/2 - 2*utmN*utmN/3 + 37*utmN*utmN*utmN/96,
		utmN*utmN/48 + utmN*utmN*utmN/15,
		17 * utmN * utmN * utmN / 480,
	}
	delta = [3]float64{
		2*utmN - 2*utmN*utmN/3 - 2*utmN*utmN*utmN,
		7*utmN*utmN/3 - 8*utmN*utmN*utmN/5,
		56 * utmN * utmN * utmN / 15,
	}
	// Conformal latitude factor 2√n/(1+n).
	utmC = 2 * math.Sqrt(utmN) / (1 + utmN)
)

// UTM implements the Projection interface for the WGS84 UTM zones
// (EPSG:32601-32660 north, EPSG:32701-32760 south).
type UTM struct {
	Zone  int
	South bool
}

func (u *UTM) EPSG() int {
	if u.South {
		return EPSGUTMSouth + u.Zone
	}
	return EPSGUTMNorth + u.Zone
}

func (u *UTM) String() string {
	hemi := "N"
	if u.South {
		hemi = "S"
	}
	return fmt.Sprintf("WGS 84 / UTM zone %d%s", u.Zone, hemi)
}

// CentralMeridian returns the zone's central meridian in degrees.
func (u *UTM) CentralMeridian() float64 {
	return float64(u.Zone-1)*6 - 180 + 3
}

func (u *UTM) falseNorthing() float64 {
	if u.South {
		return utmFalseNorthS
	}
	return 0
}

func (u *UTM) FromWGS84(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	lam := (lon - u.CentralMeridian()) * math.Pi / 180

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - utmC*math.Atanh(utmC*sinPhi))
	xi := math.Atan2(t, math.Cos(lam))
	eta := math.Atanh(math.Sin(lam) / math.Sqrt(1+t*t))

	e, n := eta, xi
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		e += alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
		n += alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
	}
	x = utmFalseEast + utmK0*utmA*e
	y = u.falseNorthing() + utmK0*utmA*n
	return
}

func (u *UTM) ToWGS84(x, y float64) (lon, lat float64) {
	xi := (y - u.falseNorthing()) / (utmK0 * utmA)
	eta := (x - utmFalseEast) / (utmK0 * utmA)

	xiP, etaP := xi, eta
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		xiP -= beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 0; j < 3; j++ {
		phi += delta[j] * math.Sin(2*float64(j+1)*chi)
	}
	lam := math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	lat = phi * 180 / math.Pi
	lon = u.CentralMeridian() + lam*180/math.Pi
	return
}

// UTMZoneFor returns the UTM zone and hemisphere for a WGS84 coordinate,
// ignoring the Norway and Svalbard exceptions.
func UTMZoneFor(lon, lat float64) *UTM {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone > 60 {
		zone = 60
	}
	if zone < 1 {
		zone = 1
	}
	return &UTM{Zone: zone, South: lat < 0}
}
