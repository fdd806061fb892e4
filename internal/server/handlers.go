package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/coord"
	"github.com/pspoerri/roofmeasure/internal/encode"
	"github.com/pspoerri/roofmeasure/internal/fetch"
	"github.com/pspoerri/roofmeasure/internal/geotiff"
	"github.com/pspoerri/roofmeasure/internal/metrics"
	"github.com/pspoerri/roofmeasure/internal/pitch"
	"github.com/pspoerri/roofmeasure/internal/roof"
	"github.com/pspoerri/roofmeasure/internal/solar"
	"github.com/pspoerri/roofmeasure/internal/units"
)

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest(fmt.Errorf("invalid JSON body: %w", err))
	}
	return nil
}

func validVertices(vertices []coord.LatLng) error {
	for i, v := range vertices {
		if !v.Valid() {
			return badRequest(fmt.Errorf("vertex %d: %s is not a valid coordinate", i, v))
		}
	}
	return nil
}

func (s *Server) areaMethod(name string) (area.Method, error) {
	if name == "" {
		return s.opts.AreaMethod, nil
	}
	m, err := area.ParseMethod(name)
	if err != nil {
		return "", badRequest(err)
	}
	return m, nil
}

type areaRequest struct {
	Polygon []coord.LatLng  `json:"polygon"`
	GeoJSON json.RawMessage `json:"geojson"`
	Method  string          `json:"method"`
}

type areaResponse struct {
	SquareMeters float64     `json:"area_sq_m"`
	SquareFeet   float64     `json:"area_sq_ft"`
	Method       area.Method `json:"method"`
	Warnings     []string    `json:"warnings"`
}

func (s *Server) computeArea(w http.ResponseWriter, r *http.Request) error {
	var req areaRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	method, err := s.areaMethod(req.Method)
	if err != nil {
		return err
	}

	hasGeoJSON := len(req.GeoJSON) > 0 && string(req.GeoJSON) != "null"
	if hasGeoJSON == (req.Polygon != nil) {
		return badRequest(errors.New("exactly one of polygon or geojson is required"))
	}

	var resp areaResponse
	var warnings []error
	if hasGeoJSON {
		g, err := area.ParseGeoJSON(req.GeoJSON)
		if err != nil {
			return badRequest(err)
		}
		if method != area.MethodOrb {
			warnings = append(warnings, fmt.Errorf("geojson input is measured with the %s method", area.MethodOrb))
			method = area.MethodOrb
		}
		resp.SquareMeters = area.GeometrySquareMeters(g)
	} else {
		if err := validVertices(req.Polygon); err != nil {
			return err
		}
		if err := area.Check(req.Polygon); err != nil {
			warnings = append(warnings, err)
		}
		resp.SquareMeters = area.Calculator{Method: method}.SquareMeters(req.Polygon)
	}
	metrics.AreaComputations.WithLabelValues(string(method)).Inc()

	resp.SquareFeet = units.SqFeet(resp.SquareMeters)
	resp.Method = method
	resp.Warnings = warningStrings(warnings)
	s.writeJSON(w, http.StatusOK, resp)
	return nil
}

// pitchInput is shared by the adjust and estimate requests.
type pitchInput struct {
	Pitch        string   `json:"pitch"`
	PitchDegrees *float64 `json:"pitch_degrees"`
	WastePct     *int     `json:"waste_pct"`
}

func (s *Server) category(name string) (pitch.Category, error) {
	if name == "" {
		return s.opts.DefaultPitch, nil
	}
	c, err := pitch.ParseCategory(name)
	if err != nil {
		return c, badRequest(err)
	}
	return c, nil
}

func (s *Server) waste(p *int) int {
	if p == nil {
		return s.opts.DefaultWaste
	}
	return *p
}

type adjustRequest struct {
	BaseSqFt float64 `json:"base_sq_ft"`
	pitchInput
}

type adjustResponse struct {
	BaseSqFt     float64      `json:"base_sq_ft"`
	Pitch        string       `json:"pitch"`
	PitchSource  pitch.Source `json:"pitch_source"`
	Multiplier   float64      `json:"multiplier"`
	WastePct     int          `json:"waste_pct"`
	AdjustedSqFt float64      `json:"adjusted_sq_ft"`
	Warnings     []string     `json:"warnings"`
}

func (s *Server) adjust(w http.ResponseWriter, r *http.Request) error {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.BaseSqFt < 0 {
		return badRequest(fmt.Errorf("base_sq_ft must not be negative, got %g", req.BaseSqFt))
	}
	c, err := s.category(req.Pitch)
	if err != nil {
		return err
	}

	var warnings []error
	setting := pitch.Resolve(c, req.PitchDegrees)
	m, err := setting.Multiplier()
	if err != nil {
		warnings = append(warnings, err)
	}
	requested := s.waste(req.WastePct)
	waste := pitch.ClampWaste(requested)
	if waste != requested {
		warnings = append(warnings, fmt.Errorf("%d%% clamped to %d%%: %w", requested, waste, roof.ErrWasteOutOfRange))
	}

	s.writeJSON(w, http.StatusOK, adjustResponse{
		BaseSqFt:     req.BaseSqFt,
		Pitch:        setting.String(),
		PitchSource:  setting.Source(),
		Multiplier:   m,
		WastePct:     waste,
		AdjustedSqFt: pitch.Adjust(req.BaseSqFt, setting, waste),
		Warnings:     warningStrings(warnings),
	})
	return nil
}

type estimateRequest struct {
	Polygon []coord.LatLng `json:"polygon"`
	Method  string         `json:"method"`
	pitchInput
	Facets []roof.Facet `json:"facets"`
	// BuildingInsights is a Solar API buildingInsights response. Its
	// predominant pitch is used unless pitch_degrees is given.
	BuildingInsights json.RawMessage `json:"building_insights"`
}

type estimateResponse struct {
	*roof.Estimate
	Solar    *solar.Summary `json:"solar,omitempty"`
	Warnings []string       `json:"warnings"`
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) error {
	var req estimateRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := validVertices(req.Polygon); err != nil {
		return err
	}
	for i, f := range req.Facets {
		if err := validVertices(f.Vertices); err != nil {
			return badRequest(fmt.Errorf("facet %d: %w", i, err))
		}
	}
	method, err := s.areaMethod(req.Method)
	if err != nil {
		return err
	}
	c, err := s.category(req.Pitch)
	if err != nil {
		return err
	}

	var summary *solar.Summary
	var warnings []error
	if len(req.BuildingInsights) > 0 && string(req.BuildingInsights) != "null" {
		b, err := solar.Parse(req.BuildingInsights)
		if err != nil {
			return badRequest(err)
		}
		if summary = solar.Process(b); summary == nil {
			warnings = append(warnings, errors.New("building insights carry no solar potential"))
		}
	}
	measured := req.PitchDegrees
	if measured == nil && summary != nil {
		measured = summary.MeasuredPitch()
	}

	e := roof.NewEstimate(roof.Request{
		Outline:       req.Polygon,
		Pitch:         c,
		MeasuredPitch: measured,
		WastePct:      s.waste(req.WastePct),
		Method:        method,
		Facets:        req.Facets,
	})
	metrics.AreaComputations.WithLabelValues(string(method)).Inc()

	s.writeJSON(w, http.StatusOK, estimateResponse{
		Estimate: e,
		Solar:    summary,
		Warnings: warningStrings(append(warnings, e.Warnings...)),
	})
	return nil
}

type decodeRequest struct {
	URL       string        `json:"url"`
	Reference *coord.LatLng `json:"reference"`
	Format    string        `json:"format"`
	// MaxSize bounds the longer side of the returned image; the raster is
	// halved until it fits. Zero keeps full resolution.
	MaxSize    int    `json:"max_size"`
	Resampling string `json:"resampling"`
}

type decodeResponse struct {
	Width           int                   `json:"width"`
	Height          int                   `json:"height"`
	Bands           int                   `json:"bands"`
	EPSG            int                   `json:"epsg,omitempty"`
	ImageDataURL    string                `json:"image_data_url"`
	ImageWidth      int                   `json:"image_width"`
	ImageHeight     int                   `json:"image_height"`
	Bounds          *geotiff.Bounds       `json:"bounds"`
	Transform       *geotiff.GeoTransform `json:"transform,omitempty"`
	TransformSource string                `json:"transform_source,omitempty"`
	SuggestedZoom   int                   `json:"suggested_zoom,omitempty"`
	Warnings        []string              `json:"warnings"`
}

// decodeRaster accepts either a JSON body naming a raster URL or the raster
// itself as an image/tiff body with optional ?lat=&lng= reference.
func (s *Server) decodeRaster(w http.ResponseWriter, r *http.Request) error {
	var req decodeRequest
	var data []byte

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "image/tiff", "image/geotiff", "application/octet-stream":
		ref, err := referenceFromQuery(r)
		if err != nil {
			return err
		}
		req.Reference = ref
		q := r.URL.Query()
		req.Format = q.Get("format")
		req.Resampling = q.Get("resampling")
		if v := q.Get("max_size"); v != "" {
			if req.MaxSize, err = strconv.Atoi(v); err != nil {
				return badRequest(fmt.Errorf("invalid max_size %q", v))
			}
		}
		if data, err = io.ReadAll(r.Body); err != nil {
			return err
		}
	default:
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		if req.URL == "" {
			return badRequest(errors.New("url is required"))
		}
		if s.opts.Fetcher == nil {
			return &statusError{status: http.StatusNotImplemented, code: "fetch_disabled",
				err: errors.New("fetching rasters by URL is disabled")}
		}
		raster, err := s.opts.Fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			return s.fetchError(r.Context(), err)
		}
		data = raster.Data
	}

	if req.Reference != nil && !req.Reference.Valid() {
		return badRequest(fmt.Errorf("reference %s is not a valid coordinate", req.Reference))
	}
	enc, err := s.encoder(req.Format)
	if err != nil {
		return err
	}
	if req.MaxSize < 0 {
		return badRequest(errors.New("max_size must not be negative"))
	}
	resampling, err := encode.ParseResampling(req.Resampling)
	if err != nil {
		return badRequest(err)
	}

	start := time.Now()
	res, err := geotiff.Decode(r.Context(), data, geotiff.Options{Reference: req.Reference})
	metrics.ObserveDecode(decodeResult(res, err), time.Since(start))
	if err != nil {
		return err
	}

	img := encode.Downsample(res.Image, req.MaxSize, resampling)
	dataURL, err := encode.DataURL(enc, img)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", enc.Format(), err)
	}
	s.writeJSON(w, http.StatusOK, decodeResponse{
		Width:           res.Width,
		Height:          res.Height,
		Bands:           res.Bands,
		EPSG:            res.EPSG,
		ImageDataURL:    dataURL,
		ImageWidth:      img.Rect.Dx(),
		ImageHeight:     img.Rect.Dy(),
		Bounds:          res.Bounds,
		Transform:       res.Transform,
		TransformSource: res.TransformSource,
		SuggestedZoom:   res.SuggestedZoom(),
		Warnings:        warningStrings(res.Warnings),
	})
	return nil
}

func referenceFromQuery(r *http.Request) (*coord.LatLng, error) {
	q := r.URL.Query()
	lat, lng := q.Get("lat"), q.Get("lng")
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, badRequest(errors.New("lat and lng must be given together"))
	}
	ll, err := coord.ParseLatLng(lat + "," + lng)
	if err != nil {
		return nil, badRequest(err)
	}
	return &ll, nil
}

func (s *Server) encoder(format string) (encode.Encoder, error) {
	if format == "" {
		format = s.opts.Format
	}
	if format == "terrarium" {
		return nil, badRequest(errors.New("terrarium encodes elevations and cannot render a display image"))
	}
	enc, err := encode.NewEncoder(format, s.opts.Quality)
	if err != nil {
		return nil, badRequest(err)
	}
	return enc, nil
}

// fetchError classifies a failed fetch. Cancellation passes through
// unchanged only when it is this request's own.
func (s *Server) fetchError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, fetch.ErrInvalidURL):
		return badRequest(err)
	case errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return err
	default:
		return badGateway(err)
	}
}

func decodeResult(res *geotiff.Result, err error) string {
	switch {
	case err == nil && res.Georeferenced():
		return "georeferenced"
	case err == nil:
		return "unplaced"
	case errors.Is(err, geotiff.ErrUnsupportedBandLayout):
		return "unsupported"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "malformed"
	}
}
