package geo

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Default CRS pair: WGS84 lon/lat in, Web Mercator meters out.
const (
	DefaultSourceCRS = "EPSG:4326"
	DefaultTargetCRS = "EPSG:3857"
)

// CRS converts between one coordinate reference system and WGS84.
// All points are (x, y); for geographic systems that is (lon, lat).
type CRS interface {
	// Code returns the canonical EPSG identifier.
	Code() string
	// Metric reports whether the CRS measures in meters.
	Metric() bool
	// Valid reports whether p lies within the CRS domain.
	Valid(p orb.Point) bool
	ToWGS84(p orb.Point) orb.Point
	FromWGS84(p orb.Point) orb.Point
}

// mercatorExtent is the Web Mercator half-width in meters (pi * earth radius).
const mercatorExtent = math.Pi * orb.EarthRadius

type wgs84 struct{}

func (wgs84) Code() string                    { return "EPSG:4326" }
func (wgs84) Metric() bool                    { return false }
func (wgs84) Valid(p orb.Point) bool          { return inRange(p, 180, 90) }
func (wgs84) ToWGS84(p orb.Point) orb.Point   { return p }
func (wgs84) FromWGS84(p orb.Point) orb.Point { return p }

type webMercator struct{}

func (webMercator) Code() string                    { return "EPSG:3857" }
func (webMercator) Metric() bool                    { return true }
func (webMercator) Valid(p orb.Point) bool          { return inRange(p, mercatorExtent, mercatorExtent) }
func (webMercator) ToWGS84(p orb.Point) orb.Point   { return project.Mercator.ToWGS84(p) }
func (webMercator) FromWGS84(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) }

// inRange also rejects NaN, which fails every comparison.
func inRange(p orb.Point, maxX, maxY float64) bool {
	return p[0] >= -maxX && p[0] <= maxX && p[1] >= -maxY && p[1] <= maxY
}

var registry = map[string]CRS{
	"EPSG:4326":   wgs84{},
	"4326":        wgs84{},
	"WGS84":       wgs84{},
	"CRS84":       wgs84{},
	"EPSG:3857":   webMercator{},
	"3857":        webMercator{},
	"EPSG:900913": webMercator{},
	"EPSG:102100": webMercator{},
}

// LookupCRS resolves a CRS identifier such as "EPSG:4326" (case-insensitive).
func LookupCRS(code string) (CRS, error) {
	crs, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, errors.Newf("unrecognized CRS %q", code)
	}
	return crs, nil
}

// Transformer reprojects geometries between a fixed source and target CRS.
// It holds no mutable state and is safe for concurrent use.
type Transformer struct {
	source CRS
	target CRS
}

// NewTransformer builds a transformer for the given CRS pair.
// An unknown identifier is a configuration error.
func NewTransformer(source, target string) (*Transformer, error) {
	src, err := LookupCRS(source)
	if err != nil {
		return nil, errors.Wrap(err, "source")
	}
	dst, err := LookupCRS(target)
	if err != nil {
		return nil, errors.Wrap(err, "target")
	}
	return &Transformer{source: src, target: dst}, nil
}

// DefaultTransformer returns the EPSG:4326 -> EPSG:3857 transformer.
func DefaultTransformer() *Transformer {
	return &Transformer{source: wgs84{}, target: webMercator{}}
}

// Source returns the input CRS.
func (t *Transformer) Source() CRS { return t.source }

// Target returns the output CRS.
func (t *Transformer) Target() CRS { return t.target }

// Point reprojects a single point.
func (t *Transformer) Point(p orb.Point) orb.Point {
	if t.source.Code() == t.target.Code() {
		return p
	}
	return t.target.FromWGS84(t.source.ToWGS84(p))
}

// Reproject returns a reprojected copy of g. The input is never modified.
func (t *Transformer) Reproject(g orb.Geometry) orb.Geometry {
	out := orb.Clone(g)
	if t.source.Code() == t.target.Code() {
		return out
	}
	return project.Geometry(out, t.Point)
}
