// Package calc validates submitted GeoJSON features and derives their area, centroid and bounding box.
package calc

import (
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/woozymasta/geoprops/internal/geo"
)

// Calculator runs the validate -> reproject -> measure -> assemble pipeline.
// It is immutable and safe for concurrent use.
type Calculator struct {
	transformer *geo.Transformer
}

// New returns a calculator that measures area after reprojecting with t.
// The target CRS of t must be metric.
func New(t *geo.Transformer) (*Calculator, error) {
	if t == nil {
		return nil, errors.New("transformer is required")
	}
	if !t.Target().Metric() {
		return nil, errors.Newf("target CRS %s is not metric, area would not be in %s", t.Target().Code(), AreaUnit)
	}
	return &Calculator{transformer: t}, nil
}

// Default returns a calculator for the EPSG:4326 -> EPSG:3857 pair.
func Default() *Calculator {
	return &Calculator{transformer: geo.DefaultTransformer()}
}

// Transformer returns the reprojection used for area.
func (c *Calculator) Transformer() *geo.Transformer {
	return c.transformer
}

// Validate is the package Validate with coordinates checked against the source CRS.
func (c *Calculator) Validate(raw []byte) (*geo.Feature, error) {
	return validate(raw, c.transformer.Source())
}

// Calculate validates raw and returns the augmented feature.
// Client errors are *ValidationError; a broken response contract is an assertion failure.
func (c *Calculator) Calculate(raw []byte) (*geo.Feature, error) {
	out, _, err := c.Process(raw)
	return out, err
}

// Process is Calculate that also returns the derived values it merged into the feature.
func (c *Calculator) Process(raw []byte) (*geo.Feature, Derived, error) {
	f, err := c.Validate(raw)
	if err != nil {
		return nil, Derived{}, err
	}

	g, err := geo.ToEngine(f.Geometry)
	if err != nil {
		return nil, Derived{}, errors.NewAssertionErrorWithWrappedErrf(err, "validated geometry failed to materialize")
	}

	d := Measure(c.transformer, g)
	out, err := Assemble(f, d)
	if err != nil {
		return nil, Derived{}, err
	}
	return out, d, nil
}

// Measure derives the response properties of g. Area is measured on the
// reprojected copy; centroid and bbox stay in the input CRS.
func Measure(t *geo.Transformer, g orb.Geometry) Derived {
	return Derived{
		Area:     geo.Area(t.Reproject(g)),
		Centroid: geo.Centroid(g),
		BBox:     geo.BBox(g),
	}
}
