package calc

import (
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/woozymasta/geoprops/internal/geo"
)

// AreaUnit is the unit reported next to every area value.
const AreaUnit = "sq meters"

// Output property keys.
const (
	PropertyArea     = "area"
	PropertyCentroid = "centroid"
)

// Area is the value stored under properties.area.
type Area struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Derived holds the properties computed for one feature.
type Derived struct {
	Area     float64
	Centroid orb.Point
	BBox     [4]float64
}

// Assemble merges derived properties into a deep copy of in.
// properties.area and properties.centroid are inserted or overwritten and bbox is set.
// An output that breaks the response schema is reported as an assertion failure:
// it means the pipeline is broken, not that the client sent bad data.
func Assemble(in *geo.Feature, d Derived) (*geo.Feature, error) {
	out := in.Clone()

	area, err := json.Marshal(Area{Value: d.Area, Unit: AreaUnit})
	if err != nil {
		return nil, errors.NewAssertionErrorWithWrappedErrf(err, "encode area %v", d.Area)
	}
	out.Properties.Set(PropertyArea, area)

	centroid, err := geo.ToWire(d.Centroid)
	if err != nil {
		return nil, errors.NewAssertionErrorWithWrappedErrf(err, "encode centroid %v", d.Centroid)
	}
	raw, err := json.Marshal(centroid)
	if err != nil {
		return nil, errors.NewAssertionErrorWithWrappedErrf(err, "encode centroid %v", d.Centroid)
	}
	out.Properties.Set(PropertyCentroid, raw)

	out.BBox = d.BBox[:]

	if err := checkSchema(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkSchema verifies the assembled feature matches the response contract.
func checkSchema(f *geo.Feature) error {
	if f.Type != geo.TypeFeature {
		return errors.AssertionFailedf("response type is %q", f.Type)
	}
	if f.Geometry == nil || f.Geometry.Type == "" {
		return errors.AssertionFailedf("response geometry is missing")
	}

	raw, ok := f.Properties.Get(PropertyArea)
	if !ok {
		return errors.AssertionFailedf("response properties.%s is missing", PropertyArea)
	}
	var area Area
	if err := json.Unmarshal(raw, &area); err != nil {
		return errors.NewAssertionErrorWithWrappedErrf(err, "response properties.%s", PropertyArea)
	}
	if !finite(area.Value) || area.Value < 0 || area.Unit != AreaUnit {
		return errors.AssertionFailedf("response properties.%s is %+v", PropertyArea, area)
	}

	raw, ok = f.Properties.Get(PropertyCentroid)
	if !ok {
		return errors.AssertionFailedf("response properties.%s is missing", PropertyCentroid)
	}
	var point struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &point); err != nil {
		return errors.NewAssertionErrorWithWrappedErrf(err, "response properties.%s", PropertyCentroid)
	}
	if point.Type != geo.TypePoint || len(point.Coordinates) != 2 || !finite(point.Coordinates...) {
		return errors.AssertionFailedf("response properties.%s is %s", PropertyCentroid, raw)
	}

	if len(f.BBox) != 4 || !finite(f.BBox...) || f.BBox[0] > f.BBox[2] || f.BBox[1] > f.BBox[3] {
		return errors.AssertionFailedf("response bbox is %v", f.BBox)
	}

	// an area-weighted centroid is a convex combination of the positions
	c := point.Coordinates
	if area.Value > 0 && !(within(c[0], f.BBox[0], f.BBox[2]) && within(c[1], f.BBox[1], f.BBox[3])) {
		return errors.AssertionFailedf("response centroid %v is outside bbox %v", c, f.BBox)
	}

	return nil
}

// within allows for rounding in the centroid sums.
func within(v, lo, hi float64) bool {
	tol := 1e-9 * math.Max(1, math.Max(math.Abs(lo), math.Abs(hi)))
	return v >= lo-tol && v <= hi+tol
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
