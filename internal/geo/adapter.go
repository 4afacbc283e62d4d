package geo

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// minRingPositions is the smallest closed ring: a triangle plus the closing position.
const minRingPositions = 4

// ErrUnsupportedType is returned by ToEngine for wire types it cannot materialize.
var ErrUnsupportedType = errors.New("unsupported geometry type")

// ToEngine materializes a wire geometry into an orb geometry.
// Coordinates are decoded strictly: nesting depth must match the declared type,
// positions must be 2D and every ring must be closed with at least four positions.
// Winding order is kept as supplied.
func ToEngine(g *Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, errors.Wrap(ErrUnsupportedType, "geometry is null")
	}

	switch g.Type {
	case TypePolygon:
		var coords [][]position
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, errors.Wrap(err, "decode polygon coordinates")
		}
		return polygonFromCoords(coords)

	case TypeMultiPolygon:
		var coords [][][]position
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, errors.Wrap(err, "decode multipolygon coordinates")
		}
		if len(coords) == 0 {
			return nil, errors.New("multipolygon has no members")
		}

		mp := make(orb.MultiPolygon, 0, len(coords))
		for i, member := range coords {
			p, err := polygonFromCoords(member)
			if err != nil {
				return nil, errors.Wrapf(err, "member %d", i)
			}
			mp = append(mp, p)
		}
		return mp, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%q", g.Type)
	}
}

// ToWire encodes an orb geometry back into its wire form.
func ToWire(g orb.Geometry) (*Geometry, error) {
	switch g.(type) {
	case orb.Point, orb.Polygon, orb.MultiPolygon:
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%T", g)
	}

	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", g.GeoJSONType())
	}

	var out Geometry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func polygonFromCoords(rings [][]position) (orb.Polygon, error) {
	if len(rings) == 0 {
		return nil, errors.New("polygon has no rings")
	}

	p := make(orb.Polygon, 0, len(rings))
	for i, ring := range rings {
		r, err := ringFromCoords(ring)
		if err != nil {
			return nil, errors.Wrapf(err, "ring %d", i)
		}
		p = append(p, r)
	}

	if err := checkHoles(p); err != nil {
		return nil, err
	}
	return p, nil
}

// checkHoles rejects holes that cannot lie inside the shell: a hole whose bounds
// leave the shell bounds, or holes that together cover at least the shell area.
func checkHoles(p orb.Polygon) error {
	if len(p) < 2 {
		return nil
	}

	shell := p[0].Bound()
	shellArea := planar.Area(p[0])

	var holesArea float64
	for i, hole := range p[1:] {
		b := hole.Bound()
		if !shell.Contains(b.Min) || !shell.Contains(b.Max) {
			return errors.Newf("ring %d extends outside the exterior ring", i+1)
		}
		holesArea += planar.Area(hole)
	}

	if holesArea >= shellArea {
		return errors.Newf("holes cover %v of exterior ring area %v", holesArea, shellArea)
	}
	return nil
}

// CheckBounds reports the first position of g outside the domain of crs.
func CheckBounds(crs CRS, g orb.Geometry) error {
	var outside error
	visit := func(r orb.Ring, ring int) {
		for i, pt := range r {
			if outside == nil && !crs.Valid(pt) {
				outside = errors.Newf("ring %d position %d %v is outside %s", ring, i, pt, crs.Code())
			}
		}
	}

	switch g := g.(type) {
	case orb.Polygon:
		for i, r := range g {
			visit(r, i)
		}
	case orb.MultiPolygon:
		for m, p := range g {
			for i, r := range p {
				visit(r, i)
			}
			if outside != nil {
				return errors.Wrapf(outside, "member %d", m)
			}
		}
	default:
		return errors.Wrapf(ErrUnsupportedType, "%T", g)
	}
	return outside
}

func ringFromCoords(positions []position) (orb.Ring, error) {
	if len(positions) < minRingPositions {
		return nil, errors.Newf("ring has %d positions, need at least %d", len(positions), minRingPositions)
	}

	r := make(orb.Ring, 0, len(positions))
	for i, pos := range positions {
		if len(pos) != 2 {
			return nil, errors.Newf("position %d has %d values, need 2", i, len(pos))
		}
		r = append(r, orb.Point{float64(pos[0]), float64(pos[1])})
	}

	if !r.Closed() {
		return nil, errors.New("ring is not closed")
	}
	return r, nil
}

// position is one coordinate tuple on the wire.
type position []coordinate

// coordinate only accepts JSON numbers; null and quoted numbers are rejected.
type coordinate float64

func (c *coordinate) UnmarshalJSON(data []byte) error {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Newf("coordinate %s is not a number", data)
	}
	*c = coordinate(f)
	return nil
}
