package geo

import (
	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area returns the planar area of a polygonal geometry in its own CRS units:
// the exterior ring area minus the hole areas, regardless of winding.
// It is negative only when holes outweigh the exterior, which ToEngine rejects.
// Callers measure a projected geometry; lon/lat input yields square degrees.
func Area(g orb.Geometry) float64 {
	switch g := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return planar.Area(g)
	default:
		panic(errors.AssertionFailedf("unhandled geometry type %T", g))
	}
}

// Centroid returns the area-weighted centroid in the geometry's own CRS.
// A geometry with no area falls back to the length-weighted centroid of its rings,
// and one with no length either to the mean of its positions.
func Centroid(g orb.Geometry) orb.Point {
	var rings []orb.Ring
	switch g := g.(type) {
	case orb.Polygon:
		rings = g
	case orb.MultiPolygon:
		for _, p := range g {
			rings = append(rings, p...)
		}
	default:
		panic(errors.AssertionFailedf("unhandled geometry type %T", g))
	}

	if c, area := planar.CentroidArea(g); area != 0 {
		return c
	}

	lines := make(orb.MultiLineString, 0, len(rings))
	var points orb.MultiPoint
	for _, r := range rings {
		lines = append(lines, orb.LineString(r))
		points = append(points, r...)
	}
	if planar.Length(lines) > 0 {
		c, _ := planar.CentroidArea(lines)
		return c
	}

	c, _ := planar.CentroidArea(points)
	return c
}

// BBox returns the axis-aligned bounds as [minX, minY, maxX, maxY].
func BBox(g orb.Geometry) [4]float64 {
	switch g := g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		b := g.Bound()
		return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	default:
		panic(errors.AssertionFailedf("unhandled geometry type %T", g))
	}
}
