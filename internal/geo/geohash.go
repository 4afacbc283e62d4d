package geo

import (
	"github.com/paulmach/orb"
	"github.com/pierrre/geohash"
)

// GeohashPrecision is the geohash length used for centroid labels (about 5 m cells).
const GeohashPrecision = 9

// Geohash encodes p, given in crs, as a geohash of GeohashPrecision characters.
func Geohash(crs CRS, p orb.Point) string {
	ll := crs.ToWGS84(p)
	return geohash.Encode(ll[1], ll[0], GeohashPrecision)
}
