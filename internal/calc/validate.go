package calc

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/woozymasta/geoprops/internal/geo"
)

// Validate checks that payload is a GeoJSON Feature with a Polygon or MultiPolygon geometry.
//
// The checks run in order and stop at the first failure:
//  1. a missing or null "properties" member is treated as an empty object;
//  2. the envelope must be a Feature with a geometry member (KindInvalidGeoJSON);
//  3. the geometry type must be Polygon or MultiPolygon (KindUnsupportedGeometryType);
//  4. the coordinates must build a valid geometry of that type and lie inside the
//     lon/lat domain (KindInvalidGeometry).
//
// On success the parsed feature is returned; the payload itself is never modified.
// Calculator.Validate checks coordinates against its own source CRS instead.
func Validate(payload []byte) (*geo.Feature, error) {
	return validate(payload, geo.DefaultTransformer().Source())
}

func validate(payload []byte, source geo.CRS) (*geo.Feature, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(payload, &members); err != nil {
		return nil, reject(KindInvalidGeoJSON, detailNotFeature, err)
	}
	if members == nil {
		return nil, reject(KindInvalidGeoJSON, detailNotFeature, errors.New("payload is null"))
	}

	if raw, ok := members["properties"]; !ok || isNull(raw) {
		members["properties"] = json.RawMessage(`{}`)
	}

	f, err := parseEnvelope(members)
	if err != nil {
		return nil, reject(KindInvalidGeoJSON, detailNotFeature, err)
	}

	if f.Geometry == nil {
		return nil, reject(KindUnsupportedGeometryType, detailUnsupportedType, errors.New("geometry is null"))
	}

	switch f.Geometry.Type {
	case geo.TypePolygon:
		err = validateShape(f.Geometry, source, detailBadPolygon)
	case geo.TypeMultiPolygon:
		err = validateShape(f.Geometry, source, detailBadMultiPolygon)
	default:
		err = reject(KindUnsupportedGeometryType, detailUnsupportedType,
			errors.Newf("geometry type %q", f.Geometry.Type))
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

func validateShape(g *geo.Geometry, source geo.CRS, detail string) error {
	engine, err := geo.ToEngine(g)
	if err != nil {
		return reject(KindInvalidGeometry, detail, err)
	}
	if err := geo.CheckBounds(source, engine); err != nil {
		return reject(KindInvalidGeometry, detail, err)
	}
	return nil
}

// parseEnvelope enforces the Feature envelope shape and copies its members.
// Geometry members other than type and coordinates are not carried over.
// An input bbox is only checked for its length and numeric values; it is not kept,
// the response carries the computed one.
func parseEnvelope(members map[string]json.RawMessage) (*geo.Feature, error) {
	f := &geo.Feature{}

	raw, ok := members["type"]
	if !ok {
		return nil, errors.New("missing type member")
	}
	if err := json.Unmarshal(raw, &f.Type); err != nil {
		return nil, errors.Wrap(err, "type")
	}
	if f.Type != geo.TypeFeature {
		return nil, errors.Newf("type is %q, want %q", f.Type, geo.TypeFeature)
	}

	raw, ok = members["geometry"]
	if !ok {
		return nil, errors.New("missing geometry member")
	}
	if !isNull(raw) {
		g, err := parseGeometry(raw)
		if err != nil {
			return nil, err
		}
		f.Geometry = g
	}

	if err := json.Unmarshal(members["properties"], &f.Properties); err != nil {
		return nil, errors.Wrap(err, "properties")
	}

	if raw, ok := members["id"]; ok && !isNull(raw) {
		var id any
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, errors.Wrap(err, "id")
		}
		switch id.(type) {
		case string, float64:
			f.ID = bytes.Clone(raw)
		default:
			return nil, errors.New("id must be a string or a number")
		}
	}

	if raw, ok := members["bbox"]; ok && !isNull(raw) {
		var bbox []float64
		if err := json.Unmarshal(raw, &bbox); err != nil {
			return nil, errors.Wrap(err, "bbox")
		}
		if len(bbox) != 4 && len(bbox) != 6 {
			return nil, errors.Newf("bbox has %d values, want 4 or 6", len(bbox))
		}
	}

	return f, nil
}

// parseGeometry requires a JSON object. A missing or non-string type is left empty
// so the supported-type check rejects it.
func parseGeometry(raw json.RawMessage) (*geo.Geometry, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, errors.Wrap(err, "geometry")
	}

	g := &geo.Geometry{}
	if t, ok := members["type"]; ok {
		var name string
		if json.Unmarshal(t, &name) == nil {
			g.Type = name
		}
	}
	if c, ok := members["coordinates"]; ok {
		g.Coordinates = bytes.Clone(c)
	}
	return g, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
