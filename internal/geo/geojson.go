// Package geo handles GeoJSON wire structures, engine geometries and coordinate conversions.
package geo

import (
	"bytes"
	"encoding/json"
)

// GeoJSON type discriminators used by the service.
const (
	TypeFeature      = "Feature"
	TypePoint        = "Point"
	TypePolygon      = "Polygon"
	TypeMultiPolygon = "MultiPolygon"
)

// Properties is the open member set of a feature, kept in submission order.
// Values stay as raw JSON so arbitrary client data passes through untouched.
type Properties = OrderedMap[json.RawMessage]

// Feature represents a single GeoJSON feature with geometry and properties.
// BBox is only populated on output.
type Feature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Geometry   *Geometry       `json:"geometry"`
	Properties Properties      `json:"properties"`
	BBox       []float64       `json:"bbox,omitempty"`
}

// Geometry is the wire form of a geometry: a type tag and nested coordinate arrays.
// Coordinates are kept raw until the adapter decodes them for the declared type.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Clone returns a deep copy of the feature.
func (f *Feature) Clone() *Feature {
	out := &Feature{
		Type:       f.Type,
		ID:         bytes.Clone(f.ID),
		Properties: f.Properties.CloneFunc(cloneRaw),
		BBox:       append([]float64(nil), f.BBox...),
	}
	if f.Geometry != nil {
		out.Geometry = f.Geometry.Clone()
	}
	return out
}

// Clone returns a deep copy of the geometry.
func (g *Geometry) Clone() *Geometry {
	return &Geometry{
		Type:        g.Type,
		Coordinates: bytes.Clone(g.Coordinates),
	}
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	return bytes.Clone(v)
}
