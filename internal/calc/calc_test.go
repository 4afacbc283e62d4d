package calc

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/geoprops/internal/geo"
)

const unitSquareFeature = `{
	"type": "Feature",
	"properties": {},
	"geometry": {
		"coordinates": [[[0, 0], [0, 1], [1, 1], [1, 0], [0, 0]]],
		"type": "Polygon"
	}
}`

type response struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Area struct {
			Value float64 `json:"value"`
			Unit  string  `json:"unit"`
		} `json:"area"`
		Centroid struct {
			Type        string     `json:"type"`
			Coordinates [2]float64 `json:"coordinates"`
		} `json:"centroid"`
	} `json:"properties"`
	BBox []float64 `json:"bbox"`
}

func TestCalculateUnitSquare(t *testing.T) {
	out, err := Default().Calculate([]byte(unitSquareFeature))
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var resp response
	require.NoError(t, json.Unmarshal(data, &resp))

	assert.Equal(t, "Feature", resp.Type)
	assert.Equal(t, "Polygon", resp.Geometry.Type)
	assert.Equal(t, [][][2]float64{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}, resp.Geometry.Coordinates)
	assert.InDelta(t, 12392658216.37442, resp.Properties.Area.Value, 1e-3)
	assert.Equal(t, "sq meters", resp.Properties.Area.Unit)
	assert.Equal(t, "Point", resp.Properties.Centroid.Type)
	assert.InDelta(t, 0.5, resp.Properties.Centroid.Coordinates[0], 1e-12)
	assert.InDelta(t, 0.5, resp.Properties.Centroid.Coordinates[1], 1e-12)
	assert.Equal(t, []float64{0, 0, 1, 1}, resp.BBox)
}

func TestCalculateOutputMemberOrder(t *testing.T) {
	payload := `{"geometry": {"type": "Polygon", "coordinates": [[[0,0],[0,1],[1,1],[1,0],[0,0]]]}, "id": "lot-4",
		"properties": {"zeta": 1, "area": "stale", "alpha": [true]}, "type": "Feature"}`

	out, err := Default().Calculate([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "area", "alpha", "centroid"}, out.Properties.Keys())

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var top geo.OrderedMap[json.RawMessage]
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Equal(t, []string{"type", "id", "geometry", "properties", "bbox"}, top.Keys())

	id, _ := top.Get("id")
	assert.Equal(t, `"lot-4"`, string(id))
}

func TestCalculateIsIdempotent(t *testing.T) {
	c := Default()
	payload := []byte(`{"type": "Feature", "properties": {"name": "lot"}, "geometry": {"type": "MultiPolygon",
		"coordinates": [[[[-105,25],[-105,30],[-100,30],[-100,25],[-105,25]]],[[[10,-40],[12,-40],[11,-38],[10,-40]]]]}}`)
	before := string(payload)

	first, err := c.Calculate(payload)
	require.NoError(t, err)
	second, err := c.Calculate(payload)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, before, string(payload))
}

func TestCalculateConcurrent(t *testing.T) {
	c := Default()
	want, err := c.Calculate([]byte(unitSquareFeature))
	require.NoError(t, err)
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := c.Calculate([]byte(unitSquareFeature))
			if err != nil {
				return
			}
			data, _ := json.Marshal(out)
			results[i] = string(data)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, string(wantJSON), got)
	}
}

func TestCalculatePropagatesValidationErrors(t *testing.T) {
	_, err := Default().Calculate([]byte(featureCollection))
	assert.Equal(t, KindInvalidGeoJSON, KindOf(err))

	_, err = Default().Calculate([]byte(polygonNestedAsMulti))
	assert.Equal(t, KindInvalidGeometry, KindOf(err))
}

func TestNewRejectsGeographicTarget(t *testing.T) {
	tr, err := geo.NewTransformer("EPSG:3857", "EPSG:4326")
	require.NoError(t, err)

	_, err = New(tr)
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)

	c, err := New(geo.DefaultTransformer())
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", c.Transformer().Target().Code())
}

func TestAssembleDoesNotMutateInput(t *testing.T) {
	in, err := Validate([]byte(`{"type": "Feature", "properties": {"area": 1}, "geometry": ` + squareGeometry + `}`))
	require.NoError(t, err)

	out, err := Assemble(in, Derived{Area: 2, Centroid: orb.Point{0.5, 0.5}, BBox: [4]float64{0, 0, 1, 1}})
	require.NoError(t, err)

	raw, _ := in.Properties.Get(PropertyArea)
	assert.Equal(t, `1`, string(raw))
	assert.False(t, in.Properties.Has(PropertyCentroid))
	assert.Nil(t, in.BBox)

	raw, _ = out.Properties.Get(PropertyArea)
	assert.JSONEq(t, `{"value": 2, "unit": "sq meters"}`, string(raw))
}

func TestAssembleSchemaViolationIsInternal(t *testing.T) {
	valid, err := Validate([]byte(unitSquareFeature))
	require.NoError(t, err)
	good := Derived{Area: 1, Centroid: orb.Point{0.5, 0.5}, BBox: [4]float64{0, 0, 1, 1}}

	tests := []struct {
		name    string
		feature *geo.Feature
		derived Derived
	}{
		{"nan area", valid, Derived{Area: math.NaN(), Centroid: good.Centroid, BBox: good.BBox}},
		{"negative area", valid, Derived{Area: -1, Centroid: good.Centroid, BBox: good.BBox}},
		{"infinite centroid", valid, Derived{Area: 1, Centroid: orb.Point{math.Inf(1), 0}, BBox: good.BBox}},
		{"centroid outside bbox", valid, Derived{Area: 1, Centroid: orb.Point{0, 0}, BBox: [4]float64{10, 10, 12, 12}}},
		{"inverted bbox", valid, Derived{Area: 1, Centroid: good.Centroid, BBox: [4]float64{1, 1, 0, 0}}},
		{"missing geometry", &geo.Feature{Type: geo.TypeFeature}, good},
		{"wrong type", &geo.Feature{Type: "FeatureCollection", Geometry: valid.Geometry}, good},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Assemble(tt.feature, tt.derived)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, IsInternal(err))
			assert.Equal(t, KindUnknown, KindOf(err))
		})
	}
}

func TestProcessReturnsDerived(t *testing.T) {
	out, d, err := Default().Process([]byte(unitSquareFeature))
	require.NoError(t, err)

	assert.InDelta(t, 12392658216.37442, d.Area, 1e-3)
	assert.InDelta(t, 0.5, d.Centroid[0], 1e-12)
	assert.InDelta(t, 0.5, d.Centroid[1], 1e-12)
	assert.Equal(t, [4]float64{0, 0, 1, 1}, d.BBox)
	assert.Equal(t, d.BBox[:], out.BBox)

	_, d, err = Default().Process([]byte(featureCollection))
	assert.Error(t, err)
	assert.Equal(t, Derived{}, d)
}

func TestProcessRejectsClientGeometryAsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name: "hole larger than shell",
			payload: `{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [
				[[0, 0], [0, 1], [1, 1], [1, 0], [0, 0]],
				[[-5, -5], [-5, 5], [5, 5], [5, -5], [-5, -5]]]}}`,
		},
		{
			name:    "latitude above 90",
			payload: `{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [0, 100], [1, 100], [1, 0], [0, 0]]]}}`,
		},
		{
			name:    "longitude above 180 in a member",
			payload: `{"type": "Feature", "geometry": {"type": "MultiPolygon", "coordinates": [[[[179, 0], [179, 1], [181, 1], [179, 0]]]]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := Default().Process([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, KindInvalidGeometry, KindOf(err))
			assert.False(t, IsInternal(err))
		})
	}
}

func TestProcessCentroidOfCollinearMultiPolygon(t *testing.T) {
	payload := `{"type": "Feature", "geometry": {"type": "MultiPolygon", "coordinates": [[[[10, 10], [11, 11], [12, 12], [10, 10]]]]}}`

	_, d, err := Default().Process([]byte(payload))
	require.NoError(t, err)

	assert.Greater(t, d.Area, 0.0)
	assert.InDelta(t, 11, d.Centroid[0], 1e-9)
	assert.InDelta(t, 11, d.Centroid[1], 1e-9)
	assert.Equal(t, [4]float64{10, 10, 12, 12}, d.BBox)
}

func TestCalculatorValidatesAgainstSourceCRS(t *testing.T) {
	tr, err := geo.NewTransformer("EPSG:3857", "EPSG:3857")
	require.NoError(t, err)
	c, err := New(tr)
	require.NoError(t, err)

	meters := `{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [0, 5000000], [5000000, 5000000], [5000000, 0], [0, 0]]]}}`

	_, err = c.Validate([]byte(meters))
	assert.NoError(t, err)

	_, err = Validate([]byte(meters))
	assert.Equal(t, KindInvalidGeometry, KindOf(err))
}
