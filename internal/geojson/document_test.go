package geojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointFeature = `{
	"type": "Feature",
	"bbox": [0.0, 0.0, 0.0, 0.0],
	"properties": {"name": "zażółć gęślą jaźń"},
	"geometry": {"type": "Point", "coordinates": [0, 0]}
}`

const featureCollection = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [102.0, 0.5]}, "properties": {"prop0": "value0"}},
		{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[102.0, 0.0], [103.0, 1.0], [104.0, 0.0], [105.0, 1.0]]}, "properties": {"prop0": "value0", "prop1": 0.0}},
		{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[100.0, 0.0], [101.0, 0.0], [101.0, 1.0], [100.0, 1.0], [100.0, 0.0]]]}, "properties": {"prop0": "value0", "prop1": {"this": "that"}}}
	]
}`

func TestDecode_Single(t *testing.T) {
	doc, err := Decode([]byte(pointFeature))
	require.NoError(t, err)

	single, ok := doc.(Single)
	require.True(t, ok, "expected Single, got %T", doc)
	assert.Equal(t, KindFeature, doc.Kind())
	assert.Equal(t, BBox{0, 0, 0, 0}, doc.Bounds())
	assert.JSONEq(t, `{"type":"Point","coordinates":[0,0]}`, string(single.Feature.Geometry))
	assert.JSONEq(t, `{"name":"zażółć gęślą jaźń"}`, string(single.Feature.Properties))
}

func TestDecode_Collection(t *testing.T) {
	doc, err := Decode([]byte(featureCollection))
	require.NoError(t, err)

	coll, ok := doc.(Collection)
	require.True(t, ok, "expected Collection, got %T", doc)
	assert.Equal(t, KindFeatureCollection, doc.Kind())
	assert.Nil(t, doc.Bounds())
	require.Len(t, coll.Features, 3)

	types := make([]string, 0, len(coll.Features))
	for _, f := range coll.Features {
		var g struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f.Geometry, &g))
		types = append(types, g.Type)
	}
	assert.Equal(t, []string{"Point", "LineString", "Polygon"}, types)
}

func TestDecode_PropertiesVerbatim(t *testing.T) {
	doc, err := Decode([]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"z":1,"a":{"y":2,"b":3}}}`))
	require.NoError(t, err)

	assert.Equal(t, `{"z":1,"a":{"y":2,"b":3}}`, string(doc.(Single).Feature.Properties))
}

func TestDecode_NullProperties(t *testing.T) {
	doc, err := Decode([]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":null}`))
	require.NoError(t, err)

	assert.Nil(t, doc.(Single).Feature.Properties)
}

func TestDecode_EmptyCollection(t *testing.T) {
	doc, err := Decode([]byte(`{"type":"FeatureCollection","features":[],"bbox":[1,2,3,4]}`))
	require.NoError(t, err)

	coll := doc.(Collection)
	assert.Empty(t, coll.Features)
	assert.Equal(t, BBox{1, 2, 3, 4}, coll.BBox)
}

func TestDecode_GeometryCollection(t *testing.T) {
	for _, geometry := range []string{
		`{"type":"GeometryCollection","geometries":[]}`,
		`{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}`,
	} {
		doc, err := Decode([]byte(`{"type":"Feature","geometry":` + geometry + `}`))
		require.NoError(t, err, geometry)
		assert.JSONEq(t, geometry, string(doc.(Single).Feature.Geometry))
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty string", ``, ErrNotGeoJSON},
		{"not json", `not json`, ErrNotGeoJSON},
		{"array", `[1, 2]`, ErrNotGeoJSON},
		{"geometry only", `{"geometry": {"type": "Point", "coordinates": [0, 0]}}`, ErrNotGeoJSON},
		{"unknown type", `{"type": "Point", "coordinates": [0, 0]}`, ErrNotGeoJSON},
		{"broken geometry", `{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [0, 0]}}`, ErrInvalidFeature},
		{"missing geometry", `{"type": "Feature", "properties": {}}`, ErrInvalidFeature},
		{"null geometry", `{"type": "Feature", "geometry": null}`, ErrInvalidFeature},
		{"unknown geometry type", `{"type": "Feature", "geometry": {"type": "Circle", "coordinates": [0, 0]}}`, ErrInvalidFeature},
		{"properties not object", `{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}, "properties": [1]}`, ErrInvalidFeature},
		{"bbox wrong length", `{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}, "bbox": [0, 0]}`, ErrInvalidFeature},
		{"geometry collection without geometries", `{"type": "Feature", "geometry": {"type": "GeometryCollection"}}`, ErrInvalidFeature},
		{"features is object", `{"type": "FeatureCollection", "features": {"type": "LineString", "coordinates": [0, 0]}}`, ErrInvalidFeature},
		{"features missing", `{"type": "FeatureCollection"}`, ErrInvalidFeature},
		{"bad element", `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}}, {"type": "Feature"}]}`, ErrInvalidFeature},
		{"element without type", `{"type": "FeatureCollection", "features": [{"geometry": {"type": "Point", "coordinates": [0, 0]}}]}`, ErrInvalidFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.input))
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeAs_KindMismatch(t *testing.T) {
	_, err := DecodeAs([]byte(pointFeature), KindFeatureCollection)
	assert.ErrorIs(t, err, ErrInvalidFeature)

	_, err = DecodeAs([]byte(featureCollection), KindFeature)
	assert.ErrorIs(t, err, ErrInvalidFeature)

	_, err = DecodeAs([]byte(pointFeature), Kind("Topology"))
	assert.ErrorIs(t, err, ErrNotGeoJSON)
}

func TestRows(t *testing.T) {
	single, err := Decode([]byte(pointFeature))
	require.NoError(t, err)
	assert.Len(t, Rows(single), 1)

	coll, err := Decode([]byte(featureCollection))
	require.NoError(t, err)
	rows := Rows(coll)
	require.Len(t, rows, 3)
	assert.Equal(t, coll.(Collection).Features[2].Geometry, rows[2].Geometry)

	empty, err := Decode([]byte(`{"type":"FeatureCollection","features":[]}`))
	require.NoError(t, err)
	assert.Empty(t, Rows(empty))
}
