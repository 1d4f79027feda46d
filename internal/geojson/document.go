// Package geojson decodes uploaded GeoJSON into a Document and flattens it into
// the ordered feature rows the store persists.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	orbjson "github.com/paulmach/orb/geojson"
)

// Kind is the project type tag. Its values match the GeoJSON "type" member and
// the geo_project_type enum.
type Kind string

const (
	KindFeature           Kind = "Feature"
	KindFeatureCollection Kind = "FeatureCollection"
)

func (k Kind) Valid() bool {
	return k == KindFeature || k == KindFeatureCollection
}

var (
	// ErrNotGeoJSON means the input is not JSON at all, or its top-level type is
	// neither Feature nor FeatureCollection.
	ErrNotGeoJSON = errors.New("geojson: not a feature or feature collection")
	// ErrInvalidFeature means the type was recognised but a member required by it
	// is missing or has the wrong shape.
	ErrInvalidFeature = errors.New("geojson: invalid feature")
)

// BBox is min-x, min-y, max-x, max-y.
type BBox []float64

// Feature is one geometry with its attribute bag. Both are kept as raw JSON:
// the geometry is parsed by PostGIS and the properties are never inspected.
type Feature struct {
	Geometry   json.RawMessage
	Properties json.RawMessage
}

// Document is either a Single or a Collection.
type Document interface {
	Kind() Kind
	Bounds() BBox
	sealed()
}

// Single is a document holding exactly one feature.
type Single struct {
	Feature Feature
	BBox    BBox
}

// Collection is a document holding an ordered, possibly empty, feature list.
type Collection struct {
	Features []Feature
	BBox     BBox
}

func (Single) Kind() Kind { return KindFeature }

func (s Single) Bounds() BBox { return s.BBox }

func (Single) sealed() {}

func (Collection) Kind() Kind { return KindFeatureCollection }

func (c Collection) Bounds() BBox { return c.BBox }

func (Collection) sealed() {}

type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
	BBox       json.RawMessage `json:"bbox"`
}

type rawCollection struct {
	Type     string          `json:"type"`
	Features json.RawMessage `json:"features"`
	BBox     json.RawMessage `json:"bbox"`
}

// Decode detects the document kind from its top-level "type" and validates it.
func Decode(data []byte) (Document, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGeoJSON, err)
	}

	kind := Kind(head.Type)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: type %q", ErrNotGeoJSON, head.Type)
	}
	return DecodeAs(data, kind)
}

// DecodeAs validates data against a declared kind.
func DecodeAs(data []byte, kind Kind) (Document, error) {
	switch kind {
	case KindFeature:
		return decodeSingle(data)
	case KindFeatureCollection:
		return decodeCollection(data)
	default:
		return nil, fmt.Errorf("%w: type %q", ErrNotGeoJSON, kind)
	}
}

func decodeSingle(data []byte) (Document, error) {
	f, bbox, err := decodeFeature(data)
	if err != nil {
		return nil, err
	}
	return Single{Feature: f, BBox: bbox}, nil
}

func decodeCollection(data []byte) (Document, error) {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGeoJSON, err)
	}
	if raw.Type != string(KindFeatureCollection) {
		return nil, fmt.Errorf("%w: type %q is not FeatureCollection", ErrInvalidFeature, raw.Type)
	}

	bbox, err := decodeBBox(raw.BBox)
	if err != nil {
		return nil, err
	}

	if !isArray(raw.Features) {
		return nil, fmt.Errorf("%w: features must be an array", ErrInvalidFeature)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw.Features, &elems); err != nil {
		return nil, fmt.Errorf("%w: features: %v", ErrInvalidFeature, err)
	}

	features := make([]Feature, 0, len(elems))
	for i, elem := range elems {
		f, _, err := decodeFeature(elem)
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %w", i, err)
		}
		features = append(features, f)
	}
	return Collection{Features: features, BBox: bbox}, nil
}

func decodeFeature(data []byte) (Feature, BBox, error) {
	var raw rawFeature
	if err := json.Unmarshal(data, &raw); err != nil {
		return Feature{}, nil, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	if raw.Type != string(KindFeature) {
		return Feature{}, nil, fmt.Errorf("%w: type %q is not Feature", ErrInvalidFeature, raw.Type)
	}

	geometry, err := decodeGeometry(raw.Geometry)
	if err != nil {
		return Feature{}, nil, err
	}
	properties, err := decodeProperties(raw.Properties)
	if err != nil {
		return Feature{}, nil, err
	}
	bbox, err := decodeBBox(raw.BBox)
	if err != nil {
		return Feature{}, nil, err
	}
	return Feature{Geometry: geometry, Properties: properties}, bbox, nil
}

// decodeGeometry checks the geometry is syntactically valid GeoJSON. Semantic
// checks (closed rings and the like) are left to PostGIS.
func decodeGeometry(data json.RawMessage) (json.RawMessage, error) {
	if isNull(data) {
		return nil, fmt.Errorf("%w: geometry is required", ErrInvalidFeature)
	}
	g, err := orbjson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: geometry: %v", ErrInvalidFeature, err)
	}
	if g.Type == "GeometryCollection" {
		// An empty collection is valid GeoJSON; only the member's shape is checked.
		var gc struct {
			Geometries json.RawMessage `json:"geometries"`
		}
		if err := json.Unmarshal(data, &gc); err != nil || !isArray(gc.Geometries) {
			return nil, fmt.Errorf("%w: geometries must be an array", ErrInvalidFeature)
		}
		return compact(data)
	}
	if g.Coordinates == nil {
		return nil, fmt.Errorf("%w: geometry has no coordinates", ErrInvalidFeature)
	}
	return compact(data)
}

func decodeProperties(data json.RawMessage) (json.RawMessage, error) {
	if isNull(data) {
		return nil, nil
	}
	if first(data) != '{' {
		return nil, fmt.Errorf("%w: properties must be an object", ErrInvalidFeature)
	}
	return compact(data)
}

func decodeBBox(data json.RawMessage) (BBox, error) {
	if isNull(data) {
		return nil, nil
	}
	var bbox BBox
	if err := json.Unmarshal(data, &bbox); err != nil {
		return nil, fmt.Errorf("%w: bbox: %v", ErrInvalidFeature, err)
	}
	if len(bbox) != 4 {
		return nil, fmt.Errorf("%w: bbox must have 4 values, got %d", ErrInvalidFeature, len(bbox))
	}
	return bbox, nil
}

func compact(data json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeature, err)
	}
	return buf.Bytes(), nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isArray(data json.RawMessage) bool {
	return first(data) == '['
}

func first(data json.RawMessage) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
