package models

import (
	"encoding/json"
	"time"

	"geo-bknd/internal/geojson"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Project is a named, dated geographic dataset. Type fixes the shape of the
// document it materializes into.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          int64        `bun:"project_id,pk,autoincrement" json:"project_id"`
	Name        string       `bun:"name,notnull" json:"name"`
	Description *string      `bun:"description" json:"description"`
	StartDate   time.Time    `bun:"start_date,type:date,notnull" json:"start_date"`
	EndDate     time.Time    `bun:"end_date,type:date,notnull" json:"end_date"`
	Type        geojson.Kind `bun:"geo_project_type,notnull" json:"geo_project_type"`
	BBox        []float64    `bun:"bbox,array" json:"bbox,omitempty"`
	CreatedAt   time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time    `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Feature is one stored geometry and attribute bag owned by a project. It is
// only ever written; reads go through FeatureRow.
type Feature struct {
	bun.BaseModel `bun:"table:features,alias:f"`

	ID         int64           `bun:"feature_id,pk,autoincrement"`
	ProjectID  int64           `bun:"project_id,notnull"`
	Properties json.RawMessage `bun:"properties,type:json,nullzero"`
	Geometry   GeoJSONGeometry `bun:"geometry,type:geometry,notnull"`
}

// GeoJSONGeometry is a GeoJSON geometry that is written through PostGIS's
// ST_GeomFromGeoJSON, so the storage engine does the semantic validation.
type GeoJSONGeometry json.RawMessage

var _ schema.QueryAppender = GeoJSONGeometry(nil)

func (g GeoJSONGeometry) AppendQuery(fmter schema.Formatter, b []byte) ([]byte, error) {
	return fmter.AppendQuery(b, "ST_GeomFromGeoJSON(?)", string(g)), nil
}

// FeatureRow is a feature as read back for projection, with the geometry
// rendered by ST_AsGeoJSON.
type FeatureRow struct {
	ID         int64           `bun:"feature_id"`
	ProjectID  int64           `bun:"project_id"`
	Properties json.RawMessage `bun:"properties"`
	Geometry   json.RawMessage `bun:"geometry"`
}
