package models

import (
	"encoding/json"
	"time"
)

// FeatureDocument is a GeoJSON Feature.
type FeatureDocument struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
	BBox       []float64       `json:"bbox,omitempty"`
}

// FeatureCollectionDocument is a GeoJSON FeatureCollection.
type FeatureCollectionDocument struct {
	Type     string            `json:"type"`
	BBox     []float64         `json:"bbox,omitempty"`
	Features []FeatureDocument `json:"features"`
}

// ProjectView is a project as returned to clients. Exactly one of Feature and
// FeatureCollection is set.
type ProjectView struct {
	ID                int64                      `json:"project_id"`
	Name              string                     `json:"name"`
	Description       *string                    `json:"description"`
	StartDate         Date                       `json:"start_date"`
	EndDate           Date                       `json:"end_date"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
	Feature           *FeatureDocument           `json:"feature,omitempty"`
	FeatureCollection *FeatureCollectionDocument `json:"featurecollection,omitempty"`
}

// PagedProjects is one page of projects. Total and Pages describe the whole
// corpus, not the page.
type PagedProjects struct {
	Total    int           `json:"total"`
	Pages    int           `json:"pages"`
	Page     int           `json:"page"`
	Size     int           `json:"size"`
	Projects []ProjectView `json:"projects"`
}
