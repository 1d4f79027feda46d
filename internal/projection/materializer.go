// Package projection re-aggregates stored project and feature rows into GeoJSON
// documents shaped by each project's type tag. It performs no storage calls.
package projection

import (
	"geo-bknd/internal/apperr"
	"geo-bknd/internal/geojson"
	"geo-bknd/internal/models"
)

// Materialize builds one view per project, in the order projects are given.
// Feature rows are grouped by project id and keep their input order within a
// group; the store returns them by feature id, which is insertion order.
func Materialize(projects []models.Project, features []models.FeatureRow) ([]models.ProjectView, error) {
	groups := Group(features)

	views := make([]models.ProjectView, 0, len(projects))
	for i := range projects {
		view, err := View(&projects[i], groups[projects[i].ID])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Group buckets feature rows by owning project id.
func Group(features []models.FeatureRow) map[int64][]models.FeatureRow {
	groups := make(map[int64][]models.FeatureRow)
	for _, f := range features {
		groups[f.ProjectID] = append(groups[f.ProjectID], f)
	}
	return groups
}

// View materializes a single project from its grouped feature rows.
func View(p *models.Project, rows []models.FeatureRow) (models.ProjectView, error) {
	view := models.ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   models.NewDate(p.StartDate),
		EndDate:     models.NewDate(p.EndDate),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	doc, err := assemble(p, rows)
	if err != nil {
		return models.ProjectView{}, err
	}

	switch d := doc.(type) {
	case geojson.Single:
		f := featureDocument(d.Feature)
		f.BBox = d.BBox
		view.Feature = &f
	case geojson.Collection:
		features := make([]models.FeatureDocument, 0, len(d.Features))
		for _, f := range d.Features {
			features = append(features, featureDocument(f))
		}
		view.FeatureCollection = &models.FeatureCollectionDocument{
			Type:     string(geojson.KindFeatureCollection),
			BBox:     d.BBox,
			Features: features,
		}
	}
	return view, nil
}

// assemble turns stored rows back into the document union selected by the
// project's type tag.
func assemble(p *models.Project, rows []models.FeatureRow) (geojson.Document, error) {
	switch p.Type {
	case geojson.KindFeature:
		if len(rows) == 0 {
			return nil, apperr.IntegrityFault("project %d is a Feature project with no stored feature", p.ID)
		}
		return geojson.Single{Feature: feature(rows[0]), BBox: p.BBox}, nil
	case geojson.KindFeatureCollection:
		features := make([]geojson.Feature, 0, len(rows))
		for _, r := range rows {
			features = append(features, feature(r))
		}
		return geojson.Collection{Features: features, BBox: p.BBox}, nil
	default:
		return nil, apperr.IntegrityFault("project %d has unknown type %q", p.ID, p.Type)
	}
}

func feature(r models.FeatureRow) geojson.Feature {
	return geojson.Feature{Geometry: r.Geometry, Properties: r.Properties}
}

func featureDocument(f geojson.Feature) models.FeatureDocument {
	return models.FeatureDocument{
		Type:       string(geojson.KindFeature),
		Properties: f.Properties,
		Geometry:   f.Geometry,
	}
}
