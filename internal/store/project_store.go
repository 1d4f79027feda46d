// Package store persists projects and their features. Every write runs in a
// single transaction, so a project and its feature set are never observed half
// written.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"geo-bknd/internal/apperr"
	"geo-bknd/internal/geojson"
	"geo-bknd/internal/models"
	"geo-bknd/internal/pagination"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ProjectChanges lists the project fields an update touches. Nil fields are
// left as they are. BBox is applied when SetBBox is true, so it can be cleared.
type ProjectChanges struct {
	Name        *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Type        *geojson.Kind
	BBox        []float64
	SetBBox     bool
}

// ProjectFilter selects which projects to fetch. With neither field set every
// project is returned.
type ProjectFilter struct {
	ID     *int64
	Window *pagination.Window
}

type ProjectStore struct {
	db *bun.DB
}

func NewProjectStore(db *bun.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// CreateProject inserts p and its feature rows in one transaction and returns
// the generated project id. p is updated with the generated id and timestamps.
func (s *ProjectStore) CreateProject(ctx context.Context, p *models.Project, rows []geojson.Feature) (int64, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(p).
			Returning("project_id, created_at, updated_at").
			Exec(ctx)
		if err != nil {
			return translate(err, phaseProject)
		}
		return insertFeatures(ctx, tx, p.ID, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	return p.ID, nil
}

// UpdateProject applies changes to project id. When replace is true the
// project's features are deleted and rows inserted in their place, in the
// same transaction as the field update.
func (s *ProjectStore) UpdateProject(ctx context.Context, id int64, changes ProjectChanges, rows []geojson.Feature, replace bool) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*models.Project)(nil)).
			Set("updated_at = now()").
			Where("project_id = ?", id)

		if changes.Name != nil {
			q = q.Set("name = ?", *changes.Name)
		}
		if changes.Description != nil {
			q = q.Set("description = ?", *changes.Description)
		}
		if changes.StartDate != nil {
			q = q.Set("start_date = ?", *changes.StartDate)
		}
		if changes.EndDate != nil {
			q = q.Set("end_date = ?", *changes.EndDate)
		}
		if changes.Type != nil {
			q = q.Set("geo_project_type = ?", string(*changes.Type))
		}
		if changes.SetBBox {
			if changes.BBox == nil {
				q = q.Set("bbox = NULL")
			} else {
				q = q.Set("bbox = ?", pgdialect.Array(changes.BBox))
			}
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return translate(err, phaseProject)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return apperr.NotFound("Project id: %d does not exist.", id)
		}
		if !replace {
			return nil
		}

		_, err = tx.NewDelete().
			Model((*models.Feature)(nil)).
			Where("project_id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete features: %w", err)
		}
		return insertFeatures(ctx, tx, id, rows)
	})
	if err != nil {
		return fmt.Errorf("update project %d: %w", id, err)
	}
	return nil
}

// DeleteProject removes project id. Its features go with it through the
// ON DELETE CASCADE foreign key. Deleting an unknown id is not an error.
func (s *ProjectStore) DeleteProject(ctx context.Context, id int64) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.Project)(nil)).
			Where("project_id = ?", id).
			Exec(ctx)
		return translate(err, phaseProject)
	})
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return nil
}

func insertFeatures(ctx context.Context, tx bun.Tx, projectID int64, rows []geojson.Feature) error {
	if len(rows) == 0 {
		return nil
	}

	features := make([]models.Feature, len(rows))
	for i, r := range rows {
		features[i] = models.Feature{
			ProjectID:  projectID,
			Properties: r.Properties,
			Geometry:   models.GeoJSONGeometry(r.Geometry),
		}
	}

	_, err := tx.NewInsert().
		Model(&features).
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		// The parent row went away after it was checked.
		if isForeignKeyViolation(err) {
			return apperr.NotFound("Project id: %d does not exist.", projectID)
		}
		return translate(err, phaseFeatures)
	}
	return nil
}

// ExistsByID reports whether project id exists. It takes no locks.
func (s *ProjectStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.Project)(nil)).
		Where("project_id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check project %d: %w", id, err)
	}
	return exists, nil
}

// ExistsByNameAndRange reports whether a project with the same name and date
// range exists. The unique constraint remains the authoritative check.
func (s *ProjectStore) ExistsByNameAndRange(ctx context.Context, name string, start, end time.Time) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.Project)(nil)).
		Where("name = ?", name).
		Where("start_date = ?", start).
		Where("end_date = ?", end).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check project name %q: %w", name, err)
	}
	return exists, nil
}

// GetProject returns the project row for id without its features.
func (s *ProjectStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p := new(models.Project)
	err := s.db.NewSelect().
		Model(p).
		Where("p.project_id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Project id: %d does not exist.", id)
		}
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (s *ProjectStore) CountProjects(ctx context.Context) (int, error) {
	total, err := s.db.NewSelect().
		Model((*models.Project)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return total, nil
}

// CountFeatures returns how many feature rows project id owns.
func (s *ProjectStore) CountFeatures(ctx context.Context, id int64) (int, error) {
	n, err := s.db.NewSelect().
		Model((*models.Feature)(nil)).
		Where("project_id = ?", id).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count features of project %d: %w", id, err)
	}
	return n, nil
}

// FetchProjects returns project rows ordered by id. A Window filter keeps the
// projects whose dense rank over all project ids falls inside it; ranks, not
// id values, so ids retired by deletes leave no gaps.
func (s *ProjectStore) FetchProjects(ctx context.Context, filter ProjectFilter) ([]models.Project, error) {
	projects := make([]models.Project, 0)

	q := s.db.NewSelect().
		Model(&projects).
		OrderExpr("p.project_id ASC")

	switch {
	case filter.ID != nil:
		q = q.Where("p.project_id = ?", *filter.ID)
	case filter.Window != nil:
		ranked := s.db.NewSelect().
			TableExpr("projects").
			ColumnExpr("project_id").
			ColumnExpr("DENSE_RANK() OVER (ORDER BY project_id) AS project_rank")

		window := s.db.NewSelect().
			TableExpr("(?) AS ranked", ranked).
			ColumnExpr("ranked.project_id").
			Where("ranked.project_rank BETWEEN ? AND ?", filter.Window.Start, filter.Window.End)

		q = q.Where("p.project_id IN (?)", window)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fetch projects: %w", err)
	}
	return projects, nil
}

// FetchFeatures returns the feature rows of the given projects ordered by
// project id, then feature id.
func (s *ProjectStore) FetchFeatures(ctx context.Context, projectIDs []int64) ([]models.FeatureRow, error) {
	rows := make([]models.FeatureRow, 0)
	if len(projectIDs) == 0 {
		return rows, nil
	}

	err := s.db.NewSelect().
		Model((*models.Feature)(nil)).
		ColumnExpr("f.feature_id, f.project_id, f.properties").
		ColumnExpr("ST_AsGeoJSON(f.geometry)::json AS geometry").
		Where("f.project_id IN (?)", bun.In(projectIDs)).
		OrderExpr("f.project_id ASC, f.feature_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch features: %w", err)
	}
	return rows, nil
}

// Ping checks the database is reachable.
func (s *ProjectStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
