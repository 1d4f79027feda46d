package services

import (
	"context"
	"fmt"
	"time"

	"geo-bknd/internal/apperr"
	"geo-bknd/internal/geojson"
	"geo-bknd/internal/models"
	"geo-bknd/internal/pagination"
	"geo-bknd/internal/projection"
	"geo-bknd/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// FeatureStore is the persistence the project service needs. *store.ProjectStore
// implements it.
type FeatureStore interface {
	CreateProject(ctx context.Context, p *models.Project, rows []geojson.Feature) (int64, error)
	UpdateProject(ctx context.Context, id int64, changes store.ProjectChanges, rows []geojson.Feature, replace bool) error
	DeleteProject(ctx context.Context, id int64) error
	ExistsByNameAndRange(ctx context.Context, name string, start, end time.Time) (bool, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	CountProjects(ctx context.Context) (int, error)
	FetchProjects(ctx context.Context, filter store.ProjectFilter) ([]models.Project, error)
	FetchFeatures(ctx context.Context, projectIDs []int64) ([]models.FeatureRow, error)
	Ping(ctx context.Context) error
}

// ProjectCache caches materialized single-project reads. Invalidate advances
// the project's generation; SetIfCurrent drops a view whose generation has
// moved since it was read.
type ProjectCache interface {
	Get(ctx context.Context, id int64) (*models.ProjectView, bool, error)
	Generation(ctx context.Context, id int64) (int64, error)
	SetIfCurrent(ctx context.Context, view *models.ProjectView, gen int64) error
	Invalidate(ctx context.Context, id int64) error
}

// CreateInput represents a new project upload
type CreateInput struct {
	Name        string    `json:"name" validate:"required,max=32"`
	Description *string   `json:"description" validate:"omitnil,max=255"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	FileName    string    `json:"-"`
	Document    []byte    `json:"file" validate:"required"`
}

// UpdateInput represents a partial project update. Nil fields keep their
// stored value; a non-nil Document replaces every feature of the project.
type UpdateInput struct {
	Name        *string    `json:"name" validate:"omitnil,min=1,max=32"`
	Description *string    `json:"description" validate:"omitnil,max=255"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	FileName    string     `json:"-"`
	Document    []byte     `json:"file"`
}

func (in UpdateInput) empty() bool {
	return in.Name == nil && in.Description == nil &&
		in.StartDate == nil && in.EndDate == nil && in.Document == nil
}

// ProjectService handles project business logic
type ProjectService struct {
	store    FeatureStore
	cache    ProjectCache
	validate *validator.Validate
	logr     *zap.Logger
}

// NewProjectService creates a new project service
func NewProjectService(fs FeatureStore, cache ProjectCache, logr *zap.Logger) *ProjectService {
	return &ProjectService{
		store:    fs,
		cache:    cache,
		validate: newValidator(),
		logr:     logr,
	}
}

// Create validates the input, decomposes the document and stores the project
// with its features atomically.
func (s *ProjectService) Create(ctx context.Context, in CreateInput) (*models.ProjectView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.StartDate.After(in.EndDate) {
		return nil, apperr.DateRangeInvalid(nil)
	}

	doc, err := geojson.Decode(in.Document)
	if err != nil {
		return nil, apperr.Malformed(err, "Bad file format: %s.", in.FileName)
	}

	exists, err := s.store.ExistsByNameAndRange(ctx, in.Name, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict(nil, "Project name: %s exists.", in.Name)
	}

	project := &models.Project{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Type:        doc.Kind(),
		BBox:        doc.Bounds(),
	}

	rows := geojson.Rows(doc)
	id, err := s.store.CreateProject(ctx, project, rows)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Conflict(err, "Project name: %s exists.", in.Name)
		}
		return nil, err
	}

	s.logr.Info("project created",
		zap.Int64("project_id", id),
		zap.String("type", string(project.Type)),
		zap.Int("features", len(rows)),
	)

	return s.Read(ctx, id)
}

// Read returns the materialized project id.
func (s *ProjectService) Read(ctx context.Context, id int64) (*models.ProjectView, error) {
	if view, ok, err := s.cache.Get(ctx, id); err != nil {
		s.logr.Warn("project cache read failed", zap.Int64("project_id", id), zap.Error(err))
	} else if ok {
		return view, nil
	}

	// The generation is taken before the fetch so a write committed in between
	// keeps this view out of the cache.
	gen, err := s.cache.Generation(ctx, id)
	fill := err == nil
	if err != nil {
		s.logr.Warn("project cache generation read failed", zap.Int64("project_id", id), zap.Error(err))
	}

	views, err := s.materialize(ctx, store.ProjectFilter{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperr.NotFound("Project id: %d does not exist.", id)
	}

	view := &views[0]
	if fill {
		if err := s.cache.SetIfCurrent(ctx, view, gen); err != nil {
			s.logr.Warn("project cache write failed", zap.Int64("project_id", id), zap.Error(err))
		}
	}
	return view, nil
}

// List returns every project ordered by id.
func (s *ProjectService) List(ctx context.Context) ([]models.ProjectView, error) {
	return s.materialize(ctx, store.ProjectFilter{})
}

// ListPaged returns the projects whose dense rank falls on the given page.
// Total and Pages are computed over all projects.
func (s *ProjectService) ListPaged(ctx context.Context, page, size int) (*models.PagedProjects, error) {
	window, err := pagination.NewWindow(page, size)
	if err != nil {
		return nil, err
	}

	total, err := s.store.CountProjects(ctx)
	if err != nil {
		return nil, err
	}

	views, err := s.materialize(ctx, store.ProjectFilter{Window: &window})
	if err != nil {
		return nil, err
	}

	return &models.PagedProjects{
		Total:    total,
		Pages:    pagination.Pages(total, size),
		Page:     page,
		Size:     size,
		Projects: views,
	}, nil
}

// Update applies a partial update. A document replaces the feature set and
// overwrites the project's type and bbox in the same transaction.
func (s *ProjectService) Update(ctx context.Context, id int64, in UpdateInput) (*models.ProjectView, error) {
	current, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.empty() {
		return nil, apperr.BadRequest("Bad request: name or description or file has to be defined.")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	var doc geojson.Document
	if in.Document != nil {
		if doc, err = geojson.Decode(in.Document); err != nil {
			return nil, apperr.Malformed(err, "Bad file format: %s.", in.FileName)
		}
	}

	name, start, end := current.Name, current.StartDate, current.EndDate
	if in.Name != nil {
		name = *in.Name
	}
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if start.After(end) {
		return nil, apperr.DateRangeInvalid(nil)
	}

	if name != current.Name || !sameDay(start, current.StartDate) || !sameDay(end, current.EndDate) {
		exists, err := s.store.ExistsByNameAndRange(ctx, name, start, end)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.Conflict(nil, "Project name: %s exists.", name)
		}
	}

	changes := store.ProjectChanges{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}

	var rows []geojson.Feature
	if doc != nil {
		kind := doc.Kind()
		changes.Type = &kind
		changes.BBox = doc.Bounds()
		changes.SetBBox = true
		rows = geojson.Rows(doc)

		if kind != current.Type {
			s.logr.Info("project type overwritten",
				zap.Int64("project_id", id),
				zap.String("from", string(current.Type)),
				zap.String("to", string(kind)),
			)
		}
	}

	if err := s.store.UpdateProject(ctx, id, changes, rows, doc != nil); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Conflict(err, "Project name: %s exists.", name)
		}
		return nil, err
	}
	s.invalidate(ctx, id)

	s.logr.Info("project updated",
		zap.Int64("project_id", id),
		zap.Bool("features_replaced", doc != nil),
		zap.Int("features", len(rows)),
	)

	return s.Read(ctx, id)
}

// Delete removes project id and its features. Unknown ids are not an error.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)

	s.logr.Info("project deleted", zap.Int64("project_id", id))
	return nil
}

// Health checks the store is reachable.
func (s *ProjectService) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}

func (s *ProjectService) materialize(ctx context.Context, filter store.ProjectFilter) ([]models.ProjectView, error) {
	projects, err := s.store.FetchProjects(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []models.ProjectView{}, nil
	}

	ids := make([]int64, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	features, err := s.store.FetchFeatures(ctx, ids)
	if err != nil {
		return nil, err
	}

	views, err := projection.Materialize(projects, features)
	if err != nil {
		s.logr.Error("project materialization failed", zap.Error(err))
		return nil, err
	}
	return views, nil
}

func (s *ProjectService) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logr.Warn("project cache invalidation failed", zap.Int64("project_id", id), zap.Error(err))
	}
}

func sameDay(a, b time.Time) bool {
	return models.NewDate(a).Equal(models.NewDate(b).Time)
}
