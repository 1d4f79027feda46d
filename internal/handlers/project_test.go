package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"geo-bknd/internal/apperr"
	"geo-bknd/internal/geojson"
	"geo-bknd/internal/models"
	"geo-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeService records the inputs it receives and returns canned results.
type fakeService struct {
	created  *services.CreateInput
	updated  *services.UpdateInput
	deleted  int64
	page     int
	size     int
	err      error
	healthOK bool
}

func (f *fakeService) Create(_ context.Context, in services.CreateInput) (*models.ProjectView, error) {
	f.created = &in
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProjectView{ID: 1, Name: in.Name}, nil
}

func (f *fakeService) Read(_ context.Context, id int64) (*models.ProjectView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProjectView{ID: id, Name: "read"}, nil
}

func (f *fakeService) List(context.Context) ([]models.ProjectView, error) {
	return []models.ProjectView{{ID: 1}, {ID: 2}}, f.err
}

func (f *fakeService) ListPaged(_ context.Context, page, size int) (*models.PagedProjects, error) {
	f.page, f.size = page, size
	if f.err != nil {
		return nil, f.err
	}
	return &models.PagedProjects{Total: 3, Pages: 2, Page: page, Size: size, Projects: []models.ProjectView{}}, nil
}

func (f *fakeService) Update(_ context.Context, id int64, in services.UpdateInput) (*models.ProjectView, error) {
	f.updated = &in
	if f.err != nil {
		return nil, f.err
	}
	return &models.ProjectView{ID: id}, nil
}

func (f *fakeService) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return f.err
}

func (f *fakeService) Health(context.Context) error {
	if !f.healthOK {
		return errors.New("db down")
	}
	return nil
}

func newTestRouter(svc ProjectService, maxUpload int64) http.Handler {
	h := NewProjectHandler(svc, zap.NewNop(), maxUpload)

	r := chi.NewRouter()
	r.Get("/healthz", h.Healthz)
	r.Post("/create", h.Create)
	r.Get("/read/{project_id}", h.Read)
	r.Get("/list", h.List)
	r.Get("/list/paged", h.ListPaged)
	r.Patch("/update/{project_id}", h.Update)
	r.Delete("/delete/{project_id}", h.Delete)
	return r
}

func multipartRequest(t *testing.T, method, target, filename, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Message
}

func TestProjectHandler_Create(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, 1<<20)

	req := multipartRequest(t, http.MethodPost,
		"/create?name=Lot+7&description=north&start_date=2025-01-01&end_date=2025-01-03",
		"lot7.geojson", `{"type":"FeatureCollection","features":[]}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, "Lot 7", svc.created.Name)
	require.NotNil(t, svc.created.Description)
	assert.Equal(t, "north", *svc.created.Description)
	assert.Equal(t, "lot7.geojson", svc.created.FileName)
	assert.Equal(t, "2025-01-03", models.NewDate(svc.created.EndDate).String())
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(svc.created.Document))
}

func TestProjectHandler_Create_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		message string
	}{
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/create?name=a&start_date=2025-01-01&end_date=2025-01-02", nil)
			},
			message: "file is required.",
		},
		{
			name: "missing dates",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/create?name=a", "f.json", `{}`)
			},
			message: "start_date and end_date are required.",
		},
		{
			name: "malformed date",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, http.MethodPost, "/create?name=a&start_date=01-01-2025&end_date=2025-01-02", "f.json", `{}`)
			},
			message: `Bad request: start_date: invalid date "01-01-2025": expected YYYY-MM-DD.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := httptest.NewRecorder()
			newTestRouter(svc, 1<<20).ServeHTTP(rec, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decodeMessage(t, rec))
			assert.Nil(t, svc.created)
		})
	}
}

func TestProjectHandler_Create_TooLarge(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, 64)

	req := multipartRequest(t, http.MethodPost, "/create?name=a&start_date=2025-01-01&end_date=2025-01-02",
		"big.json", strings.Repeat(" ", 1024))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, svc.created)
}

func TestProjectHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("Project id: %d does not exist.", 7), http.StatusNotFound},
		{apperr.Conflict(nil, "Project name: %s exists.", "a"), http.StatusConflict},
		{apperr.DateRangeInvalid(nil), http.StatusBadRequest},
		{apperr.BadRequest("Bad request: name or description or file has to be defined."), http.StatusBadRequest},
		{apperr.Malformed(geojson.ErrNotGeoJSON, "Bad file format: %s.", "f.json"), http.StatusBadRequest},
		{apperr.Malformed(fmt.Errorf("features[0]: %w", geojson.ErrInvalidFeature), "Bad file format: %s.", "f.json"), http.StatusUnprocessableEntity},
		{apperr.Malformed(errors.New("XX000"), "geometry rejected by storage"), http.StatusUnprocessableEntity},
		{apperr.IntegrityFault("project %d is broken", 1), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := httptest.NewRecorder()
			newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/read/7", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status < http.StatusInternalServerError {
				assert.Equal(t, apperr.Message(tt.err, ""), decodeMessage(t, rec))
			} else {
				assert.Equal(t, "Internal server error.", decodeMessage(t, rec))
			}
		})
	}
}

func TestProjectHandler_Read_InvalidID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeService{}, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/read/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid project id: abc.", decodeMessage(t, rec))
}

func TestProjectHandler_List(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeService{}, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.ProjectView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	assert.Len(t, views, 2)
}

func TestProjectHandler_ListPaged(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		svc := &fakeService{}
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list/paged", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.page)
		assert.Equal(t, 10, svc.size)
		assert.JSONEq(t, `{"total":3,"pages":2,"page":1,"size":10,"projects":[]}`, rec.Body.String())
	})

	t.Run("explicit", func(t *testing.T) {
		svc := &fakeService{}
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list/paged?page=2&size=3", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, svc.page)
		assert.Equal(t, 3, svc.size)
	})

	t.Run("non numeric", func(t *testing.T) {
		svc := &fakeService{}
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list/paged?page=x", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, svc.page)
	})
}

func TestProjectHandler_Update(t *testing.T) {
	t.Run("params only", func(t *testing.T) {
		svc := &fakeService{}
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPatch, "/update/4?name=renamed&end_date=2025-02-01", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.updated)
		require.NotNil(t, svc.updated.Name)
		assert.Equal(t, "renamed", *svc.updated.Name)
		assert.Nil(t, svc.updated.Description)
		assert.Nil(t, svc.updated.StartDate)
		require.NotNil(t, svc.updated.EndDate)
		assert.Nil(t, svc.updated.Document)
	})

	t.Run("with document", func(t *testing.T) {
		svc := &fakeService{}
		rec := httptest.NewRecorder()
		newTestRouter(svc, 1<<20).ServeHTTP(rec,
			multipartRequest(t, http.MethodPatch, "/update/4", "new.geojson", `{"type":"Feature"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, svc.updated)
		assert.Nil(t, svc.updated.Name)
		assert.Equal(t, "new.geojson", svc.updated.FileName)
		assert.Equal(t, `{"type":"Feature"}`, string(svc.updated.Document))
	})
}

func TestProjectHandler_Delete(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	newTestRouter(svc, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/delete/9", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(9), svc.deleted)
	assert.Empty(t, rec.Body.String())
}

func TestProjectHandler_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeService{healthOK: true}, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	newTestRouter(&fakeService{}, 1<<20).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
